package app

import (
	"context"
	"errors"
	"fmt"

	"lmsapi/pkg/domain"
	"lmsapi/pkg/identity"
	"lmsapi/pkg/store"
)

func (a *App) ListUsers(ctx context.Context, role, search string) ([]domain.User, error) {
	users, err := a.store.ListUsers(ctx, store.UserFilter{Role: domain.Role(role), Search: search})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (a *App) GetUser(ctx context.Context, uid string) (domain.User, error) {
	user, ok, err := a.store.GetUser(ctx, uid)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	if !ok {
		return domain.User{}, errUserNotFound
	}
	return user, nil
}

type UpdateUserInput struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

// UpdateUser changes name and email on the user record and mirrors non-empty
// values to the identity account.
func (a *App) UpdateUser(ctx context.Context, uid string, in UpdateUserInput) (domain.User, error) {
	if _, err := a.GetUser(ctx, uid); err != nil {
		return domain.User{}, err
	}
	var upd identity.AccountUpdate
	if in.Email != nil && *in.Email != "" {
		upd.Email = in.Email
	}
	if in.Name != nil && *in.Name != "" {
		upd.DisplayName = in.Name
	}
	if upd.Email != nil || upd.DisplayName != nil {
		if err := a.updateAccount(ctx, uid, upd); err != nil {
			return domain.User{}, err
		}
	}
	user, err := a.store.UpdateUser(ctx, uid, store.UserUpdate{Name: in.Name, Email: in.Email}, a.clock())
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, errUserNotFound
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// Deactivation echoes a soft-deleted user.
type Deactivation struct {
	UID      string `json:"uid"`
	IsActive bool   `json:"isActive"`
}

// DeactivateUser disables the identity account, which revokes its tokens,
// and marks the user record inactive.
func (a *App) DeactivateUser(ctx context.Context, uid string) (Deactivation, error) {
	if _, err := a.GetUser(ctx, uid); err != nil {
		return Deactivation{}, err
	}
	disabled := true
	if err := a.updateAccount(ctx, uid, identity.AccountUpdate{Disabled: &disabled}); err != nil {
		return Deactivation{}, err
	}
	inactive := false
	if _, err := a.store.UpdateUser(ctx, uid, store.UserUpdate{IsActive: &inactive}, a.clock()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Deactivation{}, errUserNotFound
		}
		return Deactivation{}, fmt.Errorf("deactivate user: %w", err)
	}
	return Deactivation{UID: uid, IsActive: false}, nil
}

// updateAccount applies upd to the local identity account. Users without a
// local account are skipped.
func (a *App) updateAccount(ctx context.Context, uid string, upd identity.AccountUpdate) error {
	_, err := a.identity.UpdateUser(ctx, uid, upd)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, identity.ErrAccountNotFound):
		logger(ctx).Info("identity update skipped, no local account", "uid", uid)
		return nil
	case errors.Is(err, identity.ErrInvalidEmail), errors.Is(err, identity.ErrEmailExists):
		return badRequest(err.Error())
	default:
		return fmt.Errorf("update identity account: %w", err)
	}
}

type UpsertProfileInput struct {
	UID         string `json:"uid" validate:"required"`
	Email       string `json:"email" validate:"required"`
	DisplayName string `json:"displayName"`
}

// UpsertProfile creates a student record for the profile, or merges email
// and display name into the existing one.
func (a *App) UpsertProfile(ctx context.Context, in UpsertProfileInput) (domain.User, error) {
	if err := a.check(in, "uid and email are required"); err != nil {
		return domain.User{}, err
	}
	user, created, err := a.store.UpsertUserProfile(ctx, store.UserProfile{
		UID:         in.UID,
		Email:       in.Email,
		DisplayName: in.DisplayName,
	}, a.clock())
	if err != nil {
		return domain.User{}, fmt.Errorf("upsert user profile: %w", err)
	}
	if created {
		logger(ctx).Info("user profile created", "uid", user.UID)
	}
	return user, nil
}

// LeaderboardEntry is one public leaderboard row.
type LeaderboardEntry struct {
	UID         string `json:"uid"`
	Name        string `json:"name"`
	TotalPoints int    `json:"totalPoints"`
}

// Leaderboard ranks users by total points, highest first. limit <= 0 returns everyone.
func (a *App) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	users, err := a.store.Leaderboard(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	out := make([]LeaderboardEntry, 0, len(users))
	for _, u := range users {
		out = append(out, LeaderboardEntry{UID: u.UID, Name: u.Name, TotalPoints: u.TotalPoints})
	}
	return out, nil
}
