package app

import (
	"context"
	"errors"
	"fmt"

	"lmsapi/pkg/domain"
	"lmsapi/pkg/events"
	"lmsapi/pkg/identity"
	"lmsapi/pkg/store"
)

type RegisterInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name"`
}

// Registration is the public view of a freshly registered user.
type Registration struct {
	UID   string      `json:"uid"`
	Email string      `json:"email"`
	Name  string      `json:"name"`
	Role  domain.Role `json:"role"`
}

// Register creates the identity account, sets the student role claim and
// writes the user record.
func (a *App) Register(ctx context.Context, in RegisterInput) (Registration, error) {
	if err := a.check(in, "email and password are required"); err != nil {
		return Registration{}, err
	}
	name := in.Name
	if name == "" {
		name = store.DefaultName(in.Email)
	}
	account, err := a.identity.CreateUser(ctx, in.Email, in.Password, name)
	if err != nil {
		return Registration{}, err
	}
	if err := a.identity.SetCustomClaims(ctx, account.UID, domain.RoleStudent); err != nil {
		return Registration{}, err
	}
	now := a.clock()
	user := domain.User{
		UID:       account.UID,
		Email:     account.Email,
		Name:      name,
		Role:      domain.RoleStudent,
		IsActive:  true,
		CreatedAt: domain.At(now),
	}
	if err := a.store.CreateUser(ctx, user); err != nil {
		return Registration{}, fmt.Errorf("create user record: %w", err)
	}
	a.publish(ctx, events.TypeUserRegistered, user)
	return Registration{UID: user.UID, Email: user.Email, Name: user.Name, Role: user.Role}, nil
}

type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Login exchanges credentials for an ID token.
func (a *App) Login(ctx context.Context, in LoginInput) (identity.Session, error) {
	if err := a.check(in, "email and password are required"); err != nil {
		return identity.Session{}, err
	}
	session, err := a.identity.SignIn(ctx, in.Email, in.Password)
	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		return identity.Session{}, unauthorized("Invalid email or password")
	case errors.Is(err, identity.ErrAccountDisabled):
		return identity.Session{}, unauthorized("Account disabled")
	case err != nil:
		return identity.Session{}, fmt.Errorf("sign in: %w", err)
	}
	return session, nil
}

type AssignRoleInput struct {
	UID  string `json:"uid" validate:"required"`
	Role string `json:"role" validate:"required"`
}

// RoleAssignment echoes an applied role change.
type RoleAssignment struct {
	UID  string      `json:"uid"`
	Role domain.Role `json:"role"`
}

// AssignRole updates the stored role and the identity role claim. Users that
// only exist at an external issuer get the stored role alone.
func (a *App) AssignRole(ctx context.Context, in AssignRoleInput) (RoleAssignment, error) {
	if err := a.check(in, "uid and role are required"); err != nil {
		return RoleAssignment{}, err
	}
	role := domain.Role(in.Role)
	if !role.Valid() {
		return RoleAssignment{}, badRequest("Invalid role. Must be one of: student, admin, instructor")
	}
	if _, err := a.store.UpdateUser(ctx, in.UID, store.UserUpdate{Role: &role}, a.clock()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return RoleAssignment{}, errUserNotFound
		}
		return RoleAssignment{}, err
	}
	if err := a.identity.SetCustomClaims(ctx, in.UID, role); err != nil {
		if !errors.Is(err, identity.ErrAccountNotFound) {
			return RoleAssignment{}, err
		}
		logger(ctx).Info("role claim skipped, no local account", "uid", in.UID)
	}
	return RoleAssignment{UID: in.UID, Role: role}, nil
}

// Me returns the caller's user record.
func (a *App) Me(ctx context.Context, uid string) (domain.User, error) {
	user, ok, err := a.store.GetUser(ctx, uid)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	if !ok {
		return domain.User{}, notFound("User profile not found")
	}
	return user, nil
}
