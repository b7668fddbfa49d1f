package access

import (
	"context"
	"errors"
	"testing"

	"lmsapi/pkg/domain"
)

type fakeUsers struct {
	users map[string]domain.User
	err   error
	reads int
}

func (f *fakeUsers) GetUser(_ context.Context, uid string) (domain.User, bool, error) {
	f.reads++
	if f.err != nil {
		return domain.User{}, false, f.err
	}
	u, ok := f.users[uid]
	return u, ok, nil
}

type fakeEnrollments struct {
	pairs map[string]bool
	err   error
}

func (f fakeEnrollments) HasEnrollment(_ context.Context, userID, courseID string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.pairs[userID+"|"+courseID], nil
}

func TestRoleResolverPaths(t *testing.T) {
	users := &fakeUsers{users: map[string]domain.User{
		"instructor-1": {UID: "instructor-1", Role: domain.RoleInstructor},
		"blank":        {UID: "blank"},
	}}
	r := NewRoleResolver(users)
	ctx := context.Background()

	tests := []struct {
		name       string
		uid, claim string
		wantRole   domain.Role
		wantSource RoleSource
	}{
		{"claim wins over store", "instructor-1", "admin", domain.RoleAdmin, SourceClaim},
		{"claim returned unchanged", "x", "auditor", domain.Role("auditor"), SourceClaim},
		{"padded claim returned unchanged", "x", " admin ", domain.Role(" admin "), SourceClaim},
		{"blank claim falls through", "instructor-1", "  ", domain.RoleInstructor, SourceStore},
		{"store role", "instructor-1", "", domain.RoleInstructor, SourceStore},
		{"store without role", "blank", "", domain.RoleStudent, SourceDefault},
		{"missing user", "ghost", "", domain.RoleStudent, SourceDefault},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := r.Resolve(ctx, tc.uid, tc.claim)
			if got.Role != tc.wantRole || got.Source != tc.wantSource || got.Err != nil {
				t.Fatalf("Resolve(%q, %q) = %+v", tc.uid, tc.claim, got)
			}
		})
	}
}

func TestRoleResolverClaimSkipsStore(t *testing.T) {
	users := &fakeUsers{}
	NewRoleResolver(users).Resolve(context.Background(), "u1", "instructor")
	if users.reads != 0 {
		t.Fatalf("claimed role must not read the store, reads=%d", users.reads)
	}
}

func TestRoleResolverFailsOpenToStudent(t *testing.T) {
	boom := errors.New("store down")
	got := NewRoleResolver(&fakeUsers{err: boom}).Resolve(context.Background(), "u1", "")
	if got.Role != domain.RoleStudent || got.Source != SourceDefaultAfterError || !errors.Is(got.Err, boom) {
		t.Fatalf("unexpected resolution: %+v", got)
	}
}

func TestRequireRole(t *testing.T) {
	if _, err := RequireRole(context.Background(), domain.RoleAdmin); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("anonymous: %v", err)
	}
	ctx := WithIdentity(context.Background(), Identity{UID: "u1", Role: domain.RoleStudent})
	if _, err := RequireRole(ctx, domain.RoleAdmin, domain.RoleInstructor); !errors.Is(err, ErrForbidden) {
		t.Fatalf("student: %v", err)
	}
	ctx = WithIdentity(context.Background(), Identity{UID: "u2", Role: domain.RoleInstructor})
	id, err := RequireRole(ctx, domain.RoleAdmin, domain.RoleInstructor)
	if err != nil || id.UID != "u2" {
		t.Fatalf("instructor: id=%+v err=%v", id, err)
	}
}

func TestCheckEnrollment(t *testing.T) {
	enrollments := fakeEnrollments{pairs: map[string]bool{"stu|c1": true}}
	student := WithIdentity(context.Background(), Identity{UID: "stu", Role: domain.RoleStudent})
	admin := WithIdentity(context.Background(), Identity{UID: "adm", Role: domain.RoleAdmin})

	tests := []struct {
		name     string
		ctx      context.Context
		checker  EnrollmentChecker
		courseID string
		wantErr  error
	}{
		{"anonymous", context.Background(), enrollments, "c1", ErrUnauthenticated},
		{"admin bypass", admin, enrollments, "c9", nil},
		{"admin bypass on store error", admin, fakeEnrollments{err: errors.New("down")}, "c1", nil},
		{"enrolled", student, enrollments, "c1", nil},
		{"not enrolled", student, enrollments, "c2", ErrNotEnrolled},
		{"missing course id", student, enrollments, "", ErrCourseIDRequired},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := CheckEnrollment(tc.ctx, tc.checker, tc.courseID)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("got %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestCheckEnrollmentFailsClosed(t *testing.T) {
	boom := errors.New("down")
	ctx := WithIdentity(context.Background(), Identity{UID: "stu", Role: domain.RoleStudent})
	_, err := CheckEnrollment(ctx, fakeEnrollments{err: boom}, "c1")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped store error, got %v", err)
	}
	if errors.Is(err, ErrNotEnrolled) {
		t.Fatalf("store errors must not look like a missing enrollment")
	}
}
