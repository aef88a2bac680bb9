package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/servicedesk/internal/config"
	"github.com/spec-kit/servicedesk/internal/domain"
)

func newTestAuthService() (*AuthService, *fakeStaffRepo) {
	repo := newFakeStaffRepo()
	svc := NewAuthService(config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 15,
		BcryptCost:            bcrypt.MinCost,
	}, repo)
	return svc, repo
}

func TestEnsureAdminAndLogin(t *testing.T) {
	svc, repo := newTestAuthService()
	ctx := context.Background()

	created, err := svc.EnsureAdmin(ctx, "Root", "root@example.com", "s3cret")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.EnsureAdmin(ctx, "Root", "root@example.com", "other")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Len(t, repo.staff, 1)

	staff, token, exp, err := svc.LoginStaff(ctx, " root@example.com ", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, domain.StaffRoleAdmin, staff.Role)
	assert.False(t, exp.IsZero())

	claims, err := svc.TokenManager().ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, staff.ID, claims.SubjectID)
	assert.Equal(t, domain.SubjectTypeStaff, claims.Subject)
	require.NotNil(t, claims.Role)
	assert.Equal(t, domain.StaffRoleAdmin, *claims.Role)
}

func TestLoginStaffFailures(t *testing.T) {
	svc, repo := newTestAuthService()
	ctx := context.Background()
	_, err := svc.EnsureAdmin(ctx, "Root", "root@example.com", "s3cret")
	require.NoError(t, err)

	_, _, _, err = svc.LoginStaff(ctx, "root@example.com", "wrong")
	requireCode(t, err, "UNAUTHORIZED")
	_, _, _, err = svc.LoginStaff(ctx, "nobody@example.com", "s3cret")
	requireCode(t, err, "UNAUTHORIZED")

	for _, s := range repo.staff {
		s.Active = false
	}
	_, _, _, err = svc.LoginStaff(ctx, "root@example.com", "s3cret")
	requireCode(t, err, "FORBIDDEN")
}

func TestEnsureAdminSkipsWithoutCredentials(t *testing.T) {
	svc, repo := newTestAuthService()
	created, err := svc.EnsureAdmin(context.Background(), "Root", "", "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Empty(t, repo.staff)
}
