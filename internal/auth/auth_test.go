package auth

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/servicedesk/internal/domain"
	apperrors "github.com/spec-kit/servicedesk/pkg/util/errorutil"
)

type stubStaffRepo struct {
	members map[string]*domain.StaffMember
}

func (r *stubStaffRepo) Create(context.Context, *domain.StaffMember) error { return nil }

func (r *stubStaffRepo) GetByID(_ context.Context, id string) (*domain.StaffMember, error) {
	if m, ok := r.members[id]; ok {
		return m, nil
	}
	return nil, pgx.ErrNoRows
}

func (r *stubStaffRepo) GetByEmail(context.Context, string) (*domain.StaffMember, error) {
	return nil, pgx.ErrNoRows
}

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	role := domain.StaffRoleTeamLead
	token, exp, err := tm.GenerateToken("staff-1", domain.SubjectTypeStaff, &role)
	require.NoError(t, err)
	assert.False(t, exp.IsZero())

	claims, err := tm.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "staff-1", claims.SubjectID)
	require.NotNil(t, claims.Role)
	assert.Equal(t, role, *claims.Role)

	_, err = NewTokenManager("other", 5).ParseToken(token)
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("hunter2", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NoError(t, ComparePassword(hash, "hunter2"))
	assert.Error(t, ComparePassword(hash, "hunter3"))

	_, err = HashPassword("", bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestParseTokenRejectsForeignIssuer(t *testing.T) {
	claims := jwt.RegisteredClaims{
		Issuer:    "someone-else",
		Subject:   "staff-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewTokenManager("secret", 5).ParseToken(signed)
	assert.Error(t, err)
}

func newProtectedApp(tm *TokenManager, repo *stubStaffRepo, roles ...domain.StaffRole) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).SendString(de.Code)
		},
	})
	mw := NewAuthMiddleware(tm, repo)
	app.Get("/protected", mw.Handle, RequireStaffRole(roles...), func(c *fiber.Ctx) error {
		staff, _ := StaffFromContext(c)
		return c.SendString(staff.ID)
	})
	return app
}

func TestAuthMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", 5)
	repo := &stubStaffRepo{members: map[string]*domain.StaffMember{
		"agent":    {ID: "agent", Role: domain.StaffRoleAgent, Active: true},
		"admin":    {ID: "admin", Role: domain.StaffRoleAdmin, Active: true},
		"disabled": {ID: "disabled", Role: domain.StaffRoleAdmin, Active: false},
	}}
	token := func(id string, subject domain.SubjectType) string {
		s, _, err := tm.GenerateToken(id, subject, nil)
		require.NoError(t, err)
		return "Bearer " + s
	}

	cases := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"missing header", "", fiber.StatusUnauthorized, "UNAUTHORIZED"},
		{"wrong scheme", "Basic abc", fiber.StatusUnauthorized, "UNAUTHORIZED"},
		{"garbage token", "Bearer abc", fiber.StatusUnauthorized, "UNAUTHORIZED"},
		{"user subject", token("agent", domain.SubjectTypeUser), fiber.StatusUnauthorized, "UNAUTHORIZED"},
		{"unknown staff", token("ghost", domain.SubjectTypeStaff), fiber.StatusUnauthorized, "UNAUTHORIZED"},
		{"inactive staff", token("disabled", domain.SubjectTypeStaff), fiber.StatusForbidden, "FORBIDDEN"},
		{"agent lacks role", token("agent", domain.SubjectTypeStaff), fiber.StatusForbidden, "FORBIDDEN"},
		{"admin passes", token("admin", domain.SubjectTypeStaff), fiber.StatusOK, "admin"},
	}
	app := newProtectedApp(tm, repo, domain.StaffRoleAdmin)
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(fiber.MethodGet, "/protected", nil)
			if tc.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, tc.body, string(body))
		})
	}
}

func TestRequireStaffRoleWithoutPrincipal(t *testing.T) {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var de *apperrors.DomainError
			require.True(t, errors.As(err, &de))
			return c.SendStatus(de.HTTPStatus)
		},
	})
	app.Get("/", RequireStaffRole(), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusNoContent) })

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
