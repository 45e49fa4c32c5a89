package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-attendance-api/internal/models"
	appErrors "github.com/noah-isme/lms-attendance-api/pkg/errors"
)

func TestTokenVerifierRoundTrip(t *testing.T) {
	v := NewTokenVerifier("secret", "idp.example.edu")
	token, err := v.Sign("student-1", models.RoleStudent, time.Minute)
	require.NoError(t, err)

	claims, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "student-1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestTokenVerifierRejects(t *testing.T) {
	v := NewTokenVerifier("secret", "idp.example.edu")

	expired, err := v.Sign("u1", models.RoleFaculty, -time.Minute)
	require.NoError(t, err)
	wrongIssuer, err := NewTokenVerifier("secret", "other").Sign("u1", models.RoleFaculty, time.Minute)
	require.NoError(t, err)
	wrongKey, err := NewTokenVerifier("nope", "idp.example.edu").Sign("u1", models.RoleFaculty, time.Minute)
	require.NoError(t, err)
	noRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, models.JWTClaims{
		UserID:           "u1",
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "idp.example.edu"},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired": expired, "issuer": wrongIssuer, "key": wrongKey, "role": noRole, "garbage": "abc.def",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(token)
			assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
		})
	}
}
