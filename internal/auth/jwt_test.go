package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visitorpass/desk/internal/models"
)

func TestValidateSigned(t *testing.T) {
	svc := NewJWTService("s3cret")
	tok, err := svc.Generate("approver@acme.test", 7, models.RoleApprover, time.Hour)
	require.NoError(t, err)

	claims, err := svc.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.TenantID)
	assert.Equal(t, models.RoleApprover, claims.Role)
	assert.Equal(t, "approver@acme.test", claims.Email())

	_, err = NewJWTService("other").Validate(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateUnverified(t *testing.T) {
	tok, err := NewJWTService("backend-only").Generate("guard@acme.test", 3, models.RoleSecurity, time.Hour)
	require.NoError(t, err)

	svc := NewJWTService("")
	assert.False(t, svc.Verifies())
	claims, err := svc.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, int64(3), claims.TenantID)

	expired, err := NewJWTService("x").Generate("guard@acme.test", 3, models.RoleSecurity, -time.Minute)
	require.NoError(t, err)
	_, err = svc.Validate(expired)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = svc.Validate("garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRequiresTenant(t *testing.T) {
	svc := NewJWTService("s3cret")
	tok, err := svc.Generate("root@acme.test", 0, models.RoleSuperAdmin, time.Hour)
	require.NoError(t, err)

	_, err = svc.Validate(tok)
	assert.ErrorIs(t, err, ErrNoTenant)
}
