package tenant

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authz-engine/resolution/pkg/types"
)

func claimsWith(pairs ...[2]string) *types.ClaimSet {
	claims := make([]types.Claim, 0, len(pairs))
	for _, p := range pairs {
		claims = append(claims, types.Claim{Type: p[0], Value: p[1]})
	}
	return types.NewClaimSet(claims, true)
}

func TestExtract(t *testing.T) {
	g := NewGuard()

	tc := g.Extract(claimsWith(
		[2]string{types.ClaimTenantID, "T1"},
		[2]string{types.ClaimObjectID, "user-1"},
	))

	assert.Equal(t, "T1", tc.TenantID)
	assert.Equal(t, "user-1", tc.UserID)
	assert.True(t, tc.IsValid())
	assert.True(t, g.Validate(tc))
}

func TestExtractMissingTenantFailsClosed(t *testing.T) {
	g := NewGuard()

	tc := g.Extract(claimsWith([2]string{types.ClaimSubject, "user-1"}))

	assert.False(t, tc.IsValid())
	assert.False(t, g.Validate(tc))

	_, err := g.RequireTenant()
	require.ErrorIs(t, err, ErrTenantRequired)
}

func TestExtractWhitespaceTenantIsInvalidNotMissing(t *testing.T) {
	g := NewGuard()

	tc := g.Extract(claimsWith(
		[2]string{types.ClaimTenantID, "   "},
		[2]string{types.ClaimObjectID, "user-1"},
	))

	assert.False(t, tc.IsValid())

	_, err := g.RequireTenant()
	require.ErrorIs(t, err, ErrTenantInvalid)
}

func TestExtractTrimsTenantClaim(t *testing.T) {
	g := NewGuard()

	tc := g.Extract(claimsWith([2]string{types.ClaimTenantID, " T1 "}))
	assert.Equal(t, "T1", tc.TenantID)

	got, err := g.RequireTenant()
	require.NoError(t, err)
	assert.Equal(t, "T1", got.TenantID)
}

func TestExtractPrefersObjectIDOverSubject(t *testing.T) {
	g := NewGuard()

	tc := g.Extract(claimsWith(
		[2]string{types.ClaimTenantID, "T1"},
		[2]string{types.ClaimSubject, "sub-1"},
		[2]string{types.ClaimObjectID, "oid-1"},
	))

	assert.Equal(t, "oid-1", tc.UserID)
}

func TestUserBelongsToTenant(t *testing.T) {
	g := NewGuard()
	g.Extract(claimsWith(
		[2]string{types.ClaimTenantID, "T1"},
		[2]string{types.ClaimObjectID, "user-1"},
	))

	tests := []struct {
		name     string
		userID   string
		tenantID string
		want     bool
	}{
		{name: "matching pair", userID: "user-1", tenantID: "T1", want: true},
		{name: "different tenant", userID: "user-1", tenantID: "T2", want: false},
		{name: "different user", userID: "user-2", tenantID: "T1", want: false},
		{name: "empty", userID: "", tenantID: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.UserBelongsToTenant(tt.userID, tt.tenantID))
		})
	}
}

func TestUserBelongsToTenantNeedsExtraction(t *testing.T) {
	g := NewGuard()
	assert.False(t, g.UserBelongsToTenant("user-1", "T1"))

	_, err := g.RequireTenant()
	assert.ErrorIs(t, err, ErrTenantRequired)
}
