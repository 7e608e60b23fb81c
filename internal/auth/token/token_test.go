package token

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/inspectconnect/internal/clock"
	"github.com/smallbiznis/inspectconnect/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newManager(t *testing.T, clk clock.Clock) *Manager {
	t.Helper()
	m, err := NewManager(config.Config{AuthJWTSecret: "test-secret", AuthJWTTTL: time.Hour}, clk)
	require.NoError(t, err)
	return m
}

func TestIssueAndVerify(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	m := newManager(t, clk)

	signed, expiresAt, err := m.Issue(snowflake.ID(42), "admin")
	require.NoError(t, err)
	assert.Equal(t, clk.Now().Add(time.Hour), expiresAt)

	principal, err := m.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(42), principal.UserID)
	assert.Equal(t, "admin", principal.Role)
}

func TestVerifyExpiredToken(t *testing.T) {
	clk := clock.NewFakeClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	m := newManager(t, clk)

	signed, _, err := m.Issue(snowflake.ID(7), "user")
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)
	_, err = m.Verify(signed)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	clk := clock.NewFakeClock(time.Now())
	other, err := NewManager(config.Config{AuthJWTSecret: "other"}, clk)
	require.NoError(t, err)

	signed, _, err := other.Issue(snowflake.ID(1), "user")
	require.NoError(t, err)

	_, err = newManager(t, clk).Verify(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = newManager(t, clk).Verify("")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewManagerRequiresSecret(t *testing.T) {
	_, err := NewManager(config.Config{}, nil)
	assert.ErrorIs(t, err, ErrMissingSecret)
}
