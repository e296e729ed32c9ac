package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{Issuer: "attendance-service", Audience: "attendance-clients", TTL: time.Hour, KID: "k1"}
}

func TestGenerateAndVerify(t *testing.T) {
	m, err := NewEphemeral(testConfig())
	require.NoError(t, err)

	token, jti, err := m.Generator.Generate(SessionToken{
		SessionID: "s1", UserID: "u1", Role: "employee", CompanyID: "c1", DeviceID: "d1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, jti)

	claims, err := m.Verifier.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "s1", claims.SessionID)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, jti, claims.ID)
	assert.False(t, claims.IsAdmin())
}

func TestVerifyRejectsForeignAudience(t *testing.T) {
	m, err := NewEphemeral(testConfig())
	require.NoError(t, err)

	other := testConfig()
	other.Audience = "someone-else"
	foreign := NewGenerator(m.Generator.priv, other.Issuer, other.Audience, other.KID, other.TTL)

	token, _, err := foreign.Generate(SessionToken{SessionID: "s1", UserID: "u1"})
	require.NoError(t, err)

	_, err = m.Verifier.Verify(token)
	assert.Error(t, err)
}

func TestVerifyRejectsExpired(t *testing.T) {
	m, err := NewEphemeral(testConfig())
	require.NoError(t, err)
	m.Generator.now = func() time.Time { return time.Now().Add(-3 * time.Hour) }

	token, _, err := m.Generator.Generate(SessionToken{SessionID: "s1", UserID: "u1"})
	require.NoError(t, err)

	_, err = m.Verifier.Verify(token)
	assert.Error(t, err)
}

func TestWriteKeyPairRoundTrip(t *testing.T) {
	dir := t.TempDir()
	privPath, pubPath := dir+"/priv.pem", dir+"/pub.pem"
	require.NoError(t, WriteKeyPair(privPath, pubPath))

	cfg := testConfig()
	cfg.PrivPath, cfg.PubPath = privPath, pubPath
	m, err := LoadAndBuild(cfg)
	require.NoError(t, err)

	token, _, err := m.Generator.Generate(SessionToken{SessionID: "s1", UserID: "u1"})
	require.NoError(t, err)
	_, err = m.Verifier.Verify(token)
	assert.NoError(t, err)
}

func TestVerifyRejectsUnboundToken(t *testing.T) {
	m, err := NewEphemeral(testConfig())
	require.NoError(t, err)

	token, _, err := m.Generator.Generate(SessionToken{UserID: "u1"})
	require.NoError(t, err)

	_, err = m.Verifier.Verify(token)
	assert.ErrorIs(t, err, ErrUnboundToken)
}

func TestManagerSetClock(t *testing.T) {
	m, err := NewEphemeral(testConfig())
	require.NoError(t, err)
	issued := time.Date(2020, 1, 2, 9, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return issued })

	token, _, err := m.Generator.Generate(SessionToken{SessionID: "s1", UserID: "u1"})
	require.NoError(t, err)

	claims, err := m.Verifier.Verify(token)
	require.NoError(t, err)
	assert.True(t, claims.IssuedAt.Time.Equal(issued))

	m.Verifier.SetClock(func() time.Time { return issued.Add(2 * time.Hour) })
	_, err = m.Verifier.Verify(token)
	assert.Error(t, err)
}
