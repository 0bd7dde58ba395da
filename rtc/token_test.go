package rtc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	iss := NewIssuer("banter", "secret", time.Hour)

	tok, err := iss.Token("alice_bob", "alice")
	require.NoError(t, err)

	channel, uid, err := iss.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "alice_bob", channel)
	assert.Equal(t, "alice", uid)
}

func TestTokenRequiresChannelAndUID(t *testing.T) {
	iss := NewIssuer("banter", "secret", time.Hour)

	_, err := iss.Token("", "alice")
	assert.Error(t, err)
	_, err = iss.Token("c1", "")
	assert.Error(t, err)
}

func TestTokenExpiry(t *testing.T) {
	iss := NewIssuer("banter", "secret", time.Nanosecond)
	// the zero-or-negative guard in the constructor must not kick in
	iss.ttl = -time.Minute

	tok, err := iss.Token("c1", "alice")
	require.NoError(t, err)

	_, _, err = iss.Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenWrongSecret(t *testing.T) {
	tok, err := NewIssuer("banter", "secret", time.Hour).Token("c1", "alice")
	require.NoError(t, err)

	_, _, err = NewIssuer("banter", "other", time.Hour).Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenWrongApp(t *testing.T) {
	tok, err := NewIssuer("other-app", "secret", time.Hour).Token("c1", "alice")
	require.NoError(t, err)

	_, _, err = NewIssuer("banter", "secret", time.Hour).Verify(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenGarbage(t *testing.T) {
	iss := NewIssuer("banter", "secret", time.Hour)
	for _, tok := range []string{"", "x", "a.b", "!!!.???"} {
		_, _, err := iss.Verify(tok)
		assert.ErrorIs(t, err, ErrInvalidToken, "token=%q", tok)
	}
}
