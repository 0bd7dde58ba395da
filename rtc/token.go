// Package rtc issues short-lived join tokens for the audio/video
// conferencing provider, keyed by (channel, uid). The media transport
// itself is entirely the provider's concern; this is only the token
// endpoint clients hit before joining a call.
package rtc

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidToken = errors.New("invalid or expired token")

type Issuer struct {
	appID  string
	secret []byte
	ttl    time.Duration
}

func NewIssuer(appID, secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Issuer{appID: appID, secret: []byte(secret), ttl: ttl}
}

// Token mints a join token for uid on channel: the signed claim
// appID:channel:uid:expiry plus its HMAC-SHA256, base64-encoded.
func (i *Issuer) Token(channel, uid string) (string, error) {
	if channel == "" || uid == "" {
		return "", fmt.Errorf("rtc: channel and uid are required")
	}
	exp := time.Now().Add(i.ttl).Unix()
	claim := fmt.Sprintf("%s:%s:%s:%d", i.appID, channel, uid, exp)
	mac := hmac.New(sha256.New, i.secret)
	mac.Write([]byte(claim))
	sig := mac.Sum(nil)
	return base64.RawURLEncoding.EncodeToString([]byte(claim)) + "." +
		base64.RawURLEncoding.EncodeToString(sig), nil
}

// Verify checks the signature and expiry and returns the channel and
// uid the token was minted for.
func (i *Issuer) Verify(token string) (channel, uid string, err error) {
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return "", "", ErrInvalidToken
	}
	claimRaw, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", "", ErrInvalidToken
	}
	sig, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", "", ErrInvalidToken
	}
	mac := hmac.New(sha256.New, i.secret)
	mac.Write(claimRaw)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return "", "", ErrInvalidToken
	}

	fields := strings.Split(string(claimRaw), ":")
	if len(fields) != 4 || fields[0] != i.appID {
		return "", "", ErrInvalidToken
	}
	exp, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil || time.Now().Unix() > exp {
		return "", "", ErrInvalidToken
	}
	return fields[1], fields[2], nil
}
