package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// PasswordResetTokens mints and checks stateless password-reset tokens.
// A token signs (user id, password version, expiry); no row is persisted.
// Bumping the user's password version makes every previously issued token
// unverifiable, which is how redeemed tokens become single-use.
type PasswordResetTokens struct {
	secret []byte
	ttl    time.Duration
}

// NewPasswordResetTokens creates a generator keyed with secret whose tokens
// expire after ttl.
func NewPasswordResetTokens(secret string, ttl time.Duration) *PasswordResetTokens {
	return &PasswordResetTokens{secret: []byte(secret), ttl: ttl}
}

// EncodeUID returns the transport form of a user id.
func EncodeUID(id uint) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatUint(uint64(id), 10)))
}

// DecodeUID reverses EncodeUID.
func DecodeUID(s string) (uint, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return 0, fmt.Errorf("decode uid: %w", err)
	}
	id, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode uid: %w", err)
	}
	return uint(id), nil
}

// Generate issues a token bound to the user's current credential state.
func (g *PasswordResetTokens) Generate(userID uint, passwordVersion int) string {
	ts := strconv.FormatInt(time.Now().Add(g.ttl).Unix(), 36)
	return ts + "-" + g.sign(userID, passwordVersion, ts)
}

// Check reports whether token is valid for the user's current state.
func (g *PasswordResetTokens) Check(userID uint, passwordVersion int, token string) bool {
	ts, sig, ok := strings.Cut(token, "-")
	if !ok {
		return false
	}
	expires, err := strconv.ParseInt(ts, 36, 64)
	if err != nil || time.Now().Unix() > expires {
		return false
	}
	expected := g.sign(userID, passwordVersion, ts)
	return hmac.Equal([]byte(sig), []byte(expected))
}

func (g *PasswordResetTokens) sign(userID uint, passwordVersion int, ts string) string {
	mac := hmac.New(sha256.New, g.secret)
	fmt.Fprintf(mac, "%d|%d|%s", userID, passwordVersion, ts)
	return hex.EncodeToString(mac.Sum(nil))
}
