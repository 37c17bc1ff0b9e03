package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"

	"github.com/google/uuid"
)

func base64UrlEncode(input []byte) string {
	return strings.TrimRight(base64.URLEncoding.EncodeToString(input), "=")
}

func base64UrlDecode(input string) ([]byte, error) {
	padded := input
	if m := len(input) % 4; m != 0 {
		padded += strings.Repeat("=", 4-m)
	}
	return base64.URLEncoding.DecodeString(padded)
}

// CreateGuestSessionToken binds a guest session to the user who checked in. The token
// proves table-side presence when no bearer token is sent.
func CreateGuestSessionToken(secret string, sessionID, userID uuid.UUID) string {
	payloadB64 := base64UrlEncode([]byte(sessionID.String() + ":" + userID.String()))
	return payloadB64 + "." + base64UrlEncode(sign(secret, payloadB64))
}

// VerifyGuestSessionToken checks the signature and that the token names exactly
// sessionID and userID.
func VerifyGuestSessionToken(secret, token string, sessionID, userID uuid.UUID) bool {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return false
	}
	payloadB64, sigB64 := parts[0], parts[1]

	actual, err := base64UrlDecode(sigB64)
	if err != nil {
		return false
	}
	if !hmac.Equal(actual, sign(secret, payloadB64)) {
		return false
	}

	payloadRaw, err := base64UrlDecode(payloadB64)
	if err != nil {
		return false
	}
	return string(payloadRaw) == sessionID.String()+":"+userID.String()
}

func sign(secret, payload string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}
