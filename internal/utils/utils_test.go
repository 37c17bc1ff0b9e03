package utils

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuestSessionToken(t *testing.T) {
	sessionID := uuid.New()
	userID := uuid.New()
	token := CreateGuestSessionToken("secret", sessionID, userID)

	tests := []struct {
		name    string
		secret  string
		token   string
		session uuid.UUID
		user    uuid.UUID
		want    bool
	}{
		{name: "valid", secret: "secret", token: token, session: sessionID, user: userID, want: true},
		{name: "wrong secret", secret: "other", token: token, session: sessionID, user: userID, want: false},
		{name: "other session", secret: "secret", token: token, session: uuid.New(), user: userID, want: false},
		{name: "other user", secret: "secret", token: token, session: sessionID, user: uuid.New(), want: false},
		{name: "malformed", secret: "secret", token: "abc", session: sessionID, user: userID, want: false},
		{name: "tampered signature", secret: "secret", token: token + "x", session: sessionID, user: userID, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifyGuestSessionToken(tt.secret, tt.token, tt.session, tt.user); got != tt.want {
				t.Fatalf("VerifyGuestSessionToken() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNumericRoundTrip(t *testing.T) {
	for _, v := range []string{"0", "390.00", "12.5", "-3.25", "100000.99"} {
		d := decimal.RequireFromString(v)
		assert.True(t, d.Equal(NumericToDecimal(DecimalToNumeric(d))), v)
	}
}

func TestCurrentDateInTimezone(t *testing.T) {
	instant := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, "2026-03-02", CurrentDateInTimezone("Asia/Kolkata", instant))
	assert.Equal(t, "2026-03-01", CurrentDateInTimezone("bogus", instant))

	start, end := DayBounds(instant, time.UTC)
	assert.Equal(t, 24*time.Hour, end.Sub(start))
}

func TestProcessMenuImage(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 2000, 1000))
	for x := 0; x < 2000; x++ {
		src.Set(x, 500, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	out, err := ProcessMenuImage(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 2000, out.Width)
	assert.Equal(t, "png", out.Format)

	full, _, err := image.DecodeConfig(bytes.NewReader(out.Full))
	require.NoError(t, err)
	assert.Equal(t, MenuImageMaxSide, full.Width)
	thumb, _, err := image.DecodeConfig(bytes.NewReader(out.Thumb))
	require.NoError(t, err)
	assert.Equal(t, MenuImageThumbSide, thumb.Width)
	assert.Equal(t, MenuImageThumbSide, thumb.Height)

	_, err = ProcessMenuImage([]byte("not an image"))
	assert.ErrorIs(t, err, ErrUnsupportedImage)
}
