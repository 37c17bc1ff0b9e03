package auth

import (
	"errors"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

const pinHashCost = 10

var ErrInvalidPIN = errors.New("invalid pin")

// ValidatePINFormat requires 4 to 8 digits.
func ValidatePINFormat(pin string) error {
	if len(pin) < 4 || len(pin) > 8 {
		return errors.New("pin must be 4 to 8 digits")
	}
	for _, r := range pin {
		if !unicode.IsDigit(r) {
			return errors.New("pin must be 4 to 8 digits")
		}
	}
	return nil
}

func HashPIN(pin string) (string, error) {
	if err := ValidatePINFormat(pin); err != nil {
		return "", err
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(pin), pinHashCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func ComparePIN(hashed, pin string) error {
	if hashed == "" {
		return ErrInvalidPIN
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(pin)); err != nil {
		return ErrInvalidPIN
	}
	return nil
}
