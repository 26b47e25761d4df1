package services

import (
	"crypto/rand"
	"crypto/subtle"
	"math/big"
)

const otpLength = 6

// OTPPhase selects which code of an assignment is being verified.
type OTPPhase string

const (
	PhasePickup   OTPPhase = "pickup"
	PhaseDelivery OTPPhase = "delivery"
)

// ParsePhase returns the phase named by s.
func ParsePhase(s string) (OTPPhase, bool) {
	switch p := OTPPhase(s); p {
	case PhasePickup, PhaseDelivery:
		return p, true
	}
	return "", false
}

// OTPGenerator returns a fresh six-digit code.
type OTPGenerator func() (string, error)

var ten = big.NewInt(10)

// GenerateOTP draws each digit independently from crypto/rand, so every code
// in 000000–999999 is equally likely and leading zeros are kept.
func GenerateOTP() (string, error) {
	b := make([]byte, otpLength)
	for i := range b {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		b[i] = byte('0' + n.Int64())
	}
	return string(b), nil
}

// ValidOTPFormat reports whether code is exactly six ASCII digits.
func ValidOTPFormat(code string) bool {
	if len(code) != otpLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

func otpEqual(stored, submitted string) bool {
	return subtle.ConstantTimeCompare([]byte(stored), []byte(submitted)) == 1
}
