package pin

import (
	"crypto/subtle"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var bcryptPrefixes = []string{"$2a$", "$2b$", "$2x$", "$2y$"}

// IsHash reports whether stored looks like a bcrypt hash
func IsHash(stored string) bool {
	for _, p := range bcryptPrefixes {
		if strings.HasPrefix(stored, p) {
			return true
		}
	}
	return false
}

// Verify compares a submitted PIN with a stored secret.
// An empty secret never verifies. A malformed hash yields an error.
func Verify(submitted, stored string) (bool, error) {
	if stored == "" {
		return false, nil
	}

	if IsHash(stored) {
		err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(submitted))
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
			return false, nil
		default:
			return false, err
		}
	}

	return subtle.ConstantTimeCompare([]byte(submitted), []byte(stored)) == 1, nil
}

// Hash returns a bcrypt hash of pin
func Hash(pin string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(pin), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
