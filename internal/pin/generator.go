package pin

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
)

// Length is the number of digits of a generated PIN
const Length = 4

var pinSpace = big.NewInt(10000)

// Generate returns a zero-padded 4 digit PIN read from crypto/rand
func Generate() (string, error) {
	return generate(rand.Reader)
}

// GenerateDistinct returns a PIN that differs from previous
func GenerateDistinct(previous string) (string, error) {
	for {
		p, err := Generate()
		if err != nil {
			return "", err
		}
		if p != previous {
			return p, nil
		}
	}
}

func generate(r io.Reader) (string, error) {
	n, err := rand.Int(r, pinSpace)
	if err != nil {
		return "", fmt.Errorf("failed to generate pin: %w", err)
	}
	return fmt.Sprintf("%0*d", Length, n.Int64()), nil
}
