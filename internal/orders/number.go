package orders

import (
	"crypto/rand"
	"fmt"
	"time"
)

// Unambiguous uppercase alphabet: no 0/O or 1/I.
const numberAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const numberSuffixLen = 6

// NewOrderNumber returns SF-YYYYMMDD-XXXXXX for the UTC date of now.
func NewOrderNumber(now time.Time) (string, error) {
	buf := make([]byte, numberSuffixLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("order number entropy: %w", err)
	}
	for i, b := range buf {
		buf[i] = numberAlphabet[int(b)%len(numberAlphabet)]
	}
	return fmt.Sprintf("SF-%s-%s", now.UTC().Format("20060102"), buf), nil
}
