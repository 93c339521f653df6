package conv

import (
	"errors"
	"strings"
)

// ErrInvalidPhone is returned when a number cannot be normalized to E.164.
// This is a validation failure: it never reaches the network.
var ErrInvalidPhone = errors.New("phone number must have at least 10 digits")

// NormalizePhone canonicalizes raw input to E.164. Ten-digit numbers get
// the +1 country prefix; an eleven-digit number starting with 1 is treated
// the same. Anything with fewer than 10 digits is rejected.
func NormalizePhone(raw string) (string, error) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	switch {
	case len(d) < 10:
		return "", ErrInvalidPhone
	case len(d) == 10:
		return "+1" + d, nil
	case len(d) == 11 && d[0] == '1':
		return "+" + d, nil
	default:
		return "+" + d, nil
	}
}
