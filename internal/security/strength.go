package security

import (
	"github.com/nbutton23/zxcvbn-go"
)

// Strength is a zxcvbn estimate of a password. Score ranges from 0 (trivially
// guessable) to 4 (very unguessable).
type Strength struct {
	Score     int
	Entropy   float64
	CrackTime string
}

// EstimateStrength scores a password. Hints such as the username are
// penalized when they appear in the password.
func EstimateStrength(password []byte, hints ...string) Strength {
	m := zxcvbn.PasswordStrength(string(password), hints)
	return Strength{
		Score:     m.Score,
		Entropy:   m.Entropy,
		CrackTime: m.CrackTimeDisplay,
	}
}

// Label names a score for display
func (s Strength) Label() string {
	switch s.Score {
	case 0:
		return "very weak"
	case 1:
		return "weak"
	case 2:
		return "fair"
	case 3:
		return "strong"
	default:
		return "very strong"
	}
}
