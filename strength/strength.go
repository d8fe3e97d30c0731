// Package strength scores arbitrary strings for use as master secrets or
// stored credentials. Scoring is a pure function with fixed weights: no
// state, no I/O.
package strength

import (
	"strings"
	"unicode"
)

const (
	// MinLength is the length below which a password draws a feedback hint.
	MinLength = 8

	// SpecialChars is the character set counted as the special class.
	SpecialChars = "!@#$%^&*()_+-=[]{}|;:,.<>?"

	lengthMax  = 30 // cap on the length component
	classScore = 15 // per character class
	varietyMax = 10 // cap on the distinct-character bonus
)

// Level is a qualitative strength label.
type Level int

const (
	VeryWeak Level = iota
	Weak
	Moderate
	Strong
	VeryStrong
)

// String returns the display name of the level.
func (l Level) String() string {
	switch l {
	case VeryStrong:
		return "Very Strong"
	case Strong:
		return "Strong"
	case Moderate:
		return "Moderate"
	case Weak:
		return "Weak"
	default:
		return "Very Weak"
	}
}

// Color returns the display color of the level as a hex string.
func (l Level) Color() string {
	switch l {
	case VeryStrong:
		return "#00FF00"
	case Strong:
		return "#90EE90"
	case Moderate:
		return "#FFD700"
	case Weak:
		return "#FFA500"
	default:
		return "#FF0000"
	}
}

// Result is the outcome of scoring a password.
type Result struct {
	Score    int
	Level    Level
	Feedback []string
}

// Check scores a password in [0,100] and returns the qualitative level plus
// ordered feedback. Weights: min(3*length, 30) for length, 15 points each
// for digits, lowercase, uppercase and special characters, and
// min(distinct, 10) as a variety bonus.
func Check(password string) Result {
	runes := []rune(password)
	score := 0
	var feedback []string

	score += min(len(runes)*3, lengthMax)
	if len(runes) < MinLength {
		feedback = append(feedback, "Password should be at least 8 characters")
	}

	var hasDigit, hasLower, hasUpper, hasSpecial bool
	distinct := make(map[rune]struct{}, len(runes))
	for _, r := range runes {
		switch {
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		}
		if strings.ContainsRune(SpecialChars, r) {
			hasSpecial = true
		}
		distinct[r] = struct{}{}
	}

	// Feedback order is fixed: length, digits, lowercase, uppercase, special.
	if hasDigit {
		score += classScore
	} else {
		feedback = append(feedback, "Add numbers")
	}
	if hasLower {
		score += classScore
	} else {
		feedback = append(feedback, "Add lowercase letters")
	}
	if hasUpper {
		score += classScore
	} else {
		feedback = append(feedback, "Add uppercase letters")
	}
	if hasSpecial {
		score += classScore
	} else {
		feedback = append(feedback, "Add special characters")
	}

	score += min(len(distinct), varietyMax)

	if len(feedback) == 0 {
		feedback = []string{"Password is good!"}
	}

	return Result{Score: score, Level: LevelFromScore(score), Feedback: feedback}
}

// LevelFromScore maps a score to its qualitative level. This table
// (90/70/50/30) is the canonical one; a coarser 80/60/40/20 table that
// existed in an old display helper is intentionally not used.
func LevelFromScore(score int) Level {
	switch {
	case score >= 90:
		return VeryStrong
	case score >= 70:
		return Strong
	case score >= 50:
		return Moderate
	case score >= 30:
		return Weak
	default:
		return VeryWeak
	}
}

// Bar renders a text strength bar of the given width for a score.
func Bar(score, width int) string {
	if width <= 0 {
		return ""
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	filled := score * width / 100
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
