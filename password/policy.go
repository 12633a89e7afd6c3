package password

import (
	"errors"
	"fmt"
	"unicode"
	"unicode/utf8"
)

// ErrPolicy is the sentinel wrapped by every [PolicyError].
var ErrPolicy = errors.New("password policy violation")

// Reason codes reported by [PolicyError]. They are stable and safe to show
// to the caller.
const (
	ReasonTooShort       = "too_short"
	ReasonTooLong        = "too_long"
	ReasonMissingUpper   = "missing_uppercase"
	ReasonMissingLower   = "missing_lowercase"
	ReasonMissingDigit   = "missing_digit"
	ReasonMissingSpecial = "missing_special"
)

// PolicyError describes the first rule a candidate password broke.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("%s: %s", ErrPolicy.Error(), e.Reason)
}

// Unwrap lets errors.Is(err, ErrPolicy) match.
func (e *PolicyError) Unwrap() error { return ErrPolicy }

// Policy holds length bounds (in characters) and required character classes.
type Policy struct {
	MinLength      int
	MaxLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
}

// DefaultPolicy returns 8..128 characters with all four classes required.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:      8,
		MaxLength:      128,
		RequireUpper:   true,
		RequireLower:   true,
		RequireDigit:   true,
		RequireSpecial: true,
	}
}

// Validate checks the policy's own bounds.
func (p Policy) Validate() error {
	if p.MinLength < 1 {
		return errors.New("password policy min length must be >= 1")
	}
	if p.MaxLength < p.MinLength {
		return errors.New("password policy max length must be >= min length")
	}
	return nil
}

// Check returns nil when candidate satisfies the policy, otherwise a
// *PolicyError naming the first failed rule. Length is checked before
// character classes.
func (p Policy) Check(candidate string) error {
	n := utf8.RuneCountInString(candidate)
	if n < p.MinLength {
		return &PolicyError{Reason: ReasonTooShort}
	}
	if p.MaxLength > 0 && n > p.MaxLength {
		return &PolicyError{Reason: ReasonTooLong}
	}

	var upper, lower, digit, special bool
	for _, r := range candidate {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}

	switch {
	case p.RequireUpper && !upper:
		return &PolicyError{Reason: ReasonMissingUpper}
	case p.RequireLower && !lower:
		return &PolicyError{Reason: ReasonMissingLower}
	case p.RequireDigit && !digit:
		return &PolicyError{Reason: ReasonMissingDigit}
	case p.RequireSpecial && !special:
		return &PolicyError{Reason: ReasonMissingSpecial}
	}
	return nil
}
