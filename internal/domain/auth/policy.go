package auth

import (
	"regexp"
	"unicode/utf8"

	autherr "github.com/librarium/discovery-auth/internal/errors"
)

// Canned pattern tokens understood by Policy. Anything else is treated as a
// regular expression.
const (
	PatternNumeric      = "numeric"
	PatternAlphanumeric = "alphanumeric"
)

// Policy describes the constraints applied to a credential field (username
// or password): length bounds in Unicode code points and an optional pattern.
type Policy struct {
	MinLength int
	MaxLength int
	Pattern   string
	Hint      string
}

// NewPolicy builds a policy, synthesizing a hint for the canned pattern
// tokens when none is configured. The field name ("username" or "password")
// feeds the synthesized hint key.
func NewPolicy(minLength, maxLength int, pattern, hint, field string) Policy {
	if hint == "" {
		switch pattern {
		case PatternNumeric, PatternAlphanumeric:
			hint = field + "_only_" + pattern
		}
	}
	return Policy{
		MinLength: minLength,
		MaxLength: maxLength,
		Pattern:   pattern,
		Hint:      hint,
	}
}

// ClampMaxLength caps the policy's maximum length at limit, also applying the
// cap when no maximum was configured at all.
func (p Policy) ClampMaxLength(limit int) Policy {
	if p.MaxLength == 0 || p.MaxLength > limit {
		p.MaxLength = limit
	}
	return p
}

// Validate checks value against the policy. Length is measured in Unicode
// code points. A custom pattern must match the entire value; an invalid
// custom pattern is a configuration error, not a policy violation.
func (p Policy) Validate(field, value string) error {
	length := utf8.RuneCountInString(value)
	if p.MinLength > 0 && length < p.MinLength {
		return autherr.TooShort(field, p.MinLength)
	}
	if p.MaxLength > 0 && length > p.MaxLength {
		return autherr.TooLong(field, p.MaxLength)
	}
	if p.Pattern == "" {
		return nil
	}

	switch p.Pattern {
	case PatternNumeric:
		if !allDigits(value) {
			return autherr.PatternMismatch(field)
		}
	case PatternAlphanumeric:
		if !allAlphanumeric(value) {
			return autherr.PatternMismatch(field)
		}
	default:
		// Anchor via a capturing group: the whole value must equal the
		// captured match, so a partial match cannot slip through.
		re, err := regexp.Compile("(" + p.Pattern + ")")
		if err != nil {
			return autherr.Configf("invalid %s pattern %q: %v", field, p.Pattern, err)
		}
		m := re.FindStringSubmatch(value)
		if m == nil || m[1] != value {
			return autherr.PatternMismatch(field)
		}
	}
	return nil
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func allAlphanumeric(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		default:
			return false
		}
	}
	return true
}
