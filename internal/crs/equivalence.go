package crs

import (
	"fmt"
	"strings"
)

// Policy selects how two descriptors are compared.
type Policy int

const (
	// Lexical compares lower-cased, trimmed descriptor text. It is weak: the
	// same CRS serialized with a different key order, whitespace or optional
	// metadata compares unequal.
	Lexical Policy = iota
	// Normalized parses both descriptors and compares them structurally.
	Normalized
)

func (p Policy) String() string {
	if p == Normalized {
		return "normalized"
	}
	return "lexical"
}

// ParsePolicy accepts "lexical" / "string" and "normalized" / "pyproj".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lexical", "string":
		return Lexical, nil
	case "normalized", "normalised", "pyproj", "":
		return Normalized, nil
	default:
		return Lexical, fmt.Errorf("unknown equivalence policy %q", s)
	}
}

// Equivalent reports whether a and b denote the same CRS under policy.
// Lexical never fails. Normalized fails with ErrInvalidCRS when either side
// cannot be parsed.
func Equivalent(a, b Descriptor, policy Policy, r Resolver) (bool, error) {
	if policy == Lexical {
		return lexicalKey(a) == lexicalKey(b), nil
	}
	if r == nil {
		r = DefaultResolver
	}
	ca, err := r.Parse(a)
	if err != nil {
		return false, err
	}
	cb, err := r.Parse(b)
	if err != nil {
		return false, err
	}
	return Equal(ca, cb), nil
}

// AllEquivalent reports whether every descriptor matches the first one. Zero
// or one descriptors are trivially equivalent. Comparison is against the first
// element only, so a non-transitive policy is never asked about other pairs.
func AllEquivalent(list []Descriptor, policy Policy, r Resolver) (bool, error) {
	if len(list) < 2 {
		return true, nil
	}
	if policy == Lexical {
		first := lexicalKey(list[0])
		for _, d := range list[1:] {
			if lexicalKey(d) != first {
				return false, nil
			}
		}
		return true, nil
	}

	if r == nil {
		r = DefaultResolver
	}
	first, err := r.Parse(list[0])
	if err != nil {
		return false, err
	}
	same := true
	for _, d := range list[1:] {
		c, err := r.Parse(d)
		if err != nil {
			return false, err
		}
		if !Equal(first, c) {
			same = false
		}
	}
	return same, nil
}

func lexicalKey(d Descriptor) string {
	return strings.ToLower(strings.TrimSpace(string(d)))
}
