package locale

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Alphabet is the ordered letter set of one locale, with the case mapping
// and sort order derived from it.
type Alphabet struct {
	letters []rune
	order   map[rune]int
	lower   cases.Caser
	upper   cases.Caser
}

// NewAlphabet builds an alphabet from an ordered string of lowercase
// letters. langCode selects the case-mapping rules (Turkish dotless i and
// friends are locale-sensitive).
func NewAlphabet(langCode, letters string) (*Alphabet, error) {
	tag, err := language.Parse(langCode)
	if err != nil {
		tag = language.Und
	}
	a := &Alphabet{
		letters: []rune(letters),
		order:   make(map[rune]int, len(letters)),
		lower:   cases.Lower(tag),
		upper:   cases.Upper(tag),
	}
	for i, r := range a.letters {
		if _, dup := a.order[r]; dup {
			return nil, fmt.Errorf("duplicate letter %q", r)
		}
		a.order[r] = i
	}
	return a, nil
}

// Contains reports whether r is a letter of this alphabet.
func (a *Alphabet) Contains(r rune) bool {
	_, ok := a.order[r]
	return ok
}

// SortKey returns the position of r in the alphabet, or -1.
func (a *Alphabet) SortKey(r rune) int {
	if i, ok := a.order[r]; ok {
		return i
	}
	return -1
}

// Letters returns the ordered letter slice.
func (a *Alphabet) Letters() []rune {
	return a.letters
}

// Size returns the number of letters.
func (a *Alphabet) Size() int {
	return len(a.letters)
}

// Lower lowercases s with the locale's case rules.
func (a *Alphabet) Lower(s string) string {
	return a.lower.String(s)
}

// Upper uppercases s with the locale's case rules.
func (a *Alphabet) Upper(s string) string {
	return a.upper.String(s)
}

// Normalize lowercases s and verifies every rune belongs to the alphabet.
func (a *Alphabet) Normalize(s string) (string, error) {
	low := a.lower.String(s)
	for _, r := range low {
		if !a.Contains(r) {
			return "", fmt.Errorf("letter %q not in alphabet", r)
		}
	}
	return low, nil
}

// Less compares two words by alphabet order, for leaderboard and
// vocabulary listings.
func (a *Alphabet) Less(x, y string) bool {
	xr, yr := []rune(x), []rune(y)
	for i := 0; i < len(xr) && i < len(yr); i++ {
		kx, ky := a.SortKey(xr[i]), a.SortKey(yr[i])
		if kx != ky {
			return kx < ky
		}
	}
	return len(xr) < len(yr)
}

// String renders the alphabet for diagnostics.
func (a *Alphabet) String() string {
	var sb strings.Builder
	for _, r := range a.letters {
		sb.WriteRune(r)
	}
	return sb.String()
}
