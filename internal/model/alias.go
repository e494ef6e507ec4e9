package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// Alias kinds.
const (
	// AliasText matches a whole-word phrase in the normalized text.
	AliasText = "text"
	// AliasRegex is a case-insensitive regular expression over the
	// normalized text.
	AliasRegex = "regex"
)

// AliasMaxLength bounds LocationAlias.Pattern.
const AliasMaxLength = 100

// LocationAlias is another way a location is written in free text, e.g.
// "frist" for Frist Campus Center.
type LocationAlias struct {
	ID         int64     `json:"id,omitempty"`
	LocationID int64     `json:"location_id,omitempty"`
	Kind       string    `json:"kind"`
	Pattern    string    `json:"pattern"`
	CreatedAt  time.Time `json:"created_at,omitzero"`
}

// Validate checks the kind and pattern. Text patterns are normalized in
// place.
func (a *LocationAlias) Validate() error {
	if utf8.RuneCountInString(a.Pattern) > AliasMaxLength {
		return fmt.Errorf("%w: pattern exceeds %d characters", ErrInvalidAlias, AliasMaxLength)
	}
	switch a.Kind {
	case AliasText:
		a.Pattern = NormalizeLocationText(a.Pattern)
	case AliasRegex:
		if _, err := compileAlias(a.Pattern); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidAlias, err)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidAlias, a.Kind)
	}
	if a.Pattern == "" {
		return fmt.Errorf("%w: pattern is required", ErrInvalidAlias)
	}
	return nil
}

// matches reports whether the alias occurs in normalized text.
func (a *LocationAlias) matches(text string) bool {
	switch a.Kind {
	case AliasText:
		return strings.Contains(" "+text+" ", " "+a.Pattern+" ")
	case AliasRegex:
		re, err := compileAlias(a.Pattern)
		return err == nil && re.MatchString(text)
	}
	return false
}

func compileAlias(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("(?i)" + pattern)
}

var locationPunct = strings.NewReplacer(
	".", "", ",", "", "/", "", "#", "", "!", "", "$", "", "%", "", "^", "",
	"&", "", "*", "", ";", "", ":", "", "{", "", "}", "", "=", "", "-", "",
	"_", "", "`", "", "~", "", "(", "", ")", "", "'", "",
)

// NormalizeLocationText lowercases s, strips punctuation and collapses
// whitespace, the form aliases are matched in.
func NormalizeLocationText(s string) string {
	return strings.Join(strings.Fields(locationPunct.Replace(strings.ToLower(s))), " ")
}

// BestAlias returns the alias with the longest pattern that occurs in text.
// On a tie the earlier alias wins.
func BestAlias(text string, aliases []LocationAlias) (LocationAlias, bool) {
	text = NormalizeLocationText(text)

	var best LocationAlias
	found := false
	for _, a := range aliases {
		if len(a.Pattern) <= len(best.Pattern) && found {
			continue
		}
		if a.matches(text) {
			best, found = a, true
		}
	}
	return best, found
}
