// Package foods finds food names in free-form offering descriptions.
package foods

import (
	"bufio"
	"context"
	_ "embed"
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// Extractor finds the foods mentioned in a text. It returns capitalised
// names without duplicates and never fails: an extractor that cannot do its
// work returns an empty list.
type Extractor interface {
	Extract(ctx context.Context, text string) []string
}

// Title joins extracted foods into an offering title.
func Title(foods []string) string {
	return strings.Join(foods, ", ")
}

//go:embed foods.txt
var wordList string

// maxListItemWords bounds how long a list item can be and still be taken as
// a food.
const maxListItemWords = 4

var (
	// Characters dropped before word matching.
	punctuation = strings.NewReplacer(
		".", "", "/", "", "#", "", "!", "", "$", "", "%", "", "^", "", "&", "",
		"*", "", ";", "", ":", "", "{", "", "}", "", "=", "", "-", "", "_", "",
		"`", "", "~", "", "(", "", ")", "", "'", "",
	)
	listSeparator = regexp.MustCompile(`,| and | or `)
	tokenPattern  = regexp.MustCompile(`\w+|[^\w\s]+`)
)

// Dictionary matches words and phrases against a fixed food list. Plural
// forms ending in "s" or "es" match their singular entry.
type Dictionary struct {
	foods     map[string]bool
	maxPhrase int
}

// NewDictionary builds a dictionary from lower-case entries. Entries may be
// multi-word phrases.
func NewDictionary(entries []string) *Dictionary {
	d := &Dictionary{foods: make(map[string]bool, len(entries)), maxPhrase: 1}
	for _, e := range entries {
		e = strings.Join(strings.Fields(strings.ToLower(e)), " ")
		if e == "" {
			continue
		}
		d.foods[e] = true
		if n := strings.Count(e, " ") + 1; n > d.maxPhrase {
			d.maxPhrase = n
		}
	}
	return d
}

var defaultDictionary = sync.OnceValue(func() *Dictionary {
	var entries []string
	sc := bufio.NewScanner(strings.NewReader(wordList))
	for sc.Scan() {
		entries = append(entries, sc.Text())
	}
	return NewDictionary(entries)
})

// Default returns the dictionary built from the bundled food list.
func Default() *Dictionary {
	return defaultDictionary()
}

// Extract returns the foods in text: single words and phrases first, in
// order of appearance, followed by items inferred from lists that contain
// at least one known food ("muffins, scones and bagels").
func (d *Dictionary) Extract(_ context.Context, text string) []string {
	matches := d.scanWords(text)
	matches = append(matches, d.scanLists(text)...)
	return dedupe(matches)
}

func (d *Dictionary) scanWords(text string) []string {
	cleaned := punctuation.Replace(strings.ToLower(text))
	words := strings.FieldsFunc(cleaned, func(r rune) bool {
		return r == ',' || unicode.IsSpace(r)
	})

	var matches []string
	for i := 0; i < len(words); i++ {
		n := d.matchAt(words, i)
		if n == 0 {
			continue
		}
		matches = append(matches, capitalize(strings.Join(words[i:i+n], " ")))
		i += n - 1
	}
	return matches
}

// matchAt returns the length of the longest food phrase starting at
// words[i], or 0.
func (d *Dictionary) matchAt(words []string, i int) int {
	for n := min(d.maxPhrase, len(words)-i); n > 0; n-- {
		if d.isFood(strings.Join(words[i:i+n], " ")) {
			return n
		}
	}
	return 0
}

// scanLists finds runs of short comma/and/or separated items that start at
// a known food, and takes every item in the run as a food. The item before
// the run contributes its trailing food and the item that ends it its
// leading food.
func (d *Dictionary) scanLists(text string) []string {
	var chunks []string
	for _, c := range listSeparator.Split(strings.ToLower(text), -1) {
		if c = strings.TrimSpace(c); c != "" {
			chunks = append(chunks, c)
		}
	}

	var matches []string
	start := -1
	for i, chunk := range chunks {
		if start < 0 {
			if !d.isFood(chunk) {
				continue
			}
			start = i
		}
		last := i == len(chunks)-1
		if plausibleItem(chunk) && !last {
			continue
		}

		for _, c := range chunks[start:i] {
			matches = append(matches, capitalize(c))
		}
		if start > 0 {
			if food := d.trailingFood(chunks[start-1]); food != "" {
				matches = append(matches, food)
			}
		}
		if food := d.leadingFood(chunk); food != "" {
			matches = append(matches, food)
		}
		start = -1
	}
	return matches
}

func (d *Dictionary) trailingFood(chunk string) string {
	tokens := tokenPattern.FindAllString(chunk, -1)
	for len(tokens) > 0 {
		if s := strings.Join(tokens, " "); d.isFood(s) {
			return capitalize(s)
		}
		tokens = tokens[1:]
	}
	return ""
}

func (d *Dictionary) leadingFood(chunk string) string {
	tokens := tokenPattern.FindAllString(chunk, -1)
	for len(tokens) > 0 {
		if s := strings.Join(tokens, " "); d.isFood(s) {
			return capitalize(s)
		}
		tokens = tokens[:len(tokens)-1]
	}
	return ""
}

func (d *Dictionary) isFood(s string) bool {
	if d.foods[s] {
		return true
	}
	if strings.HasSuffix(s, "s") && d.foods[s[:len(s)-1]] {
		return true
	}
	return strings.HasSuffix(s, "es") && d.foods[s[:len(s)-2]]
}

// plausibleItem reports whether a list chunk is short and plain enough to be
// a food name.
func plausibleItem(chunk string) bool {
	if strings.ContainsAny(chunk, "[.,\\/#!$%^&*;:{}=-_`~()]'?<>+\n") {
		return false
	}
	return len(strings.Fields(chunk)) <= maxListItemWords
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}
