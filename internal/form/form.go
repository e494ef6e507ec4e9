// Package form validates and normalises offering submissions.
package form

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/erazemk/foodmap/internal/foods"
	"github.com/erazemk/foodmap/internal/model"
	"github.com/erazemk/foodmap/internal/store"
)

// Field names as submitted by the form.
const (
	FieldLocation    = "location"
	FieldDescription = "description"
	FieldTimestamp   = "timestamp"
	FieldRecur       = "recur"
	FieldRecurEnd    = "recur_end_datetime"
	FieldTags        = "tags"
)

// Messages shown next to invalid fields.
const (
	MsgRequired        = "This field is required."
	MsgNoFoods         = "We did not find any foods in your description."
	MsgInvalidChoice   = "Select a valid choice."
	MsgInvalidDateTime = "Enter a valid date/time."
)

// Accepted date/time layouts: the HTML datetime-local input, the legacy
// picker format, and RFC 3339.
var timeLayouts = []string{
	"2006-01-02T15:04",
	"01/02/2006 15:04",
	time.RFC3339,
}

// Deps are the collaborators a submission is checked against.
type Deps struct {
	DB        *sql.DB
	Extractor foods.Extractor
	// Location is the time zone naive timestamps are read in.
	Location *time.Location
	Now      func() time.Time
}

// Cleaned is a submission that passed validation.
type Cleaned struct {
	Location    *model.Location
	Title       string
	Description string
	Timestamp   time.Time
	Recur       model.Recurrence
	RecurEnd    *time.Time
	Tags        []string
}

// Offering converts the cleaned submission into an unsaved offering.
func (c *Cleaned) Offering() *model.Offering {
	return &model.Offering{
		Timestamp:   c.Timestamp,
		LocationID:  c.Location.ID,
		Title:       c.Title,
		Description: c.Description,
		Recur:       c.Recur,
		RecurEnd:    c.RecurEnd,
		Tags:        c.Tags,
		Location:    c.Location,
	}
}

// Errors maps field names to a message describing what is wrong.
type Errors map[string]string

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for field, msg := range e {
		parts = append(parts, field+": "+msg)
	}
	return strings.Join(parts, "; ")
}

// ParseOffering validates a submission. Exactly one of the results is
// non-nil. Recurrence pairing is left to the persistence guard.
func ParseOffering(ctx context.Context, values url.Values, deps Deps) (*Cleaned, Errors) {
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	c := &Cleaned{}
	errs := Errors{}

	loc, msg, err := parseLocation(ctx, deps.DB, values.Get(FieldLocation))
	if err != nil {
		errs[FieldLocation] = "Could not look up the location."
	} else if msg != "" {
		errs[FieldLocation] = msg
	}
	c.Location = loc

	c.Description = strings.TrimSpace(values.Get(FieldDescription))
	switch {
	case c.Description == "":
		errs[FieldDescription] = MsgRequired
	case utf8.RuneCountInString(c.Description) > model.DescriptionMaxLength:
		errs[FieldDescription] = fmt.Sprintf("Ensure this value has at most %d characters.", model.DescriptionMaxLength)
	default:
		found := deps.Extractor.Extract(ctx, c.Description)
		if len(found) == 0 {
			errs[FieldDescription] = MsgNoFoods
		}
		c.Title = Title(found)
	}

	c.Timestamp = deps.Now()
	if raw := strings.TrimSpace(values.Get(FieldTimestamp)); raw != "" {
		t, ok := parseTime(raw, deps.Location)
		if !ok {
			errs[FieldTimestamp] = MsgInvalidDateTime
		}
		c.Timestamp = t
	}

	recur, err := model.ParseRecurrence(strings.TrimSpace(values.Get(FieldRecur)))
	if err != nil {
		errs[FieldRecur] = MsgInvalidChoice
	}
	c.Recur = recur

	if raw := strings.TrimSpace(values.Get(FieldRecurEnd)); raw != "" {
		t, ok := parseTime(raw, deps.Location)
		if !ok {
			errs[FieldRecurEnd] = MsgInvalidDateTime
		} else {
			c.RecurEnd = &t
		}
	}

	for _, tag := range values[FieldTags] {
		if !model.ValidTag(tag) {
			errs[FieldTags] = MsgInvalidChoice
			break
		}
		if !slices.Contains(c.Tags, tag) {
			c.Tags = append(c.Tags, tag)
		}
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return c, nil
}

func parseLocation(ctx context.Context, db *sql.DB, raw string) (*model.Location, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, MsgRequired, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, MsgInvalidChoice, nil
	}
	loc, err := store.GetLocation(ctx, db, id)
	if err != nil {
		return nil, "", err
	}
	if loc == nil {
		return nil, MsgInvalidChoice, nil
	}
	return loc, "", nil
}

func parseTime(raw string, zone *time.Location) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, raw, zone); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Title joins the extracted foods, dropping trailing ones until the result
// fits the title limit.
func Title(found []string) string {
	for n := len(found); n > 0; n-- {
		t := foods.Title(found[:n])
		if utf8.RuneCountInString(t) <= model.TitleMaxLength {
			return t
		}
	}
	if len(found) == 0 {
		return ""
	}
	return string([]rune(found[0])[:model.TitleMaxLength])
}
