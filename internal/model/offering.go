package model

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// Offering limits.
const (
	TitleMaxLength       = 100
	DescriptionMaxLength = 10000
	ThreadIDLength       = 16
)

// FreshnessWindow is how long an offering stays on the map after its
// timestamp.
const FreshnessWindow = 2 * time.Hour

// Offering is a single posted instance of available food.
type Offering struct {
	ID          int64      `json:"id"`
	Timestamp   time.Time  `json:"timestamp"`
	LocationID  int64      `json:"location_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Image       string     `json:"image,omitempty"`
	ThreadID    *string    `json:"thread_id,omitempty"`
	Recur       Recurrence `json:"recur,omitempty"`
	RecurEnd    *time.Time `json:"recur_end,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`

	// Joined fields (not always populated).
	Location *Location `json:"location,omitempty"`
	Tags     []string  `json:"tags,omitempty"`
}

// Validate checks the attribute-level invariants that do not need the
// database: field bounds, thread id length, tag values and the recurrence
// pairing.
func (o *Offering) Validate() error {
	if o.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is required", ErrFieldLength)
	}
	if o.Title == "" || utf8.RuneCountInString(o.Title) > TitleMaxLength {
		return fmt.Errorf("%w: title must be 1-%d characters", ErrFieldLength, TitleMaxLength)
	}
	if utf8.RuneCountInString(o.Description) > DescriptionMaxLength {
		return fmt.Errorf("%w: description exceeds %d characters", ErrFieldLength, DescriptionMaxLength)
	}
	if o.ThreadID != nil && len(*o.ThreadID) != ThreadIDLength {
		return fmt.Errorf("%w (got %d)", ErrThreadIDLength, len(*o.ThreadID))
	}
	for _, tag := range o.Tags {
		if !ValidTag(tag) {
			return fmt.Errorf("%w: %q", ErrUnknownTag, tag)
		}
	}
	return o.validateRecurrence()
}

func (o *Offering) validateRecurrence() error {
	switch {
	case o.Recur == RecurNone && o.RecurEnd == nil:
		return nil
	case o.Recur == RecurNone:
		return fmt.Errorf("%w: end date given without a recurrence", ErrRecurrence)
	case !o.Recur.Valid():
		return fmt.Errorf("%w: unknown value %q", ErrRecurrence, o.Recur)
	case o.RecurEnd == nil:
		return fmt.Errorf("%w: %s recurrence needs an end date", ErrRecurrence, o.Recur)
	case !o.RecurEnd.After(o.Timestamp):
		return fmt.Errorf("%w: end date must be after the timestamp", ErrRecurrence)
	}
	return nil
}

// Minutes returns the whole minutes elapsed between the offering's timestamp
// and now, or 0 for offerings that have not started yet.
func (o *Offering) Minutes(now time.Time) int {
	d := now.Sub(o.Timestamp)
	if d < 0 {
		return 0
	}
	return int(d / time.Minute)
}

// Successor returns the next occurrence of a recurring offering, or false if
// the offering does not recur or the series ends before cutoff is passed.
//
// This is not always the occurrence right after o.Timestamp. When the sweep
// ran late, occurrences at or before cutoff are skipped so a successor is
// never already expired; if the first unexpired occurrence falls on or after
// RecurEnd the series ends here, even though a skipped occurrence was still
// inside it. The arithmetic follows o.Timestamp's location.
func (o *Offering) Successor(cutoff time.Time) (*Offering, bool) {
	if !o.Recur.Valid() || o.RecurEnd == nil {
		return nil, false
	}

	next := o.Recur.Next(o.Timestamp)
	for !next.After(cutoff) && next.Before(*o.RecurEnd) {
		next = o.Recur.Next(next)
	}
	if !next.Before(*o.RecurEnd) {
		return nil, false
	}

	s := &Offering{
		Timestamp:   next,
		LocationID:  o.LocationID,
		Title:       o.Title,
		Description: o.Description,
		Image:       o.Image,
		Recur:       o.Recur,
		Location:    o.Location,
	}
	if o.ThreadID != nil {
		id := *o.ThreadID
		s.ThreadID = &id
	}
	end := *o.RecurEnd
	s.RecurEnd = &end
	s.Tags = append([]string(nil), o.Tags...)
	return s, true
}
