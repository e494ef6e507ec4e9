package model

import (
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"
)

// LocationNameMaxLength bounds Location.Name.
const LocationNameMaxLength = 50

// Location is a named point on the campus map.
type Location struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	CreatedAt time.Time `json:"created_at"`

	// Only read by ImportLocations.
	Aliases []LocationAlias `json:"aliases,omitempty"`
}

// Validate checks the name bounds and coordinate ranges.
func (l *Location) Validate() error {
	if l.Name == "" || utf8.RuneCountInString(l.Name) > LocationNameMaxLength {
		return fmt.Errorf("%w: location name must be 1-%d characters", ErrFieldLength, LocationNameMaxLength)
	}
	if l.Lat < -90 || l.Lat > 90 || l.Lng < -180 || l.Lng > 180 {
		return fmt.Errorf("%w: (%g, %g)", ErrInvalidCoordinates, l.Lat, l.Lng)
	}
	return nil
}

// FormatCoordinate renders a latitude or longitude as a decimal string, the
// representation the map client expects.
func FormatCoordinate(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
