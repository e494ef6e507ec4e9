// Package feed shapes active offerings into the map client's JSON.
package feed

import (
	"sort"
	"strings"
	"time"

	"github.com/erazemk/foodmap/internal/model"
)

// Location is the location part of an entry. Coordinates are decimal
// strings.
type Location struct {
	Name string `json:"name"`
	Lat  string `json:"lat"`
	Lng  string `json:"lng"`
}

// Offering is a single offering as the map client shows it.
type Offering struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Minutes     int    `json:"minutes"`
	Tags        string `json:"tags"`
}

// Entry groups the active offerings at one location.
type Entry struct {
	Location  Location   `json:"location"`
	Offerings []Offering `json:"offerings"`
}

// Window returns the bounds of the freshness window ending at now.
func Window(now time.Time) (from, to time.Time) {
	return now.Add(-model.FreshnessWindow), now
}

// Build groups offerings by location. Entries are ordered by each
// location's most recent offering and offerings within an entry newest
// first. The result is never nil, so it encodes as [] when empty.
func Build(now time.Time, offerings []*model.Offering) []Entry {
	sorted := append([]*model.Offering(nil), offerings...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	entries := []Entry{}
	index := make(map[int64]int)
	for _, o := range sorted {
		i, ok := index[o.LocationID]
		if !ok {
			i = len(entries)
			index[o.LocationID] = i
			entries = append(entries, Entry{Location: location(o)})
		}
		entries[i].Offerings = append(entries[i].Offerings, Offering{
			Title:       o.Title,
			Description: o.Description,
			Minutes:     o.Minutes(now),
			Tags:        strings.Join(o.Tags, ","),
		})
	}
	return entries
}

func location(o *model.Offering) Location {
	if o.Location == nil {
		return Location{}
	}
	return Location{
		Name: o.Location.Name,
		Lat:  model.FormatCoordinate(o.Location.Lat),
		Lng:  model.FormatCoordinate(o.Location.Lng),
	}
}
