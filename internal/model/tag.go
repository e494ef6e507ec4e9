package model

import "slices"

// Tags from the closed dietary enumeration.
const (
	TagVegetarian = "vegetarian"
	TagVegan      = "vegan"
	TagKosher     = "kosher"
	TagGlutenFree = "gluten-free"
	TagPeanutFree = "peanut-free"
)

var tags = []string{TagVegetarian, TagVegan, TagKosher, TagGlutenFree, TagPeanutFree}

// Tags returns the accepted tag values in display order. The slice is a
// copy.
func Tags() []string {
	return slices.Clone(tags)
}

// OfferingTag attaches a dietary tag to an offering.
type OfferingTag struct {
	ID         int64  `json:"id"`
	OfferingID int64  `json:"offering_id"`
	Tag        string `json:"tag"`
}

// ValidTag reports whether tag is one of the accepted values.
func ValidTag(tag string) bool {
	return slices.Contains(tags, tag)
}

// TagLabel returns the human-readable name of a tag.
func TagLabel(tag string) string {
	switch tag {
	case TagVegetarian:
		return "Vegetarian"
	case TagVegan:
		return "Vegan"
	case TagKosher:
		return "Kosher"
	case TagGlutenFree:
		return "Gluten-Free"
	case TagPeanutFree:
		return "Peanut-Free"
	}
	return tag
}
