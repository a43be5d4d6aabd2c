package models

import "strings"

// Category is the disposal bucket an item belongs to
type Category string

const (
	Compost Category = "compost"
	Recycle Category = "recycle"
	Trash   Category = "trash"
	Unknown Category = "unknown"
)

// Categories lists the answerable categories in table order
var Categories = []Category{Compost, Recycle, Trash}

// ParseCategory converts a string such as "Recycle" into a Category.
// Anything that is not one of the three buckets is Unknown.
func ParseCategory(s string) Category {
	switch c := Category(strings.ToLower(strings.TrimSpace(s))); c {
	case Compost, Recycle, Trash:
		return c
	default:
		return Unknown
	}
}

// Title returns the category name for display, e.g. "Compost"
func (c Category) Title() string {
	if c == "" {
		return ""
	}
	return strings.ToUpper(string(c[:1])) + string(c[1:])
}

// Emoji returns a bin marker for the category
func (c Category) Emoji() string {
	switch c {
	case Compost:
		return "🌱"
	case Recycle:
		return "♻️"
	case Trash:
		return "🗑"
	default:
		return "❔"
	}
}
