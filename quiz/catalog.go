package quiz

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"

	"github.com/korjavin/compostbot/models"
)

//go:embed items.json
var itemsJSON []byte

// Catalog is the static list of quiz items
type Catalog struct {
	items []models.QuizItem
}

// LoadCatalog parses the embedded items.json
func LoadCatalog() (*Catalog, error) {
	var items []models.QuizItem
	if err := json.Unmarshal(itemsJSON, &items); err != nil {
		return nil, fmt.Errorf("parse quiz items: %w", err)
	}
	return NewCatalog(items)
}

// NewCatalog validates items and wraps them in a Catalog
func NewCatalog(items []models.QuizItem) (*Catalog, error) {
	if len(items) == 0 {
		return nil, errors.New("quiz catalog is empty")
	}
	for i, item := range items {
		if item.Name == "" {
			return nil, fmt.Errorf("quiz item %d has no name", i)
		}
		if models.ParseCategory(string(item.Category)) == models.Unknown {
			return nil, fmt.Errorf("quiz item %q has invalid category %q", item.Name, item.Category)
		}
	}
	return &Catalog{items: append([]models.QuizItem(nil), items...)}, nil
}

// Len returns the number of items
func (c *Catalog) Len() int {
	return len(c.items)
}

// Item returns the item at index i
func (c *Catalog) Item(i int) (models.QuizItem, bool) {
	if i < 0 || i >= len(c.items) {
		return models.QuizItem{}, false
	}
	return c.items[i], true
}

// Random picks an item uniformly and returns it with its index
func (c *Catalog) Random(rng *rand.Rand) (int, models.QuizItem) {
	i := rng.Intn(len(c.items))
	return i, c.items[i]
}
