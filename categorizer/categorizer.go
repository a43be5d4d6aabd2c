package categorizer

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/korjavin/compostbot/models"
	"gopkg.in/yaml.v3"
)

//go:embed keywords.yaml
var keywordsYAML []byte

// entry is one category block of keywords.yaml
type entry struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

// Table maps each category to its ordered keyword list.
// It is read-only after construction.
type Table struct {
	order    []models.Category
	keywords map[models.Category][]string
}

var defaultTable = mustLoad(keywordsYAML)

// Default returns the embedded keyword table
func Default() *Table {
	return defaultTable
}

// Classify categorizes a classifier label using the embedded table
func Classify(label string) models.Category {
	return defaultTable.Classify(label)
}

func mustLoad(data []byte) *Table {
	t, err := Parse(data)
	if err != nil {
		panic(fmt.Sprintf("categorizer: embedded keyword table: %v", err))
	}
	return t
}

// Parse builds a Table from YAML. Keywords are lower-cased and de-duplicated
// within a category, keeping the first occurrence.
func Parse(data []byte) (*Table, error) {
	var entries []entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse keyword table: %w", err)
	}

	t := &Table{keywords: make(map[models.Category][]string)}
	for _, e := range entries {
		c := models.ParseCategory(e.Category)
		if c == models.Unknown {
			return nil, fmt.Errorf("unknown category %q in keyword table", e.Category)
		}
		if _, dup := t.keywords[c]; dup {
			return nil, fmt.Errorf("category %q listed twice", c)
		}

		seen := make(map[string]bool, len(e.Keywords))
		var kws []string
		for _, kw := range e.Keywords {
			kw = strings.ToLower(kw)
			if kw == "" || seen[kw] {
				continue
			}
			seen[kw] = true
			kws = append(kws, kw)
		}

		t.order = append(t.order, c)
		t.keywords[c] = kws
	}
	return t, nil
}

// Classify returns the first category, in table order, having a keyword
// that is a substring of the lower-cased label. Unknown if none match.
func (t *Table) Classify(label string) models.Category {
	c, _ := t.Match(label)
	return c
}

// Match is Classify plus the keyword that decided the result
func (t *Table) Match(label string) (models.Category, string) {
	lower := strings.ToLower(label)
	if lower == "" {
		return models.Unknown, ""
	}
	for _, c := range t.order {
		for _, kw := range t.keywords[c] {
			if strings.Contains(lower, kw) {
				return c, kw
			}
		}
	}
	return models.Unknown, ""
}

// Keywords returns a copy of the keyword list for a category
func (t *Table) Keywords(c models.Category) []string {
	return append([]string(nil), t.keywords[c]...)
}

// Categories returns the categories in scan order
func (t *Table) Categories() []models.Category {
	return append([]models.Category(nil), t.order...)
}
