// Package catalog serves the clinic's treatment list. The list ships with the
// binary and can be replaced at startup with CATALOG_PATH.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

var ErrNotFound = errors.New("treatment not found")

type Treatment struct {
	ID          int    `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Dosha       string `yaml:"dosha" json:"dosha"`
	Category    string `yaml:"category" json:"category"`
	DurationMin int    `yaml:"duration_min" json:"duration_min"`
	Price       int    `yaml:"price" json:"price"`
	Image       string `yaml:"image" json:"image,omitempty"`
}

// Filter narrows List. Empty fields and "all" match everything.
type Filter struct {
	Dosha    string
	Category string
	Search   string
}

type Catalog struct {
	treatments []Treatment
	byID       map[int]Treatment
}

// Load reads the catalogue at path, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	data := defaultCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read catalog: %w", err)
		}
		data = b
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var doc struct {
		Treatments []Treatment `yaml:"treatments"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	c := &Catalog{byID: make(map[int]Treatment, len(doc.Treatments))}
	for _, t := range doc.Treatments {
		if t.ID <= 0 || t.Name == "" {
			return nil, fmt.Errorf("catalog entry %q needs an id and a name", t.Name)
		}
		if t.DurationMin <= 0 || t.Price < 0 {
			return nil, fmt.Errorf("catalog entry %q has an invalid duration or price", t.Name)
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, fmt.Errorf("duplicate catalog id %d", t.ID)
		}
		c.byID[t.ID] = t
		c.treatments = append(c.treatments, t)
	}
	sort.Slice(c.treatments, func(i, j int) bool { return c.treatments[i].ID < c.treatments[j].ID })
	return c, nil
}

func matches(field, want string) bool {
	return want == "" || strings.EqualFold(want, "all") || strings.EqualFold(field, want)
}

func (c *Catalog) List(f Filter) []Treatment {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]Treatment, 0, len(c.treatments))
	for _, t := range c.treatments {
		if !matches(t.Dosha, f.Dosha) || !matches(t.Category, f.Category) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(t.Name+" "+t.Description), search) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func (c *Catalog) Get(id int) (Treatment, error) {
	t, ok := c.byID[id]
	if !ok {
		return Treatment{}, ErrNotFound
	}
	return t, nil
}
