package catalog

import (
	"fmt"
	"sort"
	"strconv"
)

// Template is the static description of an item kind.
type Template struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon,omitempty"`
}

// Catalog is a read-only lookup of item templates by id.
// It is safe for concurrent readers once built.
type Catalog struct {
	items map[int]Template
}

// New builds a catalog. IDs must be positive and unique.
func New(templates ...Template) (*Catalog, error) {
	c := &Catalog{items: make(map[int]Template, len(templates))}
	for _, t := range templates {
		if t.ID <= 0 {
			return nil, fmt.Errorf("item %q has non-positive id %d", t.Name, t.ID)
		}
		if _, dup := c.items[t.ID]; dup {
			return nil, fmt.Errorf("duplicate item id %d", t.ID)
		}
		c.items[t.ID] = t
	}
	return c, nil
}

// Get returns the template for id.
func (c *Catalog) Get(id int) (Template, bool) {
	if c == nil {
		return Template{}, false
	}
	t, ok := c.items[id]
	return t, ok
}

// Name returns the display name for id, falling back to the numeric id.
func (c *Catalog) Name(id int) string {
	if t, ok := c.Get(id); ok && t.Name != "" {
		return t.Name
	}
	return strconv.Itoa(id)
}

// Len returns the number of templates.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.items)
}

// All returns every template ordered by id.
func (c *Catalog) All() []Template {
	if c == nil {
		return nil
	}
	out := make([]Template, 0, len(c.items))
	for _, t := range c.items {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
