// Package achievements defines the fixed set of achievements a user can earn:
// every category crossed with every milestone tier.
package achievements

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"questline/internal/models"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yml
var defaultCatalog []byte

const categoryPlaceholder = "{{category}}"

// Tier is one milestone threshold and what reaching it grants.
type Tier struct {
	Milestone   int    `yaml:"milestone"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
	models.Reward `yaml:",inline"`
}

// Catalog is the set of categories and milestone tiers.
type Catalog struct {
	Categories []string `yaml:"categories"`
	Tiers      []Tier   `yaml:"milestones"`
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("built-in achievement catalog: %v", err))
	}
	return c
}

// Load reads a catalog file. An empty path yields the built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read achievement catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML catalog. Tiers are sorted ascending.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse achievement catalog: %w", err)
	}
	if len(c.Categories) == 0 {
		return nil, fmt.Errorf("achievement catalog has no categories")
	}
	if len(c.Tiers) == 0 {
		return nil, fmt.Errorf("achievement catalog has no milestones")
	}

	seenCat := make(map[string]bool, len(c.Categories))
	for _, cat := range c.Categories {
		if strings.TrimSpace(cat) == "" {
			return nil, fmt.Errorf("achievement catalog has an empty category")
		}
		if seenCat[cat] {
			return nil, fmt.Errorf("achievement catalog repeats category %q", cat)
		}
		seenCat[cat] = true
	}

	sort.SliceStable(c.Tiers, func(i, j int) bool { return c.Tiers[i].Milestone < c.Tiers[j].Milestone })
	for i, t := range c.Tiers {
		if t.Milestone <= 0 {
			return nil, fmt.Errorf("achievement milestone must be positive, got %d", t.Milestone)
		}
		if i > 0 && c.Tiers[i-1].Milestone == t.Milestone {
			return nil, fmt.Errorf("achievement catalog repeats milestone %d", t.Milestone)
		}
		if t.Coins < 0 || t.Experience < 0 {
			return nil, fmt.Errorf("milestone %d has a negative reward", t.Milestone)
		}
	}
	return &c, nil
}

// Milestones returns the tier thresholds in ascending order.
func (c *Catalog) Milestones() []int {
	out := make([]int, len(c.Tiers))
	for i, t := range c.Tiers {
		out[i] = t.Milestone
	}
	return out
}

// HasCategory reports whether category is in the catalog.
func (c *Catalog) HasCategory(category string) bool {
	for _, cat := range c.Categories {
		if cat == category {
			return true
		}
	}
	return false
}

// Tier returns the tier for milestone.
func (c *Catalog) Tier(milestone int) (Tier, bool) {
	for _, t := range c.Tiers {
		if t.Milestone == milestone {
			return t, true
		}
	}
	return Tier{}, false
}

// Achievement builds the locked achievement for (category, milestone).
func (c *Catalog) Achievement(category string, milestone int) models.Achievement {
	a := models.Achievement{Category: category, Milestone: milestone}
	if t, ok := c.Tier(milestone); ok {
		a.Title = strings.ReplaceAll(t.Title, categoryPlaceholder, category)
		a.Description = strings.ReplaceAll(t.Description, categoryPlaceholder, category)
	}
	return a
}

// Reward returns what (category, milestone) grants.
func (c *Catalog) Reward(milestone int) models.Reward {
	t, _ := c.Tier(milestone)
	return t.Reward
}

// Enumerate returns every achievement, locked, in category order then
// ascending milestone.
func (c *Catalog) Enumerate() []models.Achievement {
	out := make([]models.Achievement, 0, len(c.Categories)*len(c.Tiers))
	for _, cat := range c.Categories {
		for _, t := range c.Tiers {
			out = append(out, c.Achievement(cat, t.Milestone))
		}
	}
	return out
}

// Qualifying returns the milestones reached by completed, ascending.
func (c *Catalog) Qualifying(completed int) []int {
	var out []int
	for _, t := range c.Tiers {
		if t.Milestone <= completed {
			out = append(out, t.Milestone)
		}
	}
	return out
}
