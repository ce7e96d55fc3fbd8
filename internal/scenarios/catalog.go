// Package scenarios provides the stress-scenario catalog: a named,
// versioned collection of market shocks that the engine and the API
// consume, with YAML/JSON import and export.
package scenarios

import (
	"time"

	"github.com/google/uuid"

	"github.com/quantfolio/riskd/internal/risk"
)

// SchemaVersion is the current catalog schema version
const SchemaVersion = "1.0"

// Catalog is a named collection of stress scenarios
type Catalog struct {
	Metadata  CatalogMetadata `yaml:"metadata" json:"metadata"`
	Scenarios []risk.Scenario `yaml:"scenarios" json:"scenarios"`
}

// CatalogMetadata contains catalog identification and versioning
type CatalogMetadata struct {
	// SchemaVersion for compatibility checking
	SchemaVersion string `yaml:"schema_version" json:"schema_version"`

	// ID uniquely identifies a catalog (generated on export)
	ID string `yaml:"id,omitempty" json:"id,omitempty"`

	// Name is a human-readable catalog name
	Name string `yaml:"name" json:"name"`

	// Description explains what the catalog covers
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Author identifies who created the catalog
	Author string `yaml:"author,omitempty" json:"author,omitempty"`

	// Tags for categorization
	Tags []string `yaml:"tags,omitempty" json:"tags,omitempty"`

	// Timestamps
	CreatedAt time.Time `yaml:"created_at,omitempty" json:"created_at,omitempty"`
	UpdatedAt time.Time `yaml:"updated_at,omitempty" json:"updated_at,omitempty"`

	// Source indicates where the catalog came from
	// e.g., "builtin", "user", "import", "clone"
	Source string `yaml:"source,omitempty" json:"source,omitempty"`
}

// Default returns a catalog wrapping the engine's built-in shock ladder.
func Default() *Catalog {
	return &Catalog{
		Metadata: CatalogMetadata{
			SchemaVersion: SchemaVersion,
			ID:            uuid.New().String(),
			Name:          "Built-in Shock Ladder",
			Description:   "Market-wide drops from a routine pullback to a systemic collapse",
			CreatedAt:     time.Now(),
			UpdatedAt:     time.Now(),
			Source:        "builtin",
		},
		Scenarios: risk.DefaultScenarios(),
	}
}

// Lookup returns the named scenario and whether it exists.
func (c *Catalog) Lookup(name string) (risk.Scenario, bool) {
	for _, sc := range c.Scenarios {
		if sc.Name == name {
			return sc, true
		}
	}
	return risk.Scenario{}, false
}
