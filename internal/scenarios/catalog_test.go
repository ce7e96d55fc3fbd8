package scenarios

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfolio/riskd/internal/risk"
)

// =============================================================================
// Catalog Tests
// =============================================================================

func TestDefault(t *testing.T) {
	c := Default()

	assert.NotNil(t, c)
	assert.Equal(t, SchemaVersion, c.Metadata.SchemaVersion)
	assert.NotEmpty(t, c.Metadata.ID)
	assert.Equal(t, "builtin", c.Metadata.Source)
	require.Len(t, c.Scenarios, 4)

	names := make([]string, 0, len(c.Scenarios))
	for _, sc := range c.Scenarios {
		names = append(names, sc.Name)
	}
	assert.Equal(t, []string{"mild_pullback", "correction", "crash", "black_swan"}, names)
}

func TestCatalog_Lookup(t *testing.T) {
	c := Default()

	sc, ok := c.Lookup("crash")
	require.True(t, ok)
	assert.Equal(t, -0.20, sc.MarketDrop)

	_, ok = c.Lookup("nonexistent")
	assert.False(t, ok)
}

// =============================================================================
// Validation Tests
// =============================================================================

func TestCatalog_Validate_Valid(t *testing.T) {
	c := Default()
	err := c.Validate()
	assert.NoError(t, err)
}

func TestCatalog_Validate_MissingSchemaVersion(t *testing.T) {
	c := Default()
	c.Metadata.SchemaVersion = ""

	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema_version")
}

func TestCatalog_Validate_UnsupportedSchemaVersion(t *testing.T) {
	c := Default()
	c.Metadata.SchemaVersion = "99.0"

	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported schema version")
}

func TestCatalog_Validate_MissingName(t *testing.T) {
	c := Default()
	c.Metadata.Name = ""

	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog name is required")
}

func TestCatalog_Validate_NameTooLong(t *testing.T) {
	c := Default()
	c.Metadata.Name = strings.Repeat("a", 101)

	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "100 characters")
}

func TestCatalog_Validate_NoScenarios(t *testing.T) {
	c := Default()
	c.Scenarios = nil

	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least one scenario")
}

func TestCatalog_Validate_InvalidScenarios(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Catalog)
		errMsg string
	}{
		{
			name: "empty scenario name",
			modify: func(c *Catalog) {
				c.Scenarios[0].Name = ""
			},
			errMsg: "scenarios[0].name",
		},
		{
			name: "duplicate scenario name",
			modify: func(c *Catalog) {
				c.Scenarios[1].Name = c.Scenarios[0].Name
			},
			errMsg: "duplicate scenario name",
		},
		{
			name: "positive market drop",
			modify: func(c *Catalog) {
				c.Scenarios[0].MarketDrop = 0.05
			},
			errMsg: "market_drop",
		},
		{
			name: "zero market drop",
			modify: func(c *Catalog) {
				c.Scenarios[0].MarketDrop = 0
			},
			errMsg: "market_drop",
		},
		{
			name: "drop below total loss",
			modify: func(c *Catalog) {
				c.Scenarios[0].MarketDrop = -1.5
			},
			errMsg: "market_drop",
		},
		{
			name: "oversized description",
			modify: func(c *Catalog) {
				c.Scenarios[0].Description = strings.Repeat("x", 2001)
			},
			errMsg: "2000 characters",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(c)

			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestCatalog_Validate_TotalLossAllowed(t *testing.T) {
	c := Default()
	c.Scenarios[0].MarketDrop = -1

	assert.NoError(t, c.Validate())
}

func TestCatalog_ValidateQuick(t *testing.T) {
	c := Default()
	err := c.ValidateQuick()
	assert.NoError(t, err)

	c.Metadata.SchemaVersion = "99.0"
	assert.ErrorIs(t, c.ValidateQuick(), ErrInvalidSchema)

	c.Metadata.SchemaVersion = ""
	assert.ErrorIs(t, c.ValidateQuick(), ErrMissingRequiredField)
}

// =============================================================================
// Export Tests
// =============================================================================

func TestExport_YAML(t *testing.T) {
	c := Default()

	opts := ExportOptions{
		Format:          FormatYAML,
		IncludeMetadata: true,
		PrettyPrint:     true,
		AddComments:     true,
	}

	data, err := Export(c, opts)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	out := string(data)
	assert.Contains(t, out, "# riskd Stress Scenario Catalog")
	assert.Contains(t, out, "metadata:")
	assert.Contains(t, out, "schema_version:")
	assert.Contains(t, out, "scenarios:")
	assert.Contains(t, out, "market_drop:")
}

func TestExport_JSON(t *testing.T) {
	c := Default()

	opts := ExportOptions{
		Format:          FormatJSON,
		IncludeMetadata: true,
		PrettyPrint:     true,
	}

	data, err := Export(c, opts)
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	var result map[string]interface{}
	err = json.Unmarshal(data, &result)
	require.NoError(t, err)
	assert.Equal(t, c.Metadata.Name, result["metadata"].(map[string]interface{})["name"])
	assert.Len(t, result["scenarios"], 4)
}

func TestExport_StampsMetadata(t *testing.T) {
	c := &Catalog{
		Metadata:  CatalogMetadata{Name: "Bare"},
		Scenarios: risk.DefaultScenarios(),
	}

	data, err := Export(c, DefaultExportOptions())
	require.NoError(t, err)

	imported, err := Import(data, ImportOptions{ValidateStrict: true})
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, imported.Metadata.SchemaVersion)
	assert.NotEmpty(t, imported.Metadata.ID)
	assert.Equal(t, "export", imported.Metadata.Source)

	// The original stays untouched
	assert.Empty(t, c.Metadata.SchemaVersion)
	assert.Empty(t, c.Metadata.ID)
}

func TestExport_NilCatalog(t *testing.T) {
	_, err := Export(nil, DefaultExportOptions())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be nil")
}

func TestExport_UnsupportedFormat(t *testing.T) {
	_, err := Export(Default(), ExportOptions{Format: "toml"})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported export format")
}

func TestExportToFile(t *testing.T) {
	c := Default()
	tmpDir := t.TempDir()

	tests := []struct {
		name     string
		file     string
		wantJSON bool
	}{
		{"YAML file", "catalog.yaml", false},
		{"YML extension", "catalog.yml", false},
		{"JSON file", "catalog.json", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, tt.file)

			// Leave Format empty so extension detection decides
			err := ExportToFile(c, path, ExportOptions{IncludeMetadata: true, PrettyPrint: true})
			require.NoError(t, err)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			require.NotEmpty(t, data)

			if tt.wantJSON {
				assert.Equal(t, byte('{'), data[0])
			} else {
				assert.Contains(t, string(data), "metadata:")
			}
		})
	}
}

// =============================================================================
// Import Tests
// =============================================================================

func TestImport_YAML(t *testing.T) {
	yamlData := `
metadata:
  schema_version: "1.0"
  name: "2008 Replay"
  description: "Historical crisis shocks"
scenarios:
  - name: lehman_week
    description: "Worst week of the 2008 crisis"
    market_drop: -0.18
  - name: full_crisis
    market_drop: -0.55
`

	c, err := Import([]byte(yamlData), DefaultImportOptions())

	require.NoError(t, err)
	assert.NotNil(t, c)
	assert.Equal(t, "2008 Replay", c.Metadata.Name)
	assert.Equal(t, "import", c.Metadata.Source)
	require.Len(t, c.Scenarios, 2)
	assert.Equal(t, "lehman_week", c.Scenarios[0].Name)
	assert.Equal(t, -0.18, c.Scenarios[0].MarketDrop)
	assert.Equal(t, -0.55, c.Scenarios[1].MarketDrop)
}

func TestImport_JSON(t *testing.T) {
	c := Default()
	jsonData, err := json.Marshal(c)
	require.NoError(t, err)

	imported, err := Import(jsonData, DefaultImportOptions())

	require.NoError(t, err)
	assert.NotNil(t, imported)
	assert.Equal(t, c.Metadata.Name, imported.Metadata.Name)
	assert.Equal(t, c.Scenarios, imported.Scenarios)
}

func TestImport_InvalidData(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"invalid YAML", "::invalid::"},
		{"missing required fields", "metadata:\n  name: test"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Import([]byte(tt.data), DefaultImportOptions())
			assert.Error(t, err)
		})
	}
}

func TestImport_GenerateNewID(t *testing.T) {
	c := Default()
	originalID := c.Metadata.ID
	data, err := json.Marshal(c)
	require.NoError(t, err)

	imported, err := Import(data, ImportOptions{ValidateStrict: true, GenerateNewID: true})
	require.NoError(t, err)
	assert.NotEqual(t, originalID, imported.Metadata.ID)

	imported, err = Import(data, ImportOptions{ValidateStrict: true})
	require.NoError(t, err)
	assert.Equal(t, originalID, imported.Metadata.ID)
}

func TestImport_MigratesOlderVersion(t *testing.T) {
	yamlData := `
metadata:
  schema_version: "0.9"
  name: "Legacy Catalog"
scenarios:
  - name: selloff
    market_drop: -0.1
`

	c, err := Import([]byte(yamlData), DefaultImportOptions())
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, c.Metadata.SchemaVersion)
}

func TestImport_RejectsNewerVersion(t *testing.T) {
	yamlData := `
metadata:
  schema_version: "2.0"
  name: "From The Future"
scenarios:
  - name: selloff
    market_drop: -0.1
`

	_, err := Import([]byte(yamlData), DefaultImportOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestImportFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "catalog.yaml")

	require.NoError(t, ExportToFile(Default(), path, DefaultExportOptions()))

	c, err := ImportFromFile(path, DefaultImportOptions())
	require.NoError(t, err)
	assert.Len(t, c.Scenarios, 4)

	_, err = ImportFromFile(filepath.Join(tmpDir, "missing.yaml"), DefaultImportOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read catalog file")
}

func TestImportFromReader(t *testing.T) {
	data, err := Export(Default(), DefaultExportOptions())
	require.NoError(t, err)

	c, err := ImportFromReader(strings.NewReader(string(data)), DefaultImportOptions())
	require.NoError(t, err)
	assert.Len(t, c.Scenarios, 4)
}

// =============================================================================
// Clone Tests
// =============================================================================

func TestClone(t *testing.T) {
	c := Default()

	clone, err := Clone(c)
	require.NoError(t, err)
	require.NotNil(t, clone)

	assert.NotEqual(t, c.Metadata.ID, clone.Metadata.ID)
	assert.Equal(t, "clone", clone.Metadata.Source)
	assert.Equal(t, c.Scenarios, clone.Scenarios)

	// The clone shares no memory with the original
	clone.Scenarios[0].Name = "mutated"
	assert.Equal(t, "mild_pullback", c.Scenarios[0].Name)
}

func TestClone_Nil(t *testing.T) {
	_, err := Clone(nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be nil")
}
