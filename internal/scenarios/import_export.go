package scenarios

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ExportFormat specifies the output format for catalog export
type ExportFormat string

const (
	FormatYAML ExportFormat = "yaml"
	FormatJSON ExportFormat = "json"
)

// ExportOptions configures catalog export behavior
type ExportOptions struct {
	// Format specifies the output format (yaml or json)
	Format ExportFormat

	// IncludeMetadata stamps ID/version/timestamps into the export
	IncludeMetadata bool

	// PrettyPrint enables indented output
	PrettyPrint bool

	// AddComments adds a YAML header comment (YAML only)
	AddComments bool
}

// DefaultExportOptions returns the default export options
func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		Format:          FormatYAML,
		IncludeMetadata: true,
		PrettyPrint:     true,
		AddComments:     true,
	}
}

// ImportOptions configures catalog import behavior
type ImportOptions struct {
	// ValidateStrict performs full validation (default: true)
	ValidateStrict bool

	// GenerateNewID generates a new ID for the imported catalog
	GenerateNewID bool
}

// DefaultImportOptions returns the default import options
func DefaultImportOptions() ImportOptions {
	return ImportOptions{
		ValidateStrict: true,
		GenerateNewID:  true,
	}
}

// Export serializes a catalog to the specified format
func Export(catalog *Catalog, opts ExportOptions) ([]byte, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog cannot be nil")
	}

	// Create a copy to avoid modifying the original
	exportCatalog := *catalog

	// Update metadata for export
	if opts.IncludeMetadata {
		exportCatalog.Metadata.UpdatedAt = time.Now()
		if exportCatalog.Metadata.ID == "" {
			exportCatalog.Metadata.ID = uuid.New().String()
		}
		if exportCatalog.Metadata.SchemaVersion == "" {
			exportCatalog.Metadata.SchemaVersion = SchemaVersion
		}
		if exportCatalog.Metadata.Source == "" {
			exportCatalog.Metadata.Source = "export"
		}
	}

	switch opts.Format {
	case FormatYAML:
		return exportToYAML(&exportCatalog, opts)
	case FormatJSON:
		return exportToJSON(&exportCatalog, opts)
	default:
		return nil, fmt.Errorf("unsupported export format: %s", opts.Format)
	}
}

func exportToYAML(catalog *Catalog, opts ExportOptions) ([]byte, error) {
	var buf bytes.Buffer

	if opts.AddComments {
		buf.WriteString("# riskd Stress Scenario Catalog\n")
		buf.WriteString(fmt.Sprintf("# Schema Version: %s\n", catalog.Metadata.SchemaVersion))
		buf.WriteString(fmt.Sprintf("# Exported: %s\n", time.Now().Format(time.RFC3339)))
		buf.WriteString("\n")
	}

	encoder := yaml.NewEncoder(&buf)
	if opts.PrettyPrint {
		encoder.SetIndent(2)
	}

	if err := encoder.Encode(catalog); err != nil {
		return nil, fmt.Errorf("failed to encode catalog to YAML: %w", err)
	}

	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("failed to close YAML encoder: %w", err)
	}

	return buf.Bytes(), nil
}

func exportToJSON(catalog *Catalog, opts ExportOptions) ([]byte, error) {
	var data []byte
	var err error

	if opts.PrettyPrint {
		data, err = json.MarshalIndent(catalog, "", "  ")
	} else {
		data, err = json.Marshal(catalog)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to encode catalog to JSON: %w", err)
	}

	return data, nil
}

// ExportToFile exports a catalog to a file
func ExportToFile(catalog *Catalog, path string, opts ExportOptions) error {
	// Determine format from file extension if not specified
	if opts.Format == "" {
		ext := filepath.Ext(path)
		switch ext {
		case ".yaml", ".yml":
			opts.Format = FormatYAML
		case ".json":
			opts.Format = FormatJSON
		default:
			opts.Format = FormatYAML
		}
	}

	data, err := Export(catalog, opts)
	if err != nil {
		return fmt.Errorf("failed to export catalog: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write catalog file: %w", err)
	}

	return nil
}

// Import deserializes a catalog from bytes. Both YAML and JSON input
// are accepted; older schema versions are migrated to the current one,
// newer ones are rejected.
func Import(data []byte, opts ImportOptions) (*Catalog, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty catalog data")
	}

	// Detect format using the first non-whitespace character
	var catalog Catalog
	var parseErr error

	isJSON := false
	for _, b := range data {
		if b == ' ' || b == '\t' || b == '\n' || b == '\r' {
			continue
		}
		isJSON = b == '{' || b == '['
		break
	}

	if isJSON {
		if err := json.Unmarshal(data, &catalog); err != nil {
			// If JSON parsing fails, fall back to YAML
			if yamlErr := yaml.Unmarshal(data, &catalog); yamlErr != nil {
				parseErr = fmt.Errorf("failed to parse as JSON (%v) or YAML (%v)", err, yamlErr)
			}
		}
	} else {
		if err := yaml.Unmarshal(data, &catalog); err != nil {
			if jsonErr := json.Unmarshal(data, &catalog); jsonErr != nil {
				parseErr = fmt.Errorf("failed to parse as YAML (%v) or JSON (%v)", err, jsonErr)
			}
		}
	}

	if parseErr != nil {
		return nil, parseErr
	}

	// Apply import options
	if opts.GenerateNewID {
		catalog.Metadata.ID = uuid.New().String()
	}

	// Upgrade older catalogs to the current schema version. An empty
	// version is left for validation to report as a missing field.
	if catalog.Metadata.SchemaVersion != "" {
		if err := Migrate(&catalog); err != nil {
			return nil, err
		}
	}

	catalog.Metadata.UpdatedAt = time.Now()
	if catalog.Metadata.Source == "" {
		catalog.Metadata.Source = "import"
	}

	if opts.ValidateStrict {
		if err := catalog.Validate(); err != nil {
			return nil, fmt.Errorf("catalog validation failed: %w", err)
		}
	} else {
		if err := catalog.ValidateQuick(); err != nil {
			return nil, fmt.Errorf("catalog validation failed: %w", err)
		}
	}

	return &catalog, nil
}

// ImportFromFile imports a catalog from a file
func ImportFromFile(path string, opts ImportOptions) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	catalog, err := Import(data, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to import catalog from %s: %w", path, err)
	}

	return catalog, nil
}

// ImportFromReader imports a catalog from an io.Reader
func ImportFromReader(r io.Reader, opts ImportOptions) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog data: %w", err)
	}

	return Import(data, opts)
}

// Clone creates a deep copy of a catalog
func Clone(catalog *Catalog) (*Catalog, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog cannot be nil")
	}

	data, err := json.Marshal(catalog)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal catalog: %w", err)
	}

	var clone Catalog
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil, fmt.Errorf("failed to unmarshal catalog: %w", err)
	}

	clone.Metadata.ID = uuid.New().String()
	clone.Metadata.CreatedAt = time.Now()
	clone.Metadata.UpdatedAt = time.Now()
	clone.Metadata.Source = "clone"

	return &clone, nil
}
