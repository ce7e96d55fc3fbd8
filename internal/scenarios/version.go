package scenarios

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// MigrationFunc defines a function that migrates a catalog from one
// schema version to another
type MigrationFunc func(*Catalog) error

// migrations maps source version to migration functions
var migrations = map[string]MigrationFunc{
	// Example: "0.9" -> "1.0" migration
	// "0.9": migrateFrom09To10,
}

// Migrate upgrades a catalog to the current schema version
func Migrate(catalog *Catalog) error {
	if catalog == nil {
		return fmt.Errorf("catalog cannot be nil")
	}

	// Already at current version
	if catalog.Metadata.SchemaVersion == SchemaVersion {
		return nil
	}

	// Parse versions for comparison
	current, err := semver.NewVersion(catalog.Metadata.SchemaVersion)
	if err != nil {
		// Try to handle simple version strings
		current, err = semver.NewVersion(catalog.Metadata.SchemaVersion + ".0")
		if err != nil {
			return fmt.Errorf("invalid schema version: %s", catalog.Metadata.SchemaVersion)
		}
	}

	target, err := semver.NewVersion(SchemaVersion)
	if err != nil {
		return fmt.Errorf("invalid target schema version: %s", SchemaVersion)
	}

	// Check if version is newer than supported
	if current.GreaterThan(target) {
		return fmt.Errorf("catalog schema version %s is newer than supported version %s",
			catalog.Metadata.SchemaVersion, SchemaVersion)
	}

	// Apply migrations in order
	for version, migrate := range migrations {
		migrationVersion, err := semver.NewVersion(version)
		if err != nil {
			continue
		}

		if current.LessThan(migrationVersion) {
			if err := migrate(catalog); err != nil {
				return fmt.Errorf("migration from %s failed: %w", version, err)
			}
		}
	}

	// Update to current version
	catalog.Metadata.SchemaVersion = SchemaVersion

	return nil
}

// CheckCompatibility checks if a catalog can be migrated to the current version
func CheckCompatibility(catalog *Catalog) error {
	if catalog == nil {
		return fmt.Errorf("catalog cannot be nil")
	}

	if catalog.Metadata.SchemaVersion == "" {
		return fmt.Errorf("missing schema version")
	}

	current, err := semver.NewVersion(catalog.Metadata.SchemaVersion)
	if err != nil {
		current, err = semver.NewVersion(catalog.Metadata.SchemaVersion + ".0")
		if err != nil {
			return fmt.Errorf("invalid schema version: %s", catalog.Metadata.SchemaVersion)
		}
	}

	target, err := semver.NewVersion(SchemaVersion)
	if err != nil {
		return fmt.Errorf("invalid target schema version: %s", SchemaVersion)
	}

	// Version is newer than supported
	if current.GreaterThan(target) {
		return fmt.Errorf("catalog requires schema version %s, but only %s is supported",
			catalog.Metadata.SchemaVersion, SchemaVersion)
	}

	// Check if migration path exists for older versions
	if current.LessThan(target) {
		// Direct migration is supported within the same major version
		if current.Major() != target.Major() {
			return fmt.Errorf("no migration path from version %s to %s",
				catalog.Metadata.SchemaVersion, SchemaVersion)
		}
	}

	return nil
}

// GetSchemaVersion returns the current schema version
func GetSchemaVersion() string {
	return SchemaVersion
}

// CompareVersions compares two version strings
// Returns: -1 if a < b, 0 if a == b, 1 if a > b
func CompareVersions(a, b string) (int, error) {
	va, err := semver.NewVersion(a)
	if err != nil {
		va, err = semver.NewVersion(a + ".0")
		if err != nil {
			return 0, fmt.Errorf("invalid version: %s", a)
		}
	}

	vb, err := semver.NewVersion(b)
	if err != nil {
		vb, err = semver.NewVersion(b + ".0")
		if err != nil {
			return 0, fmt.Errorf("invalid version: %s", b)
		}
	}

	return va.Compare(vb), nil
}

// IsVersionSupported checks if a schema version is supported
func IsVersionSupported(version string) bool {
	for _, v := range SupportedSchemaVersions {
		if v == version {
			return true
		}
	}

	// Also check using semver comparison for patch versions
	v, err := semver.NewVersion(version)
	if err != nil {
		return false
	}

	for _, supported := range SupportedSchemaVersions {
		sv, err := semver.NewVersion(supported)
		if err != nil {
			continue
		}
		// Consider compatible if major.minor match
		if v.Major() == sv.Major() && v.Minor() == sv.Minor() {
			return true
		}
	}

	return false
}

// VersionInfo contains version information for a catalog
type VersionInfo struct {
	SchemaVersion     string `json:"schema_version"`
	IsCompatible      bool   `json:"is_compatible"`
	RequiresMigration bool   `json:"requires_migration"`
	MigrationPath     string `json:"migration_path,omitempty"`
}

// GetVersionInfo returns version information for a catalog
func GetVersionInfo(catalog *Catalog) (*VersionInfo, error) {
	if catalog == nil {
		return nil, fmt.Errorf("catalog cannot be nil")
	}

	info := &VersionInfo{
		SchemaVersion: catalog.Metadata.SchemaVersion,
	}

	err := CheckCompatibility(catalog)
	info.IsCompatible = err == nil

	if catalog.Metadata.SchemaVersion != SchemaVersion {
		cmp, err := CompareVersions(catalog.Metadata.SchemaVersion, SchemaVersion)
		if err == nil && cmp < 0 {
			info.RequiresMigration = true
			info.MigrationPath = fmt.Sprintf("%s -> %s", catalog.Metadata.SchemaVersion, SchemaVersion)
		}
	}

	return info, nil
}
