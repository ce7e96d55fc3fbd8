package scenarios

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError contains details about validation failures
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

// ErrInvalidSchema is returned when the schema version is not supported
var ErrInvalidSchema = errors.New("invalid or unsupported schema version")

// ErrMissingRequiredField is returned when a required field is missing
var ErrMissingRequiredField = errors.New("missing required field")

// SupportedSchemaVersions lists all supported schema versions
var SupportedSchemaVersions = []string{"1.0"}

// Validate performs comprehensive validation on a catalog.
// Returns nil if valid, or ValidationErrors with all issues found.
func (c *Catalog) Validate() error {
	var errs ValidationErrors

	if err := c.validateMetadata(); err != nil {
		errs = append(errs, err...)
	}

	if err := c.validateScenarios(); err != nil {
		errs = append(errs, err...)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (c *Catalog) validateMetadata() ValidationErrors {
	var errs ValidationErrors

	// Schema version is required
	if c.Metadata.SchemaVersion == "" {
		errs = append(errs, ValidationError{
			Field:   "metadata.schema_version",
			Message: "schema version is required",
		})
	} else if !isVersionSupported(c.Metadata.SchemaVersion) {
		errs = append(errs, ValidationError{
			Field:   "metadata.schema_version",
			Message: fmt.Sprintf("unsupported schema version %s, supported: %v", c.Metadata.SchemaVersion, SupportedSchemaVersions),
		})
	}

	// Name is required
	if c.Metadata.Name == "" {
		errs = append(errs, ValidationError{
			Field:   "metadata.name",
			Message: "catalog name is required",
		})
	} else if len(c.Metadata.Name) > 100 {
		errs = append(errs, ValidationError{
			Field:   "metadata.name",
			Message: "catalog name must be 100 characters or less",
		})
	}

	// Description length limit
	if len(c.Metadata.Description) > 2000 {
		errs = append(errs, ValidationError{
			Field:   "metadata.description",
			Message: "description must be 2000 characters or less",
		})
	}

	// Tags validation
	if len(c.Metadata.Tags) > 20 {
		errs = append(errs, ValidationError{
			Field:   "metadata.tags",
			Message: "maximum 20 tags allowed",
		})
	}
	for i, tag := range c.Metadata.Tags {
		if len(tag) > 50 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("metadata.tags[%d]", i),
				Message: "tag must be 50 characters or less",
			})
		}
	}

	return errs
}

func (c *Catalog) validateScenarios() ValidationErrors {
	var errs ValidationErrors

	if len(c.Scenarios) == 0 {
		errs = append(errs, ValidationError{
			Field:   "scenarios",
			Message: "catalog must contain at least one scenario",
		})
		return errs
	}

	seen := make(map[string]bool, len(c.Scenarios))
	for i, sc := range c.Scenarios {
		prefix := fmt.Sprintf("scenarios[%d]", i)

		if sc.Name == "" {
			errs = append(errs, ValidationError{
				Field:   prefix + ".name",
				Message: "scenario name is required",
			})
		} else {
			if len(sc.Name) > 100 {
				errs = append(errs, ValidationError{
					Field:   prefix + ".name",
					Message: "scenario name must be 100 characters or less",
				})
			}
			if seen[sc.Name] {
				errs = append(errs, ValidationError{
					Field:   prefix + ".name",
					Message: fmt.Sprintf("duplicate scenario name %q", sc.Name),
				})
			}
			seen[sc.Name] = true
		}

		if len(sc.Description) > 2000 {
			errs = append(errs, ValidationError{
				Field:   prefix + ".description",
				Message: "description must be 2000 characters or less",
			})
		}

		// A shock is a drop: -0.20 means a 20% selloff. Anything at or
		// above zero models nothing, anything below -1 loses more than
		// everything.
		if sc.MarketDrop >= 0 || sc.MarketDrop < -1 {
			errs = append(errs, ValidationError{
				Field:   prefix + ".market_drop",
				Message: fmt.Sprintf("market drop must be between -1 and 0, got %.2f", sc.MarketDrop),
			})
		}
	}

	return errs
}

func isVersionSupported(version string) bool {
	for _, v := range SupportedSchemaVersions {
		if v == version {
			return true
		}
	}
	return false
}

// ValidateQuick performs minimal validation for quick checks
func (c *Catalog) ValidateQuick() error {
	if c.Metadata.SchemaVersion == "" {
		return fmt.Errorf("%w: metadata.schema_version", ErrMissingRequiredField)
	}
	if !isVersionSupported(c.Metadata.SchemaVersion) {
		return ErrInvalidSchema
	}
	if c.Metadata.Name == "" {
		return fmt.Errorf("%w: metadata.name", ErrMissingRequiredField)
	}
	return nil
}
