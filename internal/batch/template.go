package batch

import (
	"errors"
	"fmt"
	"strings"
)

// EntityMarker is the placeholder a query template must contain exactly once.
const EntityMarker = "{entity}"

var (
	// ErrInvalidTemplate is returned when the query template has no entity marker
	// (or more than one). The batch does not start.
	ErrInvalidTemplate = errors.New("invalid query template")
	// ErrMissingEntityColumn is returned when no entity column was chosen.
	ErrMissingEntityColumn = errors.New("entity column is required")
)

// ValidateTemplate checks that tmpl contains the entity marker exactly once.
func ValidateTemplate(tmpl string) error {
	switch n := strings.Count(tmpl, EntityMarker); {
	case n == 0:
		return fmt.Errorf("%w: %q does not contain %s", ErrInvalidTemplate, tmpl, EntityMarker)
	case n > 1:
		return fmt.Errorf("%w: %q contains %s %d times", ErrInvalidTemplate, tmpl, EntityMarker, n)
	}
	return nil
}

// BuildQuery substitutes entity into a validated template.
func BuildQuery(tmpl, entity string) string {
	return strings.Replace(tmpl, EntityMarker, entity, 1)
}
