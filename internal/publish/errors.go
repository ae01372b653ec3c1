package publish

import (
	"fmt"
	"strings"
)

// ValidationError lists every schema violation found in an envelope, not
// just the first. Callers must not attempt delivery of an invalid envelope.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("envelope invalid: %s", strings.Join(e.Violations, "; "))
}

// ConfigurationError signals a missing endpoint or signing secret. Raised
// eagerly so misconfiguration is visible immediately instead of silently
// queuing unpublishable entries.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("publisher not configured: missing %s", strings.Join(e.Missing, ", "))
}
