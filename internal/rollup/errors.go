package rollup

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"genorollup/pkg/domain"
)

// ConfigError reports a setting that cannot drive a rollup. It is raised
// before any output is produced.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("rollup config: %s: %s", e.Field, e.Reason)
}

// IntegrityError reports a referential inconsistency in the store, such as
// evidence whose annotation is missing or a key absent from a lookup table.
// There is no repair path; the run must stop.
type IntegrityError struct {
	Relation string
	Key      domain.Key
	Reason   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("rollup integrity: %s %d: %s", e.Relation, e.Key, e.Reason)
}

func integrityf(relation string, key domain.Key, format string, args ...any) error {
	return errors.WithStack(&IntegrityError{Relation: relation, Key: key, Reason: fmt.Sprintf(format, args...)})
}

// IsIntegrity reports whether err wraps an IntegrityError.
func IsIntegrity(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}

// IsConfig reports whether err wraps a ConfigError.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
