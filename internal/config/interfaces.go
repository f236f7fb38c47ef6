package config

import "context"

// Source supplies fallback configuration values keyed by environment
// variable name. The loader injects a value only when the variable is not
// already set, so sources never override the environment or the .env file.
type Source interface {
	// Name identifies the source in errors, e.g. the file path.
	Name() string

	// Values returns the source's settings as environment variable names
	// mapped to their string form.
	Values(ctx context.Context) (map[string]string, error)
}
