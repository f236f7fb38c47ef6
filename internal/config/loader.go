// loader.go implements the configuration loading lifecycle.
//
// The loading sequence is:
//  1. Load .env file via godotenv (non-fatal if absent).
//  2. Ask each Source (e.g. the YAML run file) for its values and inject
//     those whose variable is not already set into the environment.
//  3. Use envconfig to process struct tags and populate the Config struct.
//  4. Populate BuildInfo from linker-injected variables.
//  5. Validate the struct using go-playground/validator.
package config

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"shadowroads/internal/projection"
)

// ConfigError is a diagnostic error type returned by LoadConfig to aid debugging.
// It wraps a ConfigErrorType and an underlying error message.
type ConfigError struct {
	Type    ConfigErrorType
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for use with errors.Is/errors.As.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// sourceTimeout bounds how long a fallback source may take to answer.
const sourceTimeout = 10 * time.Second

// envLookup is a function type for looking up environment variables.
// It matches the signature of os.LookupEnv and allows injection for testing.
type envLookup func(key string) (string, bool)

// envSet is a function type for setting environment variables.
// It matches the signature of os.Setenv and allows injection for testing.
type envSet func(key, value string) error

// loaderDeps holds the injectable dependencies for the loader, enabling
// testing without mutating global state.
type loaderDeps struct {
	lookupEnv envLookup
	setEnv    envSet
	dotenv    func() error
}

// defaultDeps returns the standard OS-backed dependencies.
func defaultDeps() loaderDeps {
	return loaderDeps{
		lookupEnv: os.LookupEnv,
		setEnv:    os.Setenv,
		// godotenv.Load() does NOT override existing environment variables.
		dotenv: func() error { return godotenv.Load() },
	}
}

// LoadConfig loads and validates the run configuration. Sources are
// consulted in order; an earlier source wins over a later one, and none of
// them override variables already present in the environment.
func LoadConfig(sources ...Source) (*Config, error) {
	return loadConfigWithDeps(sources, defaultDeps())
}

// loadConfigWithDeps is the internal implementation of LoadConfig that accepts
// injectable dependencies for testing.
func loadConfigWithDeps(sources []Source, deps loaderDeps) (*Config, error) {
	// Step 1: Load .env file (non-fatal if absent).
	_ = deps.dotenv()

	// Step 2: Inject fallback values from the configured sources.
	for _, src := range sources {
		if err := injectSource(src, deps); err != nil {
			return nil, err
		}
	}

	// Step 3: Process envconfig tags to populate the Config struct.
	// The empty prefix "" means envconfig will use the exact tag values.
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &ConfigError{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	// Step 4: Populate build metadata from linker-injected variables.
	cfg.Build = NewBuildInfo()

	// Step 5: Validate the populated struct.
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the struct rules. Callers that adjust a loaded Config
// (e.g. from command-line flags) must validate it again.
func (c *Config) Validate() error {
	if err := newValidator().Struct(c); err != nil {
		return &ConfigError{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	// Registration only fails for an empty tag or nil function.
	_ = v.RegisterValidation("crs", func(fl validator.FieldLevel) bool {
		target := strings.TrimSpace(fl.Field().String())
		if strings.EqualFold(target, projection.AutoCRS) {
			return true
		}
		_, _, err := projection.Resolve(target)
		return err == nil
	})
	return v
}

// injectSource fetches the values of one source and sets every variable
// that is not already present. This respects the priority chain:
// OS Environment > Dotenv > Source.
func injectSource(src Source, deps loaderDeps) error {
	ctx, cancel := context.WithTimeout(context.Background(), sourceTimeout)
	defer cancel()

	values, err := src.Values(ctx)
	if err != nil {
		return &ConfigError{
			Type:    ErrSourceResolution,
			Message: fmt.Sprintf("failed to read configuration source %s", src.Name()),
			Err:     err,
		}
	}

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if _, exists := deps.lookupEnv(key); exists {
			continue
		}
		if err := deps.setEnv(key, values[key]); err != nil {
			return &ConfigError{
				Type:    ErrSourceResolution,
				Message: fmt.Sprintf("failed to set %s from %s", key, src.Name()),
				Err:     err,
			}
		}
	}
	return nil
}
