package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// LookupFunc resolves an environment variable. os.LookupEnv is one.
type LookupFunc func(key string) (string, bool)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if values fail to parse or validation fails.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom is Load with a custom variable source.
func LoadFrom(lookup LookupFunc) (*Config, error) {
	cfg := &Config{}

	l := loader{lookup: lookup}
	l.loadStruct(reflect.ValueOf(cfg).Elem())
	if len(l.errs) > 0 {
		return nil, fmt.Errorf("config load:\n  - %s", strings.Join(l.errs, "\n  - "))
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// loader populates tagged struct fields and collects every problem it finds.
type loader struct {
	lookup LookupFunc
	errs   []string
}

func (l *loader) get(key string) string {
	if key == "" {
		return ""
	}
	v, _ := l.lookup(key)
	return strings.TrimSpace(v)
}

// loadStruct recursively populates struct fields from environment variables.
func (l *loader) loadStruct(v reflect.Value) {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := v.Field(i)

		if !fieldVal.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			l.loadStruct(fieldVal)
			continue
		}

		envName := field.Tag.Get("env")
		if envName == "" {
			continue
		}

		// Primary name first, then the alternate
		value := l.get(envName)
		if value == "" {
			value = l.get(field.Tag.Get("envAlt"))
		}

		if value == "" {
			if field.Tag.Get("required") == "true" {
				l.errs = append(l.errs, fmt.Sprintf("required environment variable %s is not set", envName))
				continue
			}
			value = field.Tag.Get("default")
		}

		if value == "" {
			continue
		}

		if err := setField(fieldVal, value); err != nil {
			l.errs = append(l.errs, fmt.Sprintf("invalid value for %s=%q: %v", envName, value, err))
		}
	}
}

// setField sets a reflect.Value from a string based on its type.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int64:
		// Handle time.Duration specially
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			field.Set(reflect.ValueOf(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer: %w", err)
			}
			field.SetInt(i)
		}

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		// Comma-separated, blanks dropped
		var items []string
		for _, p := range strings.Split(value, ",") {
			if p = strings.TrimSpace(p); p != "" {
				items = append(items, p)
			}
		}
		field.Set(reflect.ValueOf(items))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Database validation applies only when a database is configured
	if c.Database.Enabled() {
		if c.Database.MaxConns <= 0 {
			errs = append(errs, "DB_MAX_CONNS must be positive")
		}
		if c.Database.MinConns < 0 {
			errs = append(errs, "DB_MIN_CONNS must be non-negative")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
				c.Database.MaxConns, c.Database.MinConns))
		}
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}

	// Security validation
	if c.Security.RequireAPIKey && len(c.Security.APIKeys) == 0 {
		errs = append(errs, "REQUIRE_API_KEY is true but API_KEYS is empty; configure at least one API key or disable auth")
	}

	// Convert validation
	if c.Convert.SchemaDir == "" {
		errs = append(errs, "SCHEMA_DIR must not be empty")
	}
	if c.Convert.MaxFileSize <= 0 {
		errs = append(errs, "CONVERT_MAX_FILE_SIZE must be positive")
	}
	if c.Convert.Timeout <= 0 {
		errs = append(errs, "CONVERT_TIMEOUT must be positive")
	}
	if c.Convert.MaxConcurrent < 1 {
		errs = append(errs, "CONVERT_MAX_CONCURRENT must be at least 1")
	}
	if c.Convert.MaxWait <= 0 {
		errs = append(errs, "CONVERT_MAX_WAIT must be positive")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs are masked.
func (c *Config) String() string {
	dbURL := "(none)"
	if c.Database.Enabled() {
		dbURL = "[MASKED]"
	}

	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	fmt.Fprintf(&b, "Database: {URL: %s, MaxConns: %d, MinConns: %d}, ",
		dbURL, c.Database.MaxConns, c.Database.MinConns)
	fmt.Fprintf(&b, "Security: {RequireAPIKey: %v, APIKeys: %d configured, TrustedProxies: %v}, ",
		c.Security.RequireAPIKey, len(c.Security.APIKeys), c.Security.TrustedProxies)
	fmt.Fprintf(&b, "Convert: {SchemaDir: %q, MaxFileSize: %d, Date1904: %v, MaxConcurrent: %d}, ",
		c.Convert.SchemaDir, c.Convert.MaxFileSize, c.Convert.Date1904, c.Convert.MaxConcurrent)
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}
