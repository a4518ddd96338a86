package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}

	if err := validateCustomRules(cfg); err != nil {
		return err
	}

	return nil
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	if !cfg.Adapters.HTTP.Enabled {
		return fmt.Errorf("adapters: at least one adapter must be enabled")
	}

	if cfg.Server.Metrics.Enabled && cfg.Server.Metrics.Port == cfg.Adapters.HTTP.Port {
		return fmt.Errorf("server.metrics.port: port %d already used by the HTTP adapter", cfg.Server.Metrics.Port)
	}

	if cfg.Browse.SessionTTL > 0 && cfg.Browse.ReapInterval <= 0 {
		return fmt.Errorf("browse.reap_interval: must be > 0 when session_ttl is set")
	}

	switch cfg.Root.Type {
	case "filesystem":
		if p, _ := cfg.Root.Filesystem["path"].(string); p == "" {
			return fmt.Errorf("root.filesystem.path: path is required")
		}
	case "badger":
		inMemory, _ := cfg.Root.Badger["in_memory"].(bool)
		if p, _ := cfg.Root.Badger["db_path"].(string); p == "" && !inMemory {
			return fmt.Errorf("root.badger.db_path: db_path is required unless in_memory is set")
		}
	case "s3":
		if b, _ := cfg.Root.S3["bucket"].(string); b == "" {
			return fmt.Errorf("root.s3.bucket: bucket is required")
		}
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
