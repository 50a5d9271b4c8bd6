package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration against its struct validation tags.
// Called by Load after defaults are applied, and by the config commands
// when inspecting a file.
func Validate(cfg *Config) error {
	validate := validator.New()

	if err := validate.Struct(cfg); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			// Report the first failure with its field path and tag, which
			// is more useful than the full multi-error dump.
			first := errs[0]
			return fmt.Errorf("field %s failed validation on '%s' (value: %v)",
				first.Namespace(), first.Tag(), first.Value())
		}
		return err
	}

	return nil
}
