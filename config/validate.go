package config

import (
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate *validator.Validate
	once     sync.Once
)

// getValidator returns the singleton validator instance.
func getValidator() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Use mapstructure keys in error messages so they match config.yml
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
			if name == "-" || name == "" {
				return strings.ToLower(fld.Name)
			}
			return name
		})
		validate.RegisterStructValidation(validateAPIKey, Config{})
	})
	return validate
}

// validateAPIKey requires the key of the selected provider.
func validateAPIKey(sl validator.StructLevel) {
	cfg := sl.Current().Interface().(Config)
	switch cfg.Provider {
	case ProviderGemini:
		if cfg.Gemini.APIKey == "" {
			sl.ReportError(cfg.Gemini.APIKey, "gemini.api_key", "APIKey", "required", "")
		}
	case ProviderOpenAI:
		if cfg.OpenAI.APIKey == "" {
			sl.ReportError(cfg.OpenAI.APIKey, "openai.api_key", "APIKey", "required", "")
		}
	}
}

// ValidationError lists every invalid setting.
type ValidationError struct {
	Fields []FieldError
}

// FieldError is one invalid setting.
type FieldError struct {
	Key     string
	Message string
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Key+": "+f.Message)
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

// MissingAPIKey reports whether the only problem is a missing API key.
func (e *ValidationError) MissingAPIKey() bool {
	for _, f := range e.Fields {
		if !strings.HasSuffix(f.Key, "api_key") {
			return false
		}
	}
	return len(e.Fields) > 0
}

// Validate checks the configuration using struct tags.
func (c *Config) Validate() error {
	err := getValidator().Struct(*c)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	verr := &ValidationError{}
	for _, e := range validationErrors {
		verr.Fields = append(verr.Fields, FieldError{
			Key:     fieldKey(e),
			Message: formatValidationError(e),
		})
	}
	return verr
}

// fieldKey turns "Config.log.level" into "log.level".
func fieldKey(e validator.FieldError) string {
	ns := e.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	return ns
}

// formatValidationError creates a human-readable error message.
func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of [" + e.Param() + "]"
	case "gt":
		return "must be greater than " + e.Param()
	case "url":
		return "must be a valid URL"
	default:
		return "failed " + e.Tag() + " validation"
	}
}
