// Package config loads the routedoc configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/vitalvas/routedoc/shape"
)

// DefaultFile is the configuration file looked up in the repository root.
const DefaultFile = ".routedoc.yaml"

// ErrInvalidConfig is returned when a configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete routedoc configuration.
type Config struct {
	// DocsRoot is the directory, relative to the repository root, that
	// target documents must live under.
	DocsRoot string `yaml:"docsRoot" validate:"required"`
	// Sources are doublestar globs, relative to the repository root, of the
	// handler source files to scan.
	Sources []string `yaml:"sources" validate:"required,min=1,dive,required"`
	// BaseInitializers name the functions whose string argument declares
	// the scope of a Go handler group.
	BaseInitializers []string `yaml:"baseInitializers" validate:"dive,required"`

	Info      InfoConfig       `yaml:"info"`
	Server    ServerConfig     `yaml:"server"`
	Security  SecurityConfig   `yaml:"security"`
	Schemas   shape.Thresholds `yaml:"schemas"`
	Templates TemplatesConfig  `yaml:"templates"`
}

// InfoConfig is written into the info object of new documents.
type InfoConfig struct {
	Title       string        `yaml:"title" validate:"required"`
	Description string        `yaml:"description" validate:"required"`
	Version     string        `yaml:"version" validate:"required"`
	Contact     ContactConfig `yaml:"contact" validate:"required"`
}

// ContactConfig is the contact of new documents. At least one field must
// be set.
type ContactConfig struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email" validate:"omitempty,email"`
	URL   string `yaml:"url" validate:"omitempty,url"`
}

// ServerConfig is the single server of new documents.
type ServerConfig struct {
	URL         string `yaml:"url" validate:"required"`
	Description string `yaml:"description"`
}

// SecurityConfig names the cookie security scheme every operation requires.
type SecurityConfig struct {
	SchemeName string `yaml:"schemeName" validate:"required"`
	CookieName string `yaml:"cookieName" validate:"required"`
}

// TemplatesConfig controls the shared response templates.
type TemplatesConfig struct {
	// Seed adds the standard error response templates to newly created
	// documents.
	Seed bool `yaml:"seed"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		DocsRoot:         "docs/api",
		Sources:          []string{"src/**/*.{ts,tsx,js}", "**/*.go"},
		BaseInitializers: []string{"NewBase", "newBase"},
		Info: InfoConfig{
			Title:       "API",
			Description: "Operations of the service HTTP API.",
			Version:     "1.0.0",
			Contact: ContactConfig{
				Name: "API team",
			},
		},
		Server: ServerConfig{
			URL: "/api",
		},
		Security: SecurityConfig{
			SchemeName: "cookieAuth",
			CookieName: "session",
		},
		Schemas: shape.DefaultThresholds(),
		Templates: TemplatesConfig{
			Seed: true,
		},
	}
}

// Load reads the YAML file at path over the defaults and validates the
// result. A missing file is reported with an error wrapping
// fs.ErrNotExist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration over the defaults and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	err := newValidator().Struct(c)
	if err == nil {
		return nil
	}

	var valErrs validator.ValidationErrors
	if !errors.As(err, &valErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	messages := make([]string, 0, len(valErrs))
	for _, ve := range valErrs {
		messages = append(messages, fieldPath(ve)+": "+formatValidationError(ve))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(messages, "; "))
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// fieldPath returns the dotted YAML path of a failing field without the
// root struct name: "security.schemeName".
func fieldPath(ve validator.FieldError) string {
	ns := ve.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

// formatValidationError converts a validator.FieldError to a human-readable message.
func formatValidationError(ve validator.FieldError) string {
	switch ve.Tag() {
	case "required":
		return "required"
	case "min":
		return fmt.Sprintf("must be at least %s", ve.Param())
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	default:
		if ve.Param() != "" {
			return fmt.Sprintf("failed %s=%s validation", ve.Tag(), ve.Param())
		}
		return fmt.Sprintf("failed %s validation", ve.Tag())
	}
}
