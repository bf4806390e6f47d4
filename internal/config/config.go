package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// EnvPrefix is prepended to every environment variable override.
const EnvPrefix = "THOUGHTS_"

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Log     LogConfig
	API     APIConfig
}

type ServerConfig struct {
	Host        string   `key:"server.host" validate:"required"`
	Port        int      `key:"server.port" validate:"min=1,max=65535"`
	Token       string   `key:"server.token"`
	CORSOrigins []string `key:"server.cors_origins"`
}

type StorageConfig struct {
	DataDir string `key:"storage.data_dir" validate:"required"`
}

type LogConfig struct {
	Level string `key:"log.level" validate:"oneof=debug info warn error"`
}

type APIConfig struct {
	// OpenAPIPath is where serve writes the generated document. Empty means
	// <data_dir>/openapi.json.
	OpenAPIPath string `key:"api.openapi_path"`
	// PublicURL is the server URL advertised in the document. Empty means
	// http://<host>:<port>.
	PublicURL string `key:"api.public_url" validate:"omitempty,url"`
}

// BaseURL is the URL clients use to reach the server.
func (c Config) BaseURL() string {
	if c.API.PublicURL != "" {
		return strings.TrimRight(c.API.PublicURL, "/")
	}
	return fmt.Sprintf("http://%s:%d", c.Server.Host, c.Server.Port)
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:        "127.0.0.1",
			Port:        3000,
			CORSOrigins: []string{"*"},
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from defaults, then the JSON file at
// $XDG_CONFIG_HOME/thoughts/config.json, then THOUGHTS_* environment
// variables, and validates the result.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report failures by config key rather than Go field name.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if k := fld.Tag.Get("key"); k != "" {
			return k
		}
		return fld.Name
	})
	return v
}

func validateConfig(cfg Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validating config: %w", err)
	}
	msgs := make([]string, len(fieldErrs))
	for i, fe := range fieldErrs {
		msgs[i] = formatFieldError(fe)
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func formatFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min", "max":
		return fmt.Sprintf("%s must be between 1 and 65535, got %v", fe.Field(), fe.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", fe.Field(), fe.Param(), fe.Value())
	case "url":
		return fmt.Sprintf("%s must be a URL, got %q", fe.Field(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %q validation", fe.Field(), fe.Tag())
	}
}
