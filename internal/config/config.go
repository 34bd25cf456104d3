// Package config loads the settings of the tlp command from defaults, an
// optional YAML file and TLP_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/OpenTraceLab/OpenTraceTLP/pkg/importers"
	"github.com/OpenTraceLab/OpenTraceTLP/pkg/storage"
)

// EnvPrefix prefixes every environment override, e.g. TLP_LOG_LEVEL.
const EnvPrefix = "TLP"

// Config is the complete configuration.
type Config struct {
	Log     LogConfig     `yaml:"log" envconfig:"LOG"`
	Storage StorageConfig `yaml:"storage" envconfig:"STORAGE"`
	Import  ImportConfig  `yaml:"import" envconfig:"IMPORT"`
}

// LogConfig selects the logger level and encoding.
type LogConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json console"`
}

// StorageConfig holds container settings.
type StorageConfig struct {
	// Compression is the codec of newly written chunks.
	Compression string `yaml:"compression" envconfig:"COMPRESSION" validate:"compression"`
}

// ImportConfig holds decoder settings.
type ImportConfig struct {
	BarthWindowStart float64 `yaml:"barth_window_start" envconfig:"BARTH_WINDOW_START" validate:"gte=0,lt=1"`
	BarthWindowEnd   float64 `yaml:"barth_window_end" envconfig:"BARTH_WINDOW_END" validate:"gt=0,lte=1,gtfield=BarthWindowStart"`
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Storage: StorageConfig{
			Compression: storage.DefaultCompression.String(),
		},
		Import: ImportConfig{
			BarthWindowStart: importers.DefaultBarthWindow.Start,
			BarthWindowEnd:   importers.DefaultBarthWindow.End,
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("config: environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("compression", func(fl validator.FieldLevel) bool {
		_, err := storage.ParseCompression(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("config: %w", err)
	}
	msgs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Errorf("config: %s: invalid value %v (%s)", fe.Namespace(), fe.Value(), fe.Tag()))
	}
	return errors.Join(msgs...)
}

// Compression returns the parsed storage codec.
func (c *Config) Compression() (storage.Compression, error) {
	return storage.ParseCompression(c.Storage.Compression)
}

// BarthWindow returns the averaging window of the Barth decoder.
func (c *Config) BarthWindow() importers.Window {
	return importers.Window{Start: c.Import.BarthWindowStart, End: c.Import.BarthWindowEnd}
}
