// Package config loads import settings from defaults, an optional YAML
// file, KNOLIMPORT_ environment variables and command-line flags, in that
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes environment overrides. A double underscore separates
// nested keys: KNOLIMPORT_UPDATE__FIELD sets update.field.
const EnvPrefix = "KNOLIMPORT_"

// Update configures merge-style imports.
type Update struct {
	Slot  int    `koanf:"slot" validate:"min=0"`
	Field string `koanf:"field"`
}

// Config holds everything one import run needs.
type Config struct {
	DB            string   `koanf:"db" validate:"required"`
	Input         string   `koanf:"input" validate:"required"`
	Format        string   `koanf:"format" validate:"oneof=auto csv tsv markdown"`
	Delimiter     string   `koanf:"delimiter" validate:"max=2"`
	Header        bool     `koanf:"header"`
	Model         string   `koanf:"model"`
	Mapping       []string `koanf:"mapping"`
	Tags          string   `koanf:"tags"`
	TagDuplicates bool     `koanf:"tag_duplicates"`
	Update        Update   `koanf:"update"`
	NewCardOrder  string   `koanf:"new_card_order" validate:"oneof=sequential random"`
	ReposDir      string   `koanf:"repos_dir" validate:"required"`
	LogLevel      string   `koanf:"log_level" validate:"oneof=debug info warn error"`
}

// Defaults returns the built-in settings.
func Defaults() Config {
	return Config{
		DB:           "knolimport.db",
		Format:       "auto",
		NewCardOrder: "sequential",
		ReposDir:     "repos",
		LogLevel:     "info",
	}
}

// UpdateEnabled reports whether records should be merged by key.
func (c *Config) UpdateEnabled() bool {
	return c.Update.Field != ""
}

// DelimiterRune returns the configured delimiter, or 0 for the format default.
func (c *Config) DelimiterRune() rune {
	if c.Delimiter == "" {
		return 0
	}
	if c.Delimiter == `\t` {
		return '\t'
	}
	return []rune(c.Delimiter)[0]
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Flags declares the command-line flags Load understands.
func Flags(name string) *pflag.FlagSet {
	d := Defaults()
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "Path to a YAML config file")
	fs.String("db", d.DB, "Path to the SQLite collection")
	fs.StringP("input", "i", "", "Deck file, directory or git URL to import")
	fs.String("format", d.Format, "Deck format: auto, csv, tsv or markdown")
	fs.String("delimiter", "", `Field delimiter override, e.g. ";" or "\t"`)
	fs.Bool("header", false, "First row of delimited files names the columns")
	fs.String("model", "", "Model to import into (default: the collection's current model)")
	fs.StringSlice("mapping", nil, "Field name per column; _tags for the tag column, empty to skip")
	fs.String("tags", "", "Tags added to every imported note")
	fs.Bool("tag_duplicates", false, "Import duplicates tagged Duplicate:<field> instead of skipping them")
	fs.Int("update.slot", 0, "Column holding the update key")
	fs.String("update.field", "", "Field matched against the update key column; enables update mode")
	fs.String("new_card_order", d.NewCardOrder, "Order of new cards: sequential or random")
	fs.String("repos_dir", d.ReposDir, "Checkout directory for git sources")
	fs.String("log_level", d.LogLevel, "Log level: debug, info, warn or error")
	return fs
}

// Load parses args and merges every configuration layer.
func Load(args []string) (*Config, error) {
	fs := Flags("knolimport")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	// Flag defaults double as the built-in defaults: posflag only applies
	// an unchanged flag when no earlier layer set its key.
	k := koanf.New(".")
	if path, _ := fs.GetString("config"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey turns KNOLIMPORT_UPDATE__FIELD into update.field.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}
