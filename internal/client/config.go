package client

import (
	"fmt"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/dotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/mdouchement/zotero/pkg/libzot"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// DefaultEnvFile is the file read by Load and written by Configure.
const DefaultEnvFile = ".env"

const envPrefix = "ZOTERO_"

// Environment variables.
const (
	EnvAPIKey      = envPrefix + "API_KEY"
	EnvUserID      = envPrefix + "USER_ID"
	EnvLibraryType = envPrefix + "LIBRARY_TYPE"
	EnvBaseURL     = envPrefix + "BASE_URL"
)

// flags maps the command line flags overriding the configuration to their keys.
var flags = map[string]string{
	"library-id":   "user_id",
	"library-type": "library_type",
	"base-url":     "base_url",
}

// A Config holds client's configuration.
type Config struct {
	APIKey string `koanf:"api_key"`
	// UserID is the library ID, a user ID or a group ID according to LibraryType.
	UserID      string `koanf:"user_id"`
	LibraryType string `koanf:"library_type"`
	BaseURL     string `koanf:"base_url"`
}

// Load reads the configuration from the envfile, then from the environment, then from fs.
// A missing envfile is not an error. fs may be nil.
func Load(envfile string, fs *pflag.FlagSet) (Config, error) {
	var cfg Config
	konf := koanf.New(".")

	if _, err := os.Stat(envfile); err == nil {
		err = konf.Load(file.Provider(envfile), dotenv.ParserEnv(envPrefix, ".", key))
		if err != nil {
			return cfg, errors.Wrapf(err, "could not read %s", envfile)
		}
	}

	if err := konf.Load(env.Provider(envPrefix, ".", key), nil); err != nil {
		return cfg, errors.Wrap(err, "could not read environment")
	}

	if fs != nil {
		err := konf.Load(posflag.ProviderWithValue(fs, ".", konf, func(name, value string) (string, any) {
			return flags[name], value
		}), nil)
		if err != nil {
			return cfg, errors.Wrap(err, "could not read flags")
		}
	}

	err := konf.Unmarshal("", &cfg)
	return cfg, errors.Wrap(err, "could not parse config")
}

// Client returns a libzot client for the configured library.
func (c Config) Client(opts ...libzot.Option) (libzot.Client, error) {
	if c.APIKey == "" || c.UserID == "" {
		return nil, &libzot.Error{
			Kind:    libzot.KindConfiguration,
			Message: fmt.Sprintf("%s and %s must be set, run `zot configure`", EnvAPIKey, EnvUserID),
		}
	}

	return libzot.NewClient(libzot.Config{
		APIKey:      c.APIKey,
		LibraryID:   c.UserID,
		LibraryType: c.LibraryType,
		BaseURL:     c.BaseURL,
	}, opts...)
}

// Configure prompts for the credentials and stores them in the envfile.
func Configure(envfile string) error {
	fmt.Println("Get an API key at https://www.zotero.org/settings/keys")

	apiKey, err := readline.Password("API key: ")
	if err != nil {
		return errors.Wrap(err, "could not read API key from stdin")
	}

	userID, err := readline.Line("User or group ID: ")
	if err != nil {
		return errors.Wrap(err, "could not read library ID from stdin")
	}

	libraryType, err := readline.Line("Library type [users]: ")
	if err != nil {
		return errors.Wrap(err, "could not read library type from stdin")
	}

	return Save(envfile, Config{
		APIKey:      string(apiKey),
		UserID:      strings.TrimSpace(userID),
		LibraryType: strings.TrimSpace(libraryType),
	})
}

// Save writes the credentials in the envfile, keeping the other variables it defines.
func Save(envfile string, cfg Config) error {
	if cfg.LibraryType == "" {
		cfg.LibraryType = libzot.LibraryTypeUser
	}

	values := map[string]string{}
	if _, err := os.Stat(envfile); err == nil {
		if values, err = godotenv.Read(envfile); err != nil {
			return errors.Wrapf(err, "could not read %s", envfile)
		}
	}

	values[EnvAPIKey] = cfg.APIKey
	values[EnvUserID] = cfg.UserID
	values[EnvLibraryType] = cfg.LibraryType
	if cfg.BaseURL != "" {
		values[EnvBaseURL] = cfg.BaseURL
	}

	fmt.Println("Storing credentials in " + envfile)
	if err := godotenv.Write(values, envfile); err != nil {
		return errors.Wrapf(err, "could not write %s", envfile)
	}
	return errors.Wrap(os.Chmod(envfile, 0o600), "could not restrict permissions")
}

// key converts an environment variable to a configuration key.
func key(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, envPrefix))
}
