package app

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// Settings are the host-side options: where configuration lives and how to log.
// Plugin behaviour itself comes from the .properties files.
type Settings struct {
	PluginID    string
	Description string
	ConfigDir   string
	ConfigFiles []string
	EnvFile     string
	Debug       bool
}

// Setting keys, shared by flags, environment (SQLPLUGIN_ prefix) and defaults.
const (
	keyPluginID    = "plugin-id"
	keyDescription = "description"
	keyConfigDir   = "config-dir"
	keyConfig      = "config"
	keyEnvFile     = "env-file"
	keyDebug       = "debug"
)

// EnvPrefix prefixes every environment variable the host reads.
const EnvPrefix = "SQLPLUGIN"

// newViper returns a viper instance with defaults and environment binding.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(keyPluginID, "sql-lookup")
	v.SetDefault(keyDescription, "Keyed single-record SQL lookups")
	v.SetDefault(keyConfigDir, ".")
	v.SetDefault(keyEnvFile, ".env")
	v.SetDefault(keyDebug, false)
	return v
}

// loadEnvFile loads the env file if it exists. Variables already set win.
func loadEnvFile(fs afero.Fs, path string) error {
	if path == "" {
		return nil
	}
	if _, err := fs.Stat(path); err != nil {
		return nil
	}
	return godotenv.Load(path)
}

// LoadSettings resolves settings from v after loading the env file it names.
func LoadSettings(v *viper.Viper, fs afero.Fs) (Settings, error) {
	if err := loadEnvFile(fs, v.GetString(keyEnvFile)); err != nil {
		return Settings{}, err
	}
	s := Settings{
		PluginID:    v.GetString(keyPluginID),
		Description: v.GetString(keyDescription),
		ConfigDir:   v.GetString(keyConfigDir),
		ConfigFiles: v.GetStringSlice(keyConfig),
		EnvFile:     v.GetString(keyEnvFile),
		Debug:       v.GetBool(keyDebug) || os.Getenv("DEBUG") == "1",
	}
	return s, nil
}

// DefaultConfigFile is <config-dir>/<plugin-id>.properties, loaded when present.
func (s Settings) DefaultConfigFile() string {
	return filepath.Join(s.ConfigDir, s.PluginID+".properties")
}

// WatchedFiles lists every configuration file the plugin reads.
func (s Settings) WatchedFiles() []string {
	return append([]string{s.DefaultConfigFile()}, s.ConfigFiles...)
}
