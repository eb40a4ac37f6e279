package cli

import (
	"os"
	"strings"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

type Config struct {
	// Application flags
	Debug bool

	// Configuration flags
	ConfigPath string
	EnvFile    string

	// Overrides applied on top of the YAML configuration
	ListenAddress string
	StorePath     string
	DisableEmail  bool
}

// BindFlags registers the flags on fs. Defaults come from the environment so
// that a flag given on the command line always wins.
func BindFlags(fs *pflag.FlagSet) *Config {
	config := &Config{}
	// The pattern: fs.XxxVar(&variable, "flag-name", defaultValueOrEnvValue, "help text")
	fs.BoolVar(&config.Debug, "debug", getEnvBool("CATFACTS_DEBUG", false),
		"Enable debug level logging and the permissive CORS policy")

	fs.StringVar(&config.ConfigPath, "config-path", getEnvString("CATFACTS_CONFIG_PATH", "./config.yaml"),
		"Path to the catfacts configuration file")
	fs.StringVar(&config.EnvFile, "env-file", getEnvString("CATFACTS_ENV_FILE", ".env"),
		"Dotenv file with secrets, loaded before reading the environment. Ignored if missing")

	fs.StringVar(&config.ListenAddress, "listen-address", getEnvString("CATFACTS_LISTEN_ADDRESS", ""),
		"HTTP listen address, overrides server.listenAddress (e.g. ':8000')")
	fs.StringVar(&config.StorePath, "store-path", "",
		"SQLite database file, overrides store.path and CATFACTS_STORE_PATH")
	fs.BoolVar(&config.DisableEmail, "disable-email", getEnvBool("CATFACTS_DISABLE_EMAIL", false),
		"Log rendered mails instead of sending them")

	return config
}

func (c *Config) Print(log *zap.SugaredLogger) {
	log.Infow("CLI Configuration",
		"debug", c.Debug,
		"config_path", c.ConfigPath,
		"env_file", c.EnvFile,
		"listen_address", c.ListenAddress,
		"store_path", c.StorePath,
		"disable_email", c.DisableEmail,
	)
}

// getEnvString returns the value of an environment variable, or the provided default if not set.
func getEnvString(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

// getEnvBool returns the value of an environment variable as a bool, or the provided default if not set.
// Valid true values are "true", "1", "yes" (case-insensitive).
func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(val) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultVal
}
