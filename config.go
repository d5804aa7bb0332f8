package docbridge

import (
	"time"

	"github.com/docbridge/docbridge/internal/config"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Filename of the standard configuration file.
const ConfigFile = "docbridge.yaml"

// ConfigKeyInfo contains metadata about a known configuration key.
// Re-exported from internal/config for public API use.
type ConfigKeyInfo = config.ConfigKeyInfo

// Config is a global koanf instance used to access application level
// configuration options.
//
// Config is loaded in the following order (later sources override earlier):
// 1. Built-in defaults (in init())
// 2. Auto-discovered docbridge.yaml (in init())
// 3. Environment variables with DB__ prefix (in init())
// 4. Additional sources loaded via LoadConfigFile() or LoadConfigDefaults()
//
// Environment variable transformation:
//   - DB__WEB__PORT → web.port
//   - DB__PLUGINS__PAPERLESS__API_KEY → plugins.paperless.apiKey
var Config = koanf.New(".")

func init() {
	registerCoreConfigKeys()

	// Look for a docbridge.yaml file in the current directory or any parent.
	if cfg := config.SearchForConfig(ConfigFile, "."); cfg != "" {
		if err := Config.Load(file.Provider(cfg), yaml.Parser()); err != nil {
			panic("error loading config: " + err.Error())
		}
	}

	// Load environment variables with the prefix DB__.
	if err := Config.Load(env.Provider("DB__", ".", config.TransformEnv), nil); err != nil {
		panic("error loading env config: " + err.Error())
	}
}

// RegisterConfigKey registers a known configuration key with metadata.
// Called by core code and plugins to document expected config keys.
func RegisterConfigKey(info ConfigKeyInfo) {
	config.RegisterConfigKey(info)
}

// RegisterConfigKeys registers multiple configuration keys at once.
func RegisterConfigKeys(infos ...ConfigKeyInfo) {
	config.RegisterConfigKeys(infos...)
}

// LoadConfigFile loads additional configuration from a YAML file into the
// global Config instance. Call this before building the manager.
func LoadConfigFile(path string) {
	if err := Config.Load(file.Provider(path), yaml.Parser()); err != nil {
		panic("error loading config file '" + path + "': " + err.Error())
	}
}

// LoadConfigDefaults loads default configuration values into the global
// Config instance, for application-specific defaults that can be overridden
// by files or env vars.
func LoadConfigDefaults(defaults map[string]interface{}) {
	if err := Config.Load(confmap.Provider(defaults, "."), nil); err != nil {
		panic("error loading config defaults: " + err.Error())
	}
}

// ConfigString returns the string value for the given key.
func ConfigString(key string) string {
	return Config.String(key)
}

// ConfigInt returns the int value for the given key.
func ConfigInt(key string) int {
	return Config.Int(key)
}

// ConfigBool returns the bool value for the given key.
func ConfigBool(key string) bool {
	return Config.Bool(key)
}

// ConfigDuration returns the duration value for the given key. Duration
// strings like "5m", "1h", "30s" are parsed automatically.
func ConfigDuration(key string) time.Duration {
	return Config.Duration(key)
}

// ConfigStrings returns the string slice value for the given key.
func ConfigStrings(key string) []string {
	return Config.Strings(key)
}

// ConfigExists checks if the given key exists in the configuration.
func ConfigExists(key string) bool {
	return Config.Exists(key)
}

// registerCoreConfigKeys registers all core configuration keys with their
// defaults. Called from init() before any config loading happens.
func registerCoreConfigKeys() {
	config.RegisterConfigKeys(
		ConfigKeyInfo{
			Key:         "name",
			Description: "User-facing name that identifies the service",
			Type:        "string",
			Default:     "Docbridge",
		},
		ConfigKeyInfo{
			Key:         "web.host",
			Description: "Host to bind the web server to",
			Type:        "string",
			Default:     "localhost",
		},
		ConfigKeyInfo{
			Key:         "web.port",
			Description: "Port to bind the web server to",
			Type:        "int",
			Default:     8080,
		},
		ConfigKeyInfo{
			Key:         "storage.dataDir",
			Description: "Directory for plugin-local persistent state",
			Type:        "string",
			Default:     "./data",
		},
		ConfigKeyInfo{
			Key:         "storage.uploadDir",
			Description: "Directory where inbound documents are staged",
			Type:        "string",
			Default:     "./data/uploads",
		},
		ConfigKeyInfo{
			Key:         "plugins.configFile",
			Description: "Optional plugin config YAML watched for changes",
			Type:        "string",
		},
		ConfigKeyInfo{
			Key:         "logging.dev",
			Description: "Use human friendly log output instead of JSON",
			Type:        "bool",
			Default:     false,
		},
	)
}
