// Package config provides configuration management for the permission
// tree module and its decision points using [Viper] for flexible
// configuration sources.
//
// Configuration can be provided via:
//   - YAML configuration files
//   - Environment variables with the LP_ prefix
//   - Programmatic defaults
//
// # Configuration File
//
// By default, the module looks for lp-config.yaml in the current
// directory. Override the location using environment variables:
//
//	LP_CONFIG_PATH=/etc/logical-permissions
//	LP_CONFIG_FILENAME=production-config
//
// Example configuration file:
//
//	log:
//	  level: ".:info"
//	bypass:
//	  defaultallow: false
//
// # Environment Variables
//
// All configuration keys can be set via environment variables with the
// LP_ prefix. Dots in key names become underscores:
//
//	LP_LOG_LEVEL=.:debug
//	LP_BYPASS_DEFAULTALLOW=true
//
// # Configuration Keys
//
//   - log.level: Log level configuration (default: ".:info")
//   - bypass.defaultallow: the allow_bypass default of an Engine built
//     with permtree.NewEngine, used by any CheckAccess call that passes
//     neither WithBypass nor WithoutBypass (default: true, matching
//     spec.md §4.3's default)
//
// [Viper]: https://github.com/spf13/viper
package config

import (
	"errors"
	"os"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/ordermind/logical-permissions-go/internal/logging"
)

// Environment variable and default path constants for configuration loading.
const (
	// EnvVarPrefix is the prefix for all module environment variables.
	// For example, the key "log.level" becomes LP_LOG_LEVEL.
	EnvVarPrefix string = "LP"

	// ConfigPathEnv is the environment variable that specifies the directory
	// containing the configuration file.
	ConfigPathEnv string = "LP_CONFIG_PATH"

	// ConfigFileNameEnv is the environment variable that specifies the
	// configuration file name (without extension).
	ConfigFileNameEnv string = "LP_CONFIG_FILENAME"

	// ConfigDefaultPath is the default directory to search for config files.
	ConfigDefaultPath string = "."

	// ConfigDefaultFilename is the default configuration file name (without extension).
	ConfigDefaultFilename string = "lp-config"
)

// Configuration key constants for use with [VConfig].
const (
	logLevel string = "log.level"

	// BypassDefaultAllow controls the allow_bypass default that
	// permtree.NewEngine gives an Engine: Engine.CheckAccess applies it
	// to every call that passes neither WithBypass nor WithoutBypass,
	// including the calls the decision points make.
	//
	// Default: true
	// Set via environment: LP_BYPASS_DEFAULTALLOW=false
	BypassDefaultAllow string = "bypass.defaultallow"
)

var (
	once     sync.Once
	loadOnce sync.Once
	loadErr  error

	// VConfig is the global Viper configuration instance for this module.
	//
	// VConfig provides access to all configuration values. Use the
	// configuration key constants ([BypassDefaultAllow], etc.) to access
	// specific settings:
	//
	//	if config.VConfig.GetBool(config.BypassDefaultAllow) {
	//	    // ...
	//	}
	//
	// VConfig is initialized automatically when [Load] or [Init] is called.
	VConfig *viper.Viper
	logger  = logging.GetLogger("logicalpermissions.config")
)

// Init initializes the configuration system without loading config files.
//
// This function is safe to call multiple times; subsequent calls are
// no-ops. Most applications don't need to call Init directly; it's
// called automatically by [Load].
func Init() {
	once.Do(func() {
		doInitialize()
	})
}

func getConfigPath() string {
	configPath, ok := os.LookupEnv(ConfigPathEnv)
	if ok {
		return configPath
	}

	return ConfigDefaultPath
}

func getConfigFileName() string {
	configName, ok := os.LookupEnv(ConfigFileNameEnv)
	if ok {
		return configName
	}

	return ConfigDefaultFilename
}

func doInitialize() {
	VConfig = viper.New()

	// set up config-file loading: default is './lp-config.yaml' but can
	// be overridden with $(LP_CONFIG_PATH)/$(LP_CONFIG_FILENAME).yaml
	VConfig.AddConfigPath(getConfigPath())
	VConfig.SetConfigName(getConfigFileName())
	VConfig.SetConfigType("yaml")

	// set up envvar handling: keys such as 'log.level' become 'LP_LOG_LEVEL'
	VConfig.SetEnvPrefix(EnvVarPrefix)
	VConfig.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	VConfig.AutomaticEnv()

	// set up VConfig defaults
	VConfig.SetDefault(logLevel, ".:info")
	VConfig.SetDefault(BypassDefaultAllow, true)
}

// Load initializes configuration and loads settings from files and
// environment.
//
// Load performs the following steps:
//  1. Calls [Init] if not already called
//  2. Reads the configuration file (if present; missing files are not an error)
//  3. Applies environment variable overrides
//  4. Updates log levels based on configuration
//
// This function is safe to call concurrently from multiple goroutines.
// Subsequent calls after the first successful load are no-ops that
// return nil.
//
// Returns the error reported while applying the log levels;
// logging.UpdateLogLevels treats an unrecognised level name as info
// rather than as an error.
func Load() error {
	loadOnce.Do(func() {
		Init()

		// Early log level update from environment variable allows us to
		// debug the config loading.
		earlyLoglevel := os.Getenv("LP_LOG_LEVEL")
		if earlyLoglevel != "" {
			if err := logging.UpdateLogLevels(earlyLoglevel); err != nil {
				logger.SysErrorf("Failed updating early log level %s: %+v", earlyLoglevel, err)
				loadErr = err
				return
			}
		}

		logger.SysDebugf("Loading configuration from %s/%s.yaml", getConfigPath(), getConfigFileName())
		err := VConfig.ReadInConfig()
		if err != nil {
			var configNotFound viper.ConfigFileNotFoundError
			if !errors.As(err, &configNotFound) {
				logger.SysWarnf("error reading config; using defaults: %+v", err)
			}
			logger.SysDebugf("No config file found at %s/%s.yaml", getConfigPath(), getConfigFileName())
		}

		loglevel := VConfig.GetString(logLevel)
		if err := logging.UpdateLogLevels(loglevel); err != nil {
			logger.SysErrorf("Failed updating log level %s: %+v", loglevel, err)
			loadErr = err
			return
		}

		if logger.IsDebugEnabled() {
			VConfig.DebugTo(logger.Out())
		}
	})

	return loadErr
}

// ResetConfig clears all configuration and reinitializes with defaults.
//
// WARNING: This function is intended for testing only. It resets the
// global configuration state, which can cause race conditions in
// concurrent code.
func ResetConfig() {
	VConfig = nil
	once = sync.Once{}
	loadOnce = sync.Once{}
	loadErr = nil
	Init()
	_ = Load()
}
