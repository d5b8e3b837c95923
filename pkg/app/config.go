package app

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"

	"github.com/autopeer-io/groundpeer/pkg/log"
)

const (
	configFlagName = "config"

	// EnvPrefix prefixes environment overrides: mqtt.broker is read from
	// GPEER_MQTT_BROKER.
	EnvPrefix = "GPEER"
)

func addConfigFlag(fs *pflag.FlagSet, target *string) {
	fs.StringVarP(target, configFlagName, "c", *target, "Read configuration from the specified YAML file. Flags and GPEER_ environment variables take precedence.")
}

// loadConfig merges flags, environment and the config file into the
// options. Flags set on the command line win over the environment, which
// wins over the file.
func (a *App) loadConfig(fs *pflag.FlagSet) error {
	v := a.viper
	if err := v.BindPFlags(fs); err != nil {
		return err
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if a.configFile != "" {
		v.SetConfigFile(a.configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read configuration file %s: %w", a.configFile, err)
		}
	}

	if a.options == nil {
		return nil
	}
	if err := v.Unmarshal(a.options); err != nil {
		return fmt.Errorf("failed to decode configuration: %w", err)
	}
	return nil
}

// watchConfig applies log level changes made to the config file while
// running. Other settings need a restart.
func (a *App) watchConfig() {
	if a.configFile == "" {
		return
	}
	a.viper.OnConfigChange(func(e fsnotify.Event) {
		level := a.viper.GetString("log.level")
		if err := log.SetLevel(level); err != nil {
			log.Error(err, "Ignoring invalid log level", "file", e.Name, "level", level)
			return
		}
		log.Info("Configuration file changed", "file", e.Name, "op", e.Op.String(), "log.level", level)
	})
	a.viper.WatchConfig()
}
