package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/Meesho/BharatMLStack/catalog-sync/internal/config/structs"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// ConfigFileEnv names an optional YAML file layered below environment variables.
const ConfigFileEnv = "CONFIG_FILE"

// Load builds the application config from defaults, the optional YAML file and the
// environment (highest precedence), then validates it.
func Load() (*structs.AppConfig, error) {
	v := viper.GetViper()
	for key, value := range defaults {
		v.SetDefault(key, value)
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, err
		}
	}
	v.AutomaticEnv()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config file %s: %w", path, err)
		}
		defer f.Close()
		if err := MergeYAML(v, f); err != nil {
			return nil, err
		}
		log.Info().Msgf("config file %s loaded", path)
	}

	appConfig := &structs.AppConfig{}
	if err := v.Unmarshal(&appConfig.Configs); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(&appConfig.Configs); err != nil {
		return nil, err
	}
	return appConfig, nil
}
