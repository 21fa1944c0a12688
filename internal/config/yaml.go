package config

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var envPlaceholder = regexp.MustCompile(`\${([^}]+)}`)

// MergeYAML decodes a YAML document, expands ${ENV} placeholders in string values and
// merges the result into v. Nested keys are flattened with "_" to match the env names.
func MergeYAML(v *viper.Viper, r io.Reader) error {
	raw := map[string]interface{}{}
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil && err != io.EOF {
		return fmt.Errorf("failed to read the configuration file: %w", err)
	}
	flat := map[string]interface{}{}
	var missed []string
	flatten("", raw, flat, &missed)
	if len(missed) != 0 {
		return fmt.Errorf("missing environment variables: %s", strings.Join(missed, ","))
	}
	return v.MergeConfigMap(flat)
}

func flatten(prefix string, in map[string]interface{}, out map[string]interface{}, missed *[]string) {
	for key, value := range in {
		name := strings.ToLower(key)
		if prefix != "" {
			name = prefix + "_" + name
		}
		switch val := value.(type) {
		case map[string]interface{}:
			flatten(name, val, out, missed)
		case string:
			out[name] = expandEnv(val, missed)
		default:
			out[name] = val
		}
	}
}

func expandEnv(value string, missed *[]string) string {
	return envPlaceholder.ReplaceAllStringFunc(value, func(match string) string {
		name := envPlaceholder.FindStringSubmatch(match)[1]
		envValue := os.Getenv(name)
		if envValue == "" {
			*missed = append(*missed, name)
		}
		return envValue
	})
}
