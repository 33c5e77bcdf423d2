package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/viper"

	"github.com/albapepper/teamdraw/internal/draw"
)

var (
	settingsKeys = []string{"team_size", "upper_size_fix", "max_group_size", "max_common_team"}
	integerKeys  = []string{"team_size", "max_group_size", "max_common_team"}
)

// LoadSettings reads draw settings from a JSON, YAML or TOML file, chosen by
// extension. Every key must be present in the file; TEAMDRAW_<KEY>
// environment variables override those values but never stand in for a
// missing key.
func LoadSettings(path string) (draw.Settings, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("TEAMDRAW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return draw.Settings{}, fmt.Errorf("read settings %s: %w", path, err)
	}
	return decodeSettings(v, path)
}

func decodeSettings(v *viper.Viper, source string) (draw.Settings, error) {
	var missing []string
	for _, key := range settingsKeys {
		if !v.InConfig(key) {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return draw.Settings{}, fmt.Errorf("settings %s: missing %s", source, strings.Join(missing, ", "))
	}

	for _, key := range integerKeys {
		if !isWholeNumber(v.Get(key)) {
			return draw.Settings{}, fmt.Errorf("settings %s: %s must be a whole number, got %v", source, key, v.Get(key))
		}
	}

	var s draw.Settings
	if err := v.Unmarshal(&s); err != nil {
		return draw.Settings{}, fmt.Errorf("decode settings %s: %w", source, err)
	}
	if err := s.Validate(); err != nil {
		return draw.Settings{}, fmt.Errorf("settings %s: %w", source, err)
	}
	return s, nil
}

// isWholeNumber reports whether a raw settings value decodes to an int
// without losing a fraction. JSON numbers arrive as float64 and environment
// overrides as strings.
func isWholeNumber(val any) bool {
	switch n := val.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float32:
		return n == float32(math.Trunc(float64(n)))
	case float64:
		return n == math.Trunc(n) && !math.IsInf(n, 0)
	case string:
		_, err := strconv.Atoi(strings.TrimSpace(n))
		return err == nil
	default:
		return false
	}
}
