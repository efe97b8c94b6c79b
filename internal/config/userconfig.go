package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultUserConfigPath returns the persisted user configuration location,
// ~/.config/neuroclean.yaml.
func DefaultUserConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "neuroclean.yaml"
	}
	return filepath.Join(home, ".config", "neuroclean.yaml")
}

// userConfigKeys are the tuning keys the config command accepts, mirroring
// the TuningConfig JSON names.
var userConfigKeys = []string{
	"high_pass_hz",
	"low_pass_hz",
	"notch_hz",
	"notch_harmonics",
	"deviation_threshold",
	"correlation_floor",
	"min_good_channels",
	"num_components",
	"seed",
	"max_iterations",
	"tolerance",
	"artifact_threshold",
	"bad_channel_policy",
	"workers",
}

// UserConfig wraps the persisted YAML settings file.
type UserConfig struct {
	v    *viper.Viper
	path string
}

// LoadUserConfig reads the settings file at path. A missing file yields an
// empty config; Save creates it.
func LoadUserConfig(path string) (*UserConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}
	return &UserConfig{v: v, path: path}, nil
}

// Get returns the stored value for key, or nil when unset.
func (u *UserConfig) Get(key string) interface{} {
	if !isUserConfigKey(key) {
		return nil
	}
	return u.v.Get(key)
}

// Set stores a value for key. Unknown keys are rejected so typos do not
// silently persist.
func (u *UserConfig) Set(key string, value interface{}) error {
	if !isUserConfigKey(key) {
		return fmt.Errorf("unknown config key %q (valid keys: %v)", key, userConfigKeys)
	}
	u.v.Set(key, value)
	return nil
}

// All returns the stored settings in key-sorted order.
func (u *UserConfig) All() map[string]interface{} {
	out := map[string]interface{}{}
	for _, k := range userConfigKeys {
		if u.v.IsSet(k) {
			out[k] = u.v.Get(k)
		}
	}
	return out
}

// Save writes the settings back to the YAML file, creating parent
// directories as needed.
func (u *UserConfig) Save() error {
	if err := os.MkdirAll(filepath.Dir(u.path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(u.All())
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(u.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config %s: %w", u.path, err)
	}
	return nil
}

// Tuning merges the persisted settings into a TuningConfig. Only keys
// actually set in the file override the compiled defaults.
func (u *UserConfig) Tuning() (*TuningConfig, error) {
	cfg := EmptyTuningConfig()
	if u.v.IsSet("high_pass_hz") {
		f := u.v.GetFloat64("high_pass_hz")
		cfg.HighPassHz = &f
	}
	if u.v.IsSet("low_pass_hz") {
		f := u.v.GetFloat64("low_pass_hz")
		cfg.LowPassHz = &f
	}
	if u.v.IsSet("notch_hz") {
		raw := u.v.Get("notch_hz")
		freqs, err := toFloats(raw)
		if err != nil {
			return nil, fmt.Errorf("notch_hz: %w", err)
		}
		cfg.NotchHz = &freqs
	}
	if u.v.IsSet("notch_harmonics") {
		b := u.v.GetBool("notch_harmonics")
		cfg.NotchHarmonics = &b
	}
	if u.v.IsSet("deviation_threshold") {
		f := u.v.GetFloat64("deviation_threshold")
		cfg.DeviationThreshold = &f
	}
	if u.v.IsSet("correlation_floor") {
		f := u.v.GetFloat64("correlation_floor")
		cfg.CorrelationFloor = &f
	}
	if u.v.IsSet("min_good_channels") {
		n := u.v.GetInt("min_good_channels")
		cfg.MinGoodChannels = &n
	}
	if u.v.IsSet("num_components") {
		n := u.v.GetInt("num_components")
		cfg.NumComponents = &n
	}
	if u.v.IsSet("seed") {
		n := u.v.GetInt64("seed")
		cfg.Seed = &n
	}
	if u.v.IsSet("max_iterations") {
		n := u.v.GetInt("max_iterations")
		cfg.MaxIterations = &n
	}
	if u.v.IsSet("tolerance") {
		f := u.v.GetFloat64("tolerance")
		cfg.Tolerance = &f
	}
	if u.v.IsSet("artifact_threshold") {
		f := u.v.GetFloat64("artifact_threshold")
		cfg.ArtifactThreshold = &f
	}
	if u.v.IsSet("bad_channel_policy") {
		s := u.v.GetString("bad_channel_policy")
		cfg.BadChannelPolicy = &s
	}
	if u.v.IsSet("workers") {
		n := u.v.GetInt("workers")
		cfg.Workers = &n
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func isUserConfigKey(key string) bool {
	i := sort.SearchStrings(sortedUserConfigKeys, key)
	return i < len(sortedUserConfigKeys) && sortedUserConfigKeys[i] == key
}

var sortedUserConfigKeys = func() []string {
	keys := append([]string(nil), userConfigKeys...)
	sort.Strings(keys)
	return keys
}()

func toFloats(raw interface{}) ([]float64, error) {
	switch v := raw.(type) {
	case []interface{}:
		out := make([]float64, 0, len(v))
		for _, e := range v {
			switch f := e.(type) {
			case float64:
				out = append(out, f)
			case int:
				out = append(out, float64(f))
			default:
				return nil, fmt.Errorf("expected number, got %T", e)
			}
		}
		return out, nil
	case []float64:
		return append([]float64(nil), v...), nil
	case float64:
		return []float64{v}, nil
	case int:
		return []float64{float64(v)}, nil
	default:
		return nil, fmt.Errorf("expected number or list, got %T", raw)
	}
}
