package valutatrade

import (
	"errors"
	"io/fs"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Settings is the explicit process configuration, constructed once at
// startup and passed into the constructors that need it. There is no
// global settings state.
type Settings struct {
	DataDir               string `yaml:"data_dir" env:"VT_DATA_DIR" env-default:"data"`
	RatesTTLSeconds       int    `yaml:"rates_ttl_seconds" env:"VT_RATES_TTL_SECONDS" env-default:"300"`
	DefaultBaseCurrency   string `yaml:"default_base_currency" env:"VT_BASE_CURRENCY" env-default:"USD"`
	RequestTimeoutSeconds int    `yaml:"request_timeout_seconds" env:"VT_REQUEST_TIMEOUT_SECONDS" env-default:"10"`
	ExchangeRateAPIKey    string `yaml:"-" env:"EXCHANGERATE_API_KEY"`
}

// LoadSettings reads configuration from the optional YAML file at path and
// the environment; environment values win. A missing file is not an error.
func LoadSettings(path string) (Settings, error) {
	var s Settings
	if path != "" {
		err := cleanenv.ReadConfig(path, &s)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return Settings{}, err
		}
	}
	if err := cleanenv.ReadEnv(&s); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// RatesTTL returns the configured cache TTL.
func (s Settings) RatesTTL() time.Duration {
	return time.Duration(s.RatesTTLSeconds) * time.Second
}

// RequestTimeout bounds one provider call so a hung provider cannot stall
// the trade lock indefinitely.
func (s Settings) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSeconds) * time.Second
}
