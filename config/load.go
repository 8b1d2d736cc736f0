package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Property keys. Backend-specific keys are prefixed with the backend type,
// e.g. "memcached.host" or "redis.2.host".
const (
	KeyType    = "cache.type"
	KeyTimeout = "cache.timeout"
	KeyWorkers = "cache.workers"
	KeyMaxSize = "cache.local.maxitems"
	KeyLife    = "cache.local.lifewindow"
)

// FromProperties builds a Config from a flat property map.
//
// Hosts come from "<type>.host" (one or more addresses separated by spaces or
// commas) or, when that key is absent, from "<type>.1.host", "<type>.2.host",
// ... up to the first gap. Credentials come from "<type>.user" and
// "<type>.password". The result is validated.
func FromProperties(props map[string]string) (Config, error) {
	cfg := Config{Type: strings.TrimSpace(props[KeyType])}
	if cfg.Type == "" {
		return Config{}, fmt.Errorf("%w: %s is required", ErrConfiguration, KeyType)
	}
	prefix := cfg.Type + "."

	if v, ok := props[prefix+"host"]; ok {
		cfg.Hosts = splitHosts(v)
	} else {
		for n := 1; ; n++ {
			v, ok := props[prefix+strconv.Itoa(n)+".host"]
			if !ok {
				break
			}
			cfg.Hosts = append(cfg.Hosts, splitHosts(v)...)
		}
	}

	cfg.Username = props[prefix+"user"]
	cfg.Password = props[prefix+"password"]

	var err error
	if cfg.Timeout, err = durationProp(props, KeyTimeout); err != nil {
		return Config{}, err
	}
	if cfg.Local.LifeWindow, err = durationProp(props, KeyLife); err != nil {
		return Config{}, err
	}
	if v, ok := props[KeyWorkers]; ok {
		if cfg.Workers, err = strconv.Atoi(strings.TrimSpace(v)); err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrConfiguration, KeyWorkers, err)
		}
	}
	if v, ok := props[KeyMaxSize]; ok {
		if cfg.Local.MaxItems, err = strconv.ParseInt(strings.TrimSpace(v), 10, 64); err != nil {
			return Config{}, fmt.Errorf("%w: %s: %v", ErrConfiguration, KeyMaxSize, err)
		}
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile reads a properties/.env style file ("key=value" per line, # for
// comments) and applies FromProperties.
func LoadFile(path string) (Config, error) {
	props, err := godotenv.Read(path)
	if err != nil {
		return Config{}, fmt.Errorf("%w: read %s: %v", ErrConfiguration, path, err)
	}
	return FromProperties(props)
}

// FromEnv reads the Config from environment variables under prefix, e.g.
// with prefix "CACHEGATE": CACHEGATE_TYPE, CACHEGATE_HOSTS (comma list),
// CACHEGATE_USERNAME, CACHEGATE_PASSWORD, CACHEGATE_TIMEOUT,
// CACHEGATE_WORKERS, CACHEGATE_LOCAL_MAX_ITEMS, CACHEGATE_LOCAL_LIFE_WINDOW.
func FromEnv(prefix string) (Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func splitHosts(v string) []string {
	return strings.FieldsFunc(v, func(r rune) bool {
		return r == ' ' || r == ',' || r == '\t'
	})
}

func durationProp(props map[string]string, key string) (time.Duration, error) {
	v, ok := props[key]
	if !ok {
		return 0, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrConfiguration, key, err)
	}
	return d, nil
}
