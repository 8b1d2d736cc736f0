// Package config describes how cachegate reaches its backend.
//
// A Config can be built in code, read from a properties file (the
// `cache.type` / `memcached.host` key space) or read from the environment.
// All three paths end in Validate, which reports every problem as an error
// wrapping ErrConfiguration.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Backend types.
const (
	TypeRedis     = "redis"
	TypeMemcached = "memcached"
	TypeRistretto = "ristretto"
	TypeBigCache  = "bigcache"
)

const (
	DefaultTimeout = time.Second
	DefaultWorkers = 64
)

var ErrConfiguration = errors.New("configuration error")

// Config selects and sizes one backend.
type Config struct {
	Type     string        `validate:"required,oneof=redis memcached ristretto bigcache" envconfig:"TYPE"`
	Hosts    []string      `validate:"dive,hostname_port" envconfig:"HOSTS"`
	Username string        `envconfig:"USERNAME"`
	Password string        `envconfig:"PASSWORD"`
	Timeout  time.Duration `validate:"gte=0" envconfig:"TIMEOUT" default:"1s"`
	Workers  int           `validate:"gte=0" envconfig:"WORKERS" default:"64"`
	Local    LocalConfig   `envconfig:"LOCAL"`
}

// LocalConfig sizes the in-process backends.
type LocalConfig struct {
	MaxItems   int64         `validate:"gte=0" envconfig:"MAX_ITEMS" default:"100000"`
	LifeWindow time.Duration `validate:"gte=0" envconfig:"LIFE_WINDOW" default:"720h"` // bigcache only
}

// Distributed reports whether the backend lives outside the process.
func (c Config) Distributed() bool {
	return c.Type == TypeRedis || c.Type == TypeMemcached
}

// WithDefaults fills zero Timeout/Workers/Local fields.
func (c Config) WithDefaults() Config {
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.Local.MaxItems == 0 {
		c.Local.MaxItems = 100_000
	}
	if c.Local.LifeWindow == 0 {
		c.Local.LifeWindow = 30 * 24 * time.Hour
	}
	return c
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct tags and the cross-field rules the tags cannot
// express.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, describe(fe))
			}
			return fmt.Errorf("%w: %s", ErrConfiguration, strings.Join(msgs, "; "))
		}
		return fmt.Errorf("%w: %v", ErrConfiguration, err)
	}

	if c.Distributed() && len(c.Hosts) == 0 {
		return fmt.Errorf("%w: bad configuration for %s: missing host(s)", ErrConfiguration, c.Type)
	}
	if c.Username != "" && c.Password == "" {
		return fmt.Errorf("%w: bad configuration for %s: missing password", ErrConfiguration, c.Type)
	}
	if c.Username == "" && c.Password != "" && c.Type != TypeRedis {
		// redis accepts a bare password (requirepass); nothing else does.
		return fmt.Errorf("%w: bad configuration for %s: password without user", ErrConfiguration, c.Type)
	}
	if c.Type == TypeMemcached && c.Username != "" {
		return fmt.Errorf("%w: memcached authentication (SASL) is not supported", ErrConfiguration)
	}
	if !c.Distributed() && (c.Username != "" || c.Password != "") {
		return fmt.Errorf("%w: credentials set for local backend %s", ErrConfiguration, c.Type)
	}
	return nil
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Namespace())
	case "oneof":
		return fmt.Sprintf("%s %q is not one of [%s]", fe.Namespace(), fe.Value(), fe.Param())
	case "hostname_port":
		return fmt.Sprintf("%s %q is not a host:port", fe.Namespace(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag())
	}
}
