package heosmock

import (
	"time"

	"github.com/raniellyferreira/heos-mock-device/fixture"
	"github.com/raniellyferreira/heos-mock-device/server"
)

// config holds the configuration for a Device
type config struct {
	// Listener settings
	addr        string
	readTimeout time.Duration

	// Fixture sources, consulted in the order they were configured
	providers []fixture.Provider
	workers   int

	// Redis fixture backend
	redisAddr     string
	redisPassword string
	redisDB       int
	redisPrefix   string

	// Observability
	logger    Logger
	onFailure FailureHandler
}

// defaultConfig returns a configuration with sensible defaults
func defaultConfig() *config {
	return &config{
		addr:    server.DefaultAddr,
		workers: 0, // fixture.DefaultWorkers
		logger:  &defaultLogger{},
	}
}

// Option represents a configuration option for a Device
type Option func(*config) error

// WithAddr sets the listening address. Use port 0 to pick a free port.
//
// Example:
//
//	WithAddr("127.0.0.1:0")
//	WithAddr("0.0.0.0:1255")
func WithAddr(addr string) Option {
	return func(c *config) error {
		if addr == "" {
			return ErrInvalidConfig
		}
		c.addr = addr
		return nil
	}
}

// WithFixtures adds a fixture provider
//
// Example:
//
//	WithFixtures(fixture.NewMemoryFrom(fixtures))
func WithFixtures(provider fixture.Provider) Option {
	return func(c *config) error {
		if provider == nil {
			return ErrInvalidConfig
		}
		c.providers = append(c.providers, provider)
		return nil
	}
}

// WithFixtureMap adds an in-memory fixture provider holding fixtures
//
// Example:
//
//	WithFixtureMap(map[string]string{"player.get_players": `{"payload": []}`})
func WithFixtureMap(fixtures map[string]string) Option {
	return func(c *config) error {
		c.providers = append(c.providers, fixture.NewMemoryFrom(fixtures))
		return nil
	}
}

// WithFixtureDir adds a provider reading <dir>/<name>.json
//
// Example:
//
//	WithFixtureDir("testdata/fixtures")
func WithFixtureDir(dir string) Option {
	return func(c *config) error {
		if dir == "" {
			return ErrInvalidConfig
		}
		c.providers = append(c.providers, fixture.NewDir(dir))
		return nil
	}
}

// WithRedisFixtures adds a provider reading fixtures from Redis strings
// stored under prefix+name. The Redis provider is consulted after every
// other configured source.
//
// Example:
//
//	WithRedisFixtures("localhost:6379", "heos:fixture:")
func WithRedisFixtures(addr, prefix string) Option {
	return func(c *config) error {
		if addr == "" {
			return &ConnectionError{
				Addr: addr,
				Err:  ErrInvalidConfig,
			}
		}
		c.redisAddr = addr
		c.redisPrefix = prefix
		return nil
	}
}

// WithRedisAuth sets the password for the Redis fixture backend
//
// Example:
//
//	WithRedisAuth("mypassword")
func WithRedisAuth(password string) Option {
	return func(c *config) error {
		c.redisPassword = password
		return nil
	}
}

// WithRedisDB selects the Redis database holding the fixtures
//
// Example:
//
//	WithRedisDB(2)
func WithRedisDB(db int) Option {
	return func(c *config) error {
		if db < 0 || db > 15 {
			return ErrInvalidConfig
		}
		c.redisDB = db
		return nil
	}
}

// WithFixtureWorkers bounds the number of concurrent fixture directory
// reads. Zero means fixture.DefaultWorkers.
//
// Example:
//
//	WithFixtureWorkers(4)
func WithFixtureWorkers(workers int) Option {
	return func(c *config) error {
		if workers < 0 {
			return ErrInvalidConfig
		}
		c.workers = workers
		return nil
	}
}

// WithLogger sets a custom logger for the device
//
// Example:
//
//	WithLogger(myCustomLogger)
func WithLogger(logger Logger) Option {
	return func(c *config) error {
		if logger == nil {
			return ErrInvalidConfig
		}
		c.logger = logger
		return nil
	}
}

// WithFailureHandler sets a function called for every hard failure
//
// Example:
//
//	WithFailureHandler(func(err error) { t.Error(err) })
func WithFailureHandler(fn FailureHandler) Option {
	return func(c *config) error {
		c.onFailure = fn
		return nil
	}
}

// WithReadTimeout closes connections idle for longer than timeout.
// By default connections may stay idle until Stop.
//
// Example:
//
//	WithReadTimeout(30 * time.Second)
func WithReadTimeout(timeout time.Duration) Option {
	return func(c *config) error {
		if timeout <= 0 {
			return ErrInvalidConfig
		}
		c.readTimeout = timeout
		return nil
	}
}
