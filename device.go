package heosmock

import (
	"context"
	"errors"
	"sync"

	"github.com/raniellyferreira/heos-mock-device/fixture"
	"github.com/raniellyferreira/heos-mock-device/protocol"
	"github.com/raniellyferreira/heos-mock-device/server"
)

// Device is a mock HEOS device
type Device struct {
	// Configuration
	config *config

	// Components
	fixtures fixture.Chain
	memory   *fixture.Memory
	pool     *fixture.Pool
	redis    *fixture.Redis
	server   *server.Server

	// State
	mu      sync.RWMutex
	started bool
	closed  bool
}

// New creates a new Device with the given options
//
// The device is created but not started. Use Start() to begin accepting
// connections.
//
// Example:
//
//	device, err := heosmock.New(
//		heosmock.WithAddr("127.0.0.1:0"),
//		heosmock.WithFixtureDir("testdata/fixtures"),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
func New(opts ...Option) (*Device, error) {
	cfg := defaultConfig()

	// Apply options
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	device := &Device{
		config: cfg,
		memory: fixture.NewMemory(),
	}

	// Fixtures set at runtime take precedence over every configured source.
	// Only directory lookups block on I/O, so only they share the pool.
	device.pool = fixture.NewPool(fixture.Chain{}, cfg.workers)
	chain := fixture.Chain{device.memory}
	for _, p := range cfg.providers {
		if dir, ok := p.(*fixture.Dir); ok {
			p = device.pool.Wrap(dir)
		}
		chain = append(chain, p)
	}
	if cfg.redisAddr != "" {
		device.redis = fixture.DialRedis(cfg.redisAddr, cfg.redisPassword, cfg.redisDB, cfg.redisPrefix)
		chain = append(chain, device.redis)
	}
	device.fixtures = chain

	device.server = server.NewServer(cfg.addr, device.fixtures)
	device.server.SetLogger(&serverLogger{logger: cfg.logger})
	if cfg.readTimeout > 0 {
		device.server.SetReadTimeout(cfg.readTimeout)
	}
	if cfg.onFailure != nil {
		device.server.SetFailureHandler(cfg.onFailure)
	}

	return device, nil
}

// Start checks the fixture backends and starts accepting connections
//
// Example:
//
//	if err := device.Start(context.Background()); err != nil {
//		log.Fatal(err)
//	}
func (d *Device) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}
	if d.started {
		return ErrAlreadyStarted
	}

	if d.redis != nil {
		if err := d.redis.Ping(ctx); err != nil {
			d.config.logger.Error("Redis fixture backend unreachable", Field{Key: "addr", Value: d.config.redisAddr}, Field{Key: "error", Value: err})
			return &ConnectionError{Addr: d.config.redisAddr, Err: err}
		}
	}

	if err := d.server.Start(); err != nil {
		d.config.logger.Error("Failed to start server", Field{Key: "error", Value: err}, Field{Key: "addr", Value: d.config.addr})
		return &ConnectionError{Addr: d.config.addr, Err: err}
	}

	d.started = true
	return nil
}

// Stop closes the listener and every connection, waits for them to finish
// and releases the fixture backends. Stop is idempotent.
//
// Example:
//
//	defer device.Stop()
func (d *Device) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	var errs []error
	if err := d.server.Stop(); err != nil {
		errs = append(errs, err)
	}
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Addr returns the listening address, resolved once started
func (d *Device) Addr() string {
	return d.server.Addr()
}

// Port returns the listening port, or 0 before Start
func (d *Device) Port() int {
	return d.server.Port()
}

// Server returns the underlying server for advanced use
func (d *Device) Server() *server.Server {
	return d.server
}

// Fixtures returns the provider every response is looked up through
func (d *Device) Fixtures() fixture.Provider {
	return d.fixtures
}

// SetFixture stores a fixture that takes precedence over every configured
// source
//
// Example:
//
//	device.SetFixture("player.get_players", `{"payload": []}`)
func (d *Device) SetFixture(name, text string) {
	d.memory.Set(name, text)
}

// Register answers every request for cmd carrying the required parameters
// with fixtureName
//
// Example:
//
//	device.Register("player/get_volume", protocol.Query{"pid": "1"}, "player.get_volume")
func (d *Device) Register(cmd protocol.Command, required protocol.Query, fixtureName string) {
	d.server.Register(cmd, required, fixtureName)
}

// RegisterOneTime answers the next request for cmd not taken by a matcher
// with h
//
// Example:
//
//	device.RegisterOneTime("browse/browse", server.Fixture("browse.browse_favorites"))
func (d *Device) RegisterOneTime(cmd protocol.Command, h server.Handler) {
	d.server.RegisterOneTime(cmd, h)
}

// LoadScript caches a Lua script and returns the hash to pass to
// server.ScriptSHA
//
// Example:
//
//	sha := device.LoadScript(`return heos.fixture('player.get_volume')`)
//	device.RegisterOneTime("player/get_volume", server.ScriptSHA(sha))
//	device.RegisterOneTime("player/get_volume", server.ScriptSHA(sha))
func (d *Device) LoadScript(source string) string {
	return d.server.LoadScript(source)
}

// Reset forgets every matcher, queued one-shot handler and cached script,
// so one device can serve several subtests
func (d *Device) Reset() {
	d.server.Reset()
}

// RegisterCommand expects the next request for the command named by
// fixtureName to target playerID with every argument in target
//
// Example:
//
//	device.RegisterCommand("player.set_volume", 1, protocol.Query{"level": "25"})
func (d *Device) RegisterCommand(fixtureName string, playerID int, target protocol.Query) {
	d.server.RegisterCommand(fixtureName, playerID, target)
}

// RegisterCommandAs is RegisterCommand with an explicit command
func (d *Device) RegisterCommandAs(cmd protocol.Command, fixtureName string, playerID int, target protocol.Query) {
	d.server.RegisterCommandAs(cmd, fixtureName, playerID, target)
}

// WriteEvent pushes event to the first connection registered for change
// events. It returns ErrNoEventSubscriber if there is none.
func (d *Device) WriteEvent(event string) error {
	return d.server.WriteEvent(event)
}

// Connections returns the live connections in connection order
func (d *Device) Connections() []*server.Session {
	return d.server.Connections()
}

// Failures returns the hard failures recorded so far
func (d *Device) Failures() []error {
	return d.server.Failures()
}

// Err joins every recorded failure, or returns nil
func (d *Device) Err() error {
	return d.server.Err()
}

// GetInfo returns server statistics and version information
//
// Example:
//
//	info := device.GetInfo()
//	fmt.Printf("Commands: %v\n", info["total_commands"])
func (d *Device) GetInfo() map[string]interface{} {
	info := d.server.Stats()
	info["addr"] = d.Addr()
	info["fixture_workers"] = d.pool.Workers()
	info["version"] = VersionInfo()
	return info
}
