// Package heostest starts mock HEOS devices for tests.
//
// A device returned by New listens on a free loopback port, is stopped when
// the test finishes, and turns every hard failure it recorded while serving
// (an unrecognized command, a missing fixture, a failed RegisterCommand
// assertion) into a test error.
//
//	func TestGetPlayers(t *testing.T) {
//		device := heostest.New(t, heosmock.WithFixtureDir("testdata"))
//		client := mylib.Connect(device.Addr())
//		...
//	}
package heostest

import (
	"context"
	"net"
	"testing"
	"time"

	heosmock "github.com/raniellyferreira/heos-mock-device"
	"github.com/raniellyferreira/heos-mock-device/protocol"
)

// New starts a device on 127.0.0.1 with a free port. Options are applied
// after the defaults, so WithAddr overrides the address.
func New(t testing.TB, opts ...heosmock.Option) *heosmock.Device {
	t.Helper()
	return start(t, true, opts...)
}

// NewLenient is New without failure reporting, for tests that provoke
// failures and inspect Device.Failures themselves
func NewLenient(t testing.TB, opts ...heosmock.Option) *heosmock.Device {
	t.Helper()
	return start(t, false, opts...)
}

func start(t testing.TB, strict bool, opts ...heosmock.Option) *heosmock.Device {
	t.Helper()

	defaults := []heosmock.Option{
		heosmock.WithAddr("127.0.0.1:0"),
		heosmock.WithLogger(&testLogger{t: t}),
	}
	device, err := heosmock.New(append(defaults, opts...)...)
	if err != nil {
		t.Fatalf("failed to create mock device: %v", err)
	}
	if err := device.Start(context.Background()); err != nil {
		t.Fatalf("failed to start mock device: %v", err)
	}

	t.Cleanup(func() {
		if err := device.Stop(); err != nil {
			t.Errorf("failed to stop mock device: %v", err)
		}
		if !strict {
			return
		}
		for _, err := range device.Failures() {
			t.Errorf("mock device: %v", err)
		}
	})
	return device
}

// testLogger sends device logs to the test log
type testLogger struct {
	t testing.TB
}

func (l *testLogger) Debug(msg string, fields ...heosmock.Field) { l.log("DEBUG", msg, fields) }
func (l *testLogger) Info(msg string, fields ...heosmock.Field)  { l.log("INFO", msg, fields) }
func (l *testLogger) Error(msg string, fields ...heosmock.Field) { l.log("ERROR", msg, fields) }

func (l *testLogger) log(level, msg string, fields []heosmock.Field) {
	args := []interface{}{level, msg}
	format := "%s: %s"
	for _, f := range fields {
		format += " %s=%v"
		args = append(args, f.Key, f.Value)
	}
	l.t.Logf(format, args...)
}

// Client is a minimal HEOS CLI client
type Client struct {
	t       testing.TB
	conn    net.Conn
	reader  *protocol.Reader
	writer  *protocol.Writer
	timeout time.Duration
}

// Dial connects a Client to device. The connection is closed when the test
// finishes.
func Dial(t testing.TB, device *heosmock.Device) *Client {
	t.Helper()

	conn, err := net.Dial("tcp", device.Addr())
	if err != nil {
		t.Fatalf("failed to connect to mock device: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return &Client{
		t:       t,
		conn:    conn,
		reader:  protocol.NewReader(conn),
		writer:  protocol.NewWriter(conn),
		timeout: 2 * time.Second,
	}
}

// Send writes one command line
func (c *Client) Send(cmd protocol.Command, query protocol.Query) {
	c.t.Helper()
	if err := c.writer.WriteRequest(cmd, query); err != nil {
		c.t.Fatalf("failed to send %s: %v", cmd, err)
	}
}

// ReadLine reads one response or event line
func (c *Client) ReadLine() string {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	line, err := c.reader.ReadLine()
	if err != nil {
		c.t.Fatalf("failed to read from mock device: %v", err)
	}
	return line
}

// Command sends a command and returns the first response line
func (c *Client) Command(cmd protocol.Command, query protocol.Query) string {
	c.t.Helper()
	c.Send(cmd, query)
	return c.ReadLine()
}

// Close closes the connection
func (c *Client) Close() error {
	return c.conn.Close()
}
