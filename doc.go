// Package heosmock provides a mock HEOS device for testing HEOS client
// libraries without real hardware.
//
// The device listens for TCP connections and speaks the line-oriented HEOS
// CLI protocol: every command is a URL of the form
// heos://group/action?key=value terminated by "\r\n". Responses are looked
// up in three tiers: registered matchers, one-shot handlers and built-in
// fallbacks for the commands every client issues on connect.
//
// Basic usage:
//
//	device, err := heosmock.New(
//		heosmock.WithAddr("127.0.0.1:0"),
//		heosmock.WithFixtureDir("testdata/fixtures"),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := device.Start(context.Background()); err != nil {
//		log.Fatal(err)
//	}
//	defer device.Stop()
//
//	// Answer every player/get_volume for pid 1 with a fixture
//	device.Register("player/get_volume", protocol.Query{"pid": "1"}, "player.get_volume")
//
//	// Answer the next browse/browse with a callback
//	device.RegisterOneTime("browse/browse", server.TextCallback(respond))
//
//	// Push an event to the first connection registered for change events
//	err = device.WriteEvent(`{"heos": {"command": "event/players_changed", "message": ""}}`)
//
// Fixtures are looked up by name, "group.action", through a fixture.Provider:
// an in-memory map, a directory of .json files, a Redis keyspace, or any
// combination of them. Hard failures such as an unrecognized command are
// recorded and returned by Err so the surrounding test can fail.
//
// The heostest package wires a device into a testing.TB.
package heosmock
