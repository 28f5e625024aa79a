// Package server implements the mock HEOS device: a TCP server that speaks
// the HEOS CLI line protocol and answers from fixtures.
//
// Each accepted connection gets a Session that reads one command line at a
// time, resolves a response and writes it back before reading the next
// line. Responses are resolved in three tiers, first match wins:
//
//  1. Matchers registered with Register, in registration order
//  2. One-shot handlers registered with RegisterOneTime, FIFO per command
//  3. Built-in commands (event registration, player queries)
//
// A command that no tier answers is a hard failure: it is recorded on the
// Server (see Failures) and the connection is closed.
//
// Basic usage:
//
//	srv := server.NewServer("127.0.0.1:0", fixture.NewDir("testdata/fixtures"))
//	if err := srv.Start(); err != nil {
//		log.Fatal(err)
//	}
//	defer srv.Stop()
//
//	srv.Register("player/get_players", nil, "player.get_players_changed")
//	srv.RegisterOneTime("player/get_volume", server.Fixture("player.get_volume_max"))
package server
