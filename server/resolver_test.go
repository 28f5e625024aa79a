package server

import (
	"context"
	"errors"
	"testing"

	"github.com/raniellyferreira/heos-mock-device/fixture"
	"github.com/raniellyferreira/heos-mock-device/protocol"
)

type fakeRegistrar struct {
	registered bool
	calls      int
}

func (f *fakeRegistrar) setRegisteredForEvents(registered bool) {
	f.registered = registered
	f.calls++
}

func mustParse(t *testing.T, line string) *protocol.Request {
	t.Helper()
	req, err := protocol.ParseRequest(line)
	if err != nil {
		t.Fatalf("ParseRequest(%q): %v", line, err)
	}
	return req
}

func TestMatcher_Matches(t *testing.T) {
	tests := []struct {
		name     string
		required protocol.Query
		line     string
		want     bool
	}{
		{"empty required matches bare command", nil, "heos://player/get_volume", true},
		{"empty required matches any query", nil, "heos://player/get_volume?pid=1", true},
		{"required pair present", protocol.Query{"pid": "1"}, "heos://player/get_volume?pid=1&sequence=2", true},
		{"required value differs", protocol.Query{"pid": "1"}, "heos://player/get_volume?pid=2", false},
		{"required key missing", protocol.Query{"pid": "1"}, "heos://player/get_volume?sequence=1", false},
		{"empty value matches empty", protocol.Query{"name": ""}, "heos://player/get_volume?name", true},
		{"other command", nil, "heos://player/get_mute", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMatcher("player/get_volume", tt.required, "player.get_volume")
			if got := m.Matches(mustParse(t, tt.line)); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMatcher_CopiesRequired(t *testing.T) {
	required := protocol.Query{"pid": "1"}
	m := NewMatcher("player/get_volume", required, "player.get_volume")
	required["pid"] = "2"

	if !m.Matches(mustParse(t, "heos://player/get_volume?pid=1")) {
		t.Error("matcher should not see later changes to the required map")
	}
}

func TestResolver_Tiers(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(newTestFixtures())
	conn := &fakeRegistrar{}

	r.Enqueue("player/get_players", TextCallback(func(ctx context.Context, req *protocol.Request) (string, error) {
		return "one-shot", nil
	}))

	lines, err := r.Resolve(ctx, conn, mustParse(t, "heos://player/get_players"))
	if err != nil || len(lines) != 1 || lines[0] != "one-shot" {
		t.Fatalf("expected one-shot response, got %v, %v", lines, err)
	}

	lines, err = r.Resolve(ctx, conn, mustParse(t, "heos://player/get_players"))
	if err != nil || len(lines) != 1 || lines[0] != playersFixture {
		t.Fatalf("expected built-in response, got %v, %v", lines, err)
	}

	r.AddMatcher(NewMatcher("player/get_players", nil, "player.get_players_changed"))
	lines, err = r.Resolve(ctx, conn, mustParse(t, "heos://player/get_players"))
	if err != nil || lines[0] != `{"payload": "changed"}` {
		t.Fatalf("expected matcher response, got %v, %v", lines, err)
	}

	if len(r.Matchers()) != 1 {
		t.Errorf("expected 1 matcher, got %d", len(r.Matchers()))
	}
	r.Reset()
	if len(r.Matchers()) != 0 {
		t.Errorf("expected no matchers after reset")
	}
}

func TestResolver_RegisterForChangeEvents(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(newTestFixtures())
	conn := &fakeRegistrar{}

	tests := []struct {
		enable     string
		registered bool
	}{
		{"on", true},
		{"off", false},
		{"on", true},
	}

	for _, tt := range tests {
		lines, err := r.Resolve(ctx, conn, mustParse(t, "heos://system/register_for_change_events?enable="+tt.enable))
		if err != nil {
			t.Fatal(err)
		}
		want := `{"heos": {"command": "system/register_for_change_events", "result": "success", "message": "enable=` + tt.enable + `"}}`
		if lines[0] != want {
			t.Errorf("got %s, want %s", lines[0], want)
		}
		if conn.registered != tt.registered {
			t.Errorf("enable=%s: registered = %v", tt.enable, conn.registered)
		}
	}

	_, err := r.Resolve(ctx, conn, mustParse(t, "heos://system/register_for_change_events"))
	var missing *MissingParameterError
	if !errors.As(err, &missing) || missing.Parameter != "enable" {
		t.Errorf("expected missing enable parameter, got %v", err)
	}
}

func TestResolver_PlayerCommands(t *testing.T) {
	fixtures := fixture.NewMemory()
	for _, cmd := range []protocol.Command{
		CommandGetPlayState, CommandGetNowPlayingMedia, CommandGetVolume, CommandGetMute, CommandGetPlayMode,
	} {
		fixtures.Set(cmd.FixtureName(), string(cmd)+" {player_id} {sequence} {player_id}")
	}
	r := NewResolver(fixtures)

	for _, cmd := range []protocol.Command{
		CommandGetPlayState, CommandGetNowPlayingMedia, CommandGetVolume, CommandGetMute, CommandGetPlayMode,
	} {
		t.Run(string(cmd), func(t *testing.T) {
			if !IsBuiltin(cmd) {
				t.Errorf("%s should be a built-in", cmd)
			}
			req := mustParse(t, protocol.FormatRequest(cmd, protocol.Query{"pid": "-5", "sequence": "42"}))
			lines, err := r.Resolve(context.Background(), &fakeRegistrar{}, req)
			if err != nil {
				t.Fatal(err)
			}
			if want := string(cmd) + " -5 42 -5"; lines[0] != want {
				t.Errorf("got %q, want %q", lines[0], want)
			}
		})
	}
}

func TestResolver_Errors(t *testing.T) {
	ctx := context.Background()
	r := NewResolver(newTestFixtures())
	conn := &fakeRegistrar{}

	_, err := r.Resolve(ctx, conn, mustParse(t, "heos://browse/get_music_sources"))
	if !errors.Is(err, ErrUnrecognizedCommand) {
		t.Errorf("expected ErrUnrecognizedCommand, got %v", err)
	}

	_, err = r.Resolve(ctx, conn, mustParse(t, "heos://player/get_play_mode?pid=1"))
	var missing *MissingParameterError
	if !errors.As(err, &missing) || missing.Parameter != "sequence" {
		t.Errorf("expected missing sequence, got %v", err)
	}

	_, err = r.Resolve(ctx, conn, mustParse(t, "heos://player/get_play_mode?pid=1&sequence=1"))
	if !errors.Is(err, fixture.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	boom := errors.New("boom")
	r.Enqueue("player/get_players", Callback(func(ctx context.Context, req *protocol.Request) ([]string, error) {
		return nil, boom
	}))
	_, err = r.Resolve(ctx, conn, mustParse(t, "heos://player/get_players"))
	var handlerErr *HandlerError
	if !errors.As(err, &handlerErr) || handlerErr.Kind != HandlerCallback || !errors.Is(err, boom) {
		t.Errorf("expected callback HandlerError wrapping boom, got %v", err)
	}

	r.Enqueue("player/get_players", Script("heos.fail('bad request')"))
	_, err = r.Resolve(ctx, conn, mustParse(t, "heos://player/get_players"))
	if !errors.As(err, &handlerErr) || handlerErr.Kind != HandlerScript {
		t.Errorf("expected script HandlerError, got %v", err)
	}
}

func TestResolver_NoFixtureProvider(t *testing.T) {
	r := NewResolver(nil)
	_, err := r.Resolve(context.Background(), &fakeRegistrar{}, mustParse(t, "heos://player/get_players"))
	if !errors.Is(err, fixture.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestHandlerKind_String(t *testing.T) {
	tests := []struct {
		handler Handler
		want    string
	}{
		{Fixture("player.get_players"), "fixture"},
		{Callback(nil), "callback"},
		{Script("return ''"), "script"},
	}
	for _, tt := range tests {
		if got := tt.handler.Kind().String(); got != tt.want {
			t.Errorf("Kind().String() = %q, want %q", got, tt.want)
		}
	}
}
