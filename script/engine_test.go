package script

import (
	"context"
	"errors"
	"testing"

	"github.com/raniellyferreira/heos-mock-device/fixture"
	"github.com/raniellyferreira/heos-mock-device/protocol"
)

func mustRequest(t *testing.T, line string) *protocol.Request {
	t.Helper()
	req, err := protocol.ParseRequest(line)
	if err != nil {
		t.Fatal(err)
	}
	return req
}

func TestEngine_BasicExecution(t *testing.T) {
	fixtures := fixture.NewMemoryFrom(map[string]string{
		"player.get_volume": `{"pid": "{player_id}", "seq": "{sequence}"}`,
	})
	engine := NewEngine(fixtures)
	req := mustRequest(t, "heos://player/get_volume?pid=123&sequence=7")

	tests := []struct {
		name     string
		script   string
		expected []string
	}{
		{
			name:     "simple return",
			script:   "return 'hello'",
			expected: []string{"hello"},
		},
		{
			name:     "request globals",
			script:   "return COMMAND .. '|' .. GROUP .. '|' .. ACTION",
			expected: []string{"player/get_volume|player|get_volume"},
		},
		{
			name:     "query table",
			script:   "return QUERY.pid .. ':' .. QUERY['sequence']",
			expected: []string{"123:7"},
		},
		{
			name:     "raw line",
			script:   "return RAW",
			expected: []string{"heos://player/get_volume?pid=123&sequence=7"},
		},
		{
			name:     "multiple lines",
			script:   "return {'first', 'second', 'third'}",
			expected: []string{"first", "second", "third"},
		},
		{
			name:     "fixture substitution",
			script:   "return heos.substitute(heos.fixture('player.get_volume'), {player_id = QUERY.pid, sequence = QUERY.sequence})",
			expected: []string{`{"pid": "123", "seq": "7"}`},
		},
		{
			name:     "string library",
			script:   "return string.upper(ACTION)",
			expected: []string{"GET_VOLUME"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines, err := engine.Eval(context.Background(), tt.script, req)
			if err != nil {
				t.Fatal(err)
			}
			if len(lines) != len(tt.expected) {
				t.Fatalf("expected %v, got %v", tt.expected, lines)
			}
			for i := range lines {
				if lines[i] != tt.expected[i] {
					t.Errorf("line %d: expected %q, got %q", i, tt.expected[i], lines[i])
				}
			}
		})
	}
}

func TestEngine_Errors(t *testing.T) {
	engine := NewEngine(fixture.NewMemory())
	req := mustRequest(t, "heos://player/get_mute?pid=1")
	ctx := context.Background()

	_, err := engine.Eval(ctx, "return heos.fixture('missing')", req)
	if !errors.Is(err, fixture.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	_, err = engine.Eval(ctx, "if QUERY.pid ~= '2' then heos.fail('unexpected pid ' .. QUERY.pid) end return 'ok'", req)
	var failErr *FailError
	if !errors.As(err, &failErr) {
		t.Fatalf("expected FailError, got %v", err)
	}
	if failErr.Message != "unexpected pid 1" {
		t.Errorf("unexpected message %q", failErr.Message)
	}

	for _, script := range []string{"return nil", "return 42", "return {}", "return {'a', 1}"} {
		if _, err := engine.Eval(ctx, script, req); !errors.Is(err, ErrNoResponse) {
			t.Errorf("%s: expected ErrNoResponse, got %v", script, err)
		}
	}

	if _, err := engine.Eval(ctx, "this is not lua", req); err == nil {
		t.Error("expected syntax error")
	}

	if _, err := engine.Eval(ctx, "return os.getenv('HOME')", req); err == nil {
		t.Error("expected os library to be unavailable")
	}
}

func TestEngine_ScriptCaching(t *testing.T) {
	engine := NewEngine(nil)
	req := mustRequest(t, "heos://system/heart_beat")
	ctx := context.Background()

	sha := engine.LoadScript("return 'cached'")
	if len(sha) != 40 {
		t.Fatalf("expected SHA1 hex, got %q", sha)
	}

	lines, err := engine.EvalSHA(ctx, sha, req)
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 1 || lines[0] != "cached" {
		t.Errorf("unexpected lines %v", lines)
	}

	if _, err := engine.EvalSHA(ctx, "nope", req); !errors.Is(err, ErrNoScript) {
		t.Errorf("expected ErrNoScript for an unknown hash, got %v", err)
	}

	engine.ScriptFlush()
	if _, err := engine.EvalSHA(ctx, sha, req); !errors.Is(err, ErrNoScript) {
		t.Errorf("expected ErrNoScript, got %v", err)
	}
}

func TestEngine_NoFixtureProvider(t *testing.T) {
	engine := NewEngine(nil)
	req := mustRequest(t, "heos://system/heart_beat")

	if _, err := engine.Eval(context.Background(), "return heos.fixture('x')", req); !errors.Is(err, fixture.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestEngine_CancelledContext(t *testing.T) {
	engine := NewEngine(nil)
	req := mustRequest(t, "heos://system/heart_beat")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := engine.Eval(ctx, "while true do end", req); err == nil {
		t.Error("expected cancelled script to fail")
	}
}
