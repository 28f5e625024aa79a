package fixture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"
)

func TestMemory_BasicOperations(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if _, err := m.Fetch(ctx, "player.get_players"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	m.Set("player.get_players", `{"heos": {}}`)
	text, err := m.Fetch(ctx, "player.get_players")
	if err != nil {
		t.Fatal(err)
	}
	if text != `{"heos": {}}` {
		t.Errorf("unexpected text %q", text)
	}

	m.Set("player.get_volume", "v")
	if got := m.Names(); len(got) != 2 || got[0] != "player.get_players" || got[1] != "player.get_volume" {
		t.Errorf("unexpected names %v", got)
	}

	if deleted := m.Delete("player.get_volume", "missing"); deleted != 1 {
		t.Errorf("expected 1 deletion, got %d", deleted)
	}
	if m.Len() != 1 {
		t.Errorf("expected 1 fixture, got %d", m.Len())
	}
}

func TestMemory_ShardCount(t *testing.T) {
	tests := []struct {
		requested int
		expected  int
	}{
		{1, 1},
		{3, 4},
		{16, 16},
		{100, 128},
	}

	for _, tt := range tests {
		m := NewMemory(WithShardCount(tt.requested))
		if len(m.shards) != tt.expected {
			t.Errorf("WithShardCount(%d): expected %d shards, got %d", tt.requested, tt.expected, len(m.shards))
		}
		m.Set("a", "b")
		if text, ok := m.Get("a"); !ok || text != "b" {
			t.Errorf("WithShardCount(%d): lookup failed", tt.requested)
		}
	}
}

func TestMemory_CancelledContext(t *testing.T) {
	m := NewMemoryFrom(map[string]string{"a": "b"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.Fetch(ctx, "a"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestDir_Fetch(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "player.get_volume.json"), []byte("{\"pid\": \"{player_id}\"}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "system.heart_beat.json"), []byte("beat\r\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	d := NewDir(root)
	ctx := context.Background()

	text, err := d.Fetch(ctx, "player.get_volume")
	if err != nil {
		t.Fatal(err)
	}
	if text != `{"pid": "{player_id}"}` {
		t.Errorf("unexpected text %q", text)
	}

	text, err = d.Fetch(ctx, "system.heart_beat")
	if err != nil {
		t.Fatal(err)
	}
	if text != "beat" {
		t.Errorf("unexpected text %q", text)
	}

	_, err = d.Fetch(ctx, "player.get_mute")
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if notFound.Name != "player.get_mute" {
		t.Errorf("unexpected name %q", notFound.Name)
	}

	if _, err := d.Fetch(ctx, "../escape"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("expected invalid name error, got %v", err)
	}

	names, err := d.Names()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 {
		t.Errorf("expected 2 names, got %v", names)
	}
	if d.Path("x") != filepath.Join(root, "x.json") {
		t.Errorf("unexpected path %q", d.Path("x"))
	}
}

func TestFS_Fetch(t *testing.T) {
	fsys := fstest.MapFS{
		"player.get_players.txt": {Data: []byte("players")},
	}
	d := NewFS(fsys, ".txt")

	text, err := d.Fetch(context.Background(), "player.get_players")
	if err != nil {
		t.Fatal(err)
	}
	if text != "players" {
		t.Errorf("unexpected text %q", text)
	}
}

func TestChain(t *testing.T) {
	overrides := NewMemoryFrom(map[string]string{"a": "override"})
	base := NewMemoryFrom(map[string]string{"a": "base", "b": "base"})
	chain := Chain{overrides, base}
	ctx := context.Background()

	if text, _ := chain.Fetch(ctx, "a"); text != "override" {
		t.Errorf("expected override, got %q", text)
	}
	if text, _ := chain.Fetch(ctx, "b"); text != "base" {
		t.Errorf("expected base, got %q", text)
	}
	if _, err := chain.Fetch(ctx, "c"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	boom := errors.New("boom")
	failing := Chain{ProviderFunc(func(context.Context, string) (string, error) { return "", boom }), base}
	if _, err := failing.Fetch(ctx, "b"); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}

func TestPool_BoundsConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	slow := ProviderFunc(func(ctx context.Context, name string) (string, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		return name, nil
	})

	pool := NewPool(slow, 2)
	if pool.Workers() != 2 {
		t.Fatalf("expected 2 workers, got %d", pool.Workers())
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if text, err := pool.Fetch(context.Background(), "x"); err != nil || text != "x" {
				t.Errorf("unexpected result %q %v", text, err)
			}
		}()
	}
	wg.Wait()

	if peak.Load() > 2 {
		t.Errorf("expected at most 2 concurrent lookups, saw %d", peak.Load())
	}
}

func TestPool_CancelWhileWaiting(t *testing.T) {
	release := make(chan struct{})
	blocking := ProviderFunc(func(ctx context.Context, name string) (string, error) {
		<-release
		return name, nil
	})
	pool := NewPool(blocking, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = pool.Fetch(context.Background(), "first")
	}()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := pool.Fetch(ctx, "second"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}

	close(release)
	<-done
}

func TestPool_DefaultWorkers(t *testing.T) {
	want := runtime.NumCPU() + 4
	if want > 32 {
		want = 32
	}
	if got := NewPool(NewMemory(), 0).Workers(); got != want {
		t.Errorf("expected %d default workers, got %d", want, got)
	}
	if got := NewPool(NewMemory(), -3).Workers(); got != want {
		t.Errorf("expected %d workers for a negative size, got %d", want, got)
	}
}

func TestPool_WrapSharesWorkers(t *testing.T) {
	release := make(chan struct{})
	blocking := ProviderFunc(func(ctx context.Context, name string) (string, error) {
		<-release
		return name, nil
	})
	first := NewPool(blocking, 1)
	second := first.Wrap(NewMemoryFrom(map[string]string{"a": "A"}))
	if second.Workers() != 1 {
		t.Fatalf("expected wrapped pool to report 1 worker, got %d", second.Workers())
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = first.Fetch(context.Background(), "slow")
	}()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := second.Fetch(ctx, "a"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected the shared worker to be busy, got %v", err)
	}

	close(release)
	<-done

	if text, err := second.Fetch(context.Background(), "a"); err != nil || text != "A" {
		t.Errorf("unexpected result %q %v", text, err)
	}
}
