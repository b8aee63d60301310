package dispatcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/overwolf-labs/obscore/internal/proto"
)

func TestDispatchRoutesByCommand(t *testing.T) {
	d := New(nil)
	defer d.Close()

	got := make(chan proto.Command, 1)
	d.Register(proto.CmdStart, func(ctx context.Context, env proto.Envelope) {
		got <- env.Cmd
	})

	d.OnData([]byte(`{"cmd":3,"identifier":5}`))

	select {
	case cmd := <-got:
		if cmd != proto.CmdStart {
			t.Fatalf("cmd = %v, want CmdStart", cmd)
		}
	case <-time.After(time.Second):
		t.Fatal("handler never ran")
	}
}

func TestDispatchSerializesHandlers(t *testing.T) {
	d := New(nil)
	defer d.Close()

	var mu sync.Mutex
	var order []int
	release := make(chan struct{})

	d.Register(proto.CmdStart, func(ctx context.Context, env proto.Envelope) {
		<-release
		mu.Lock()
		order = append(order, 1)
		mu.Unlock()
	})
	d.Register(proto.CmdStop, func(ctx context.Context, env proto.Envelope) {
		mu.Lock()
		order = append(order, 2)
		mu.Unlock()
	})

	d.OnData([]byte(`{"cmd":3}`))
	d.OnData([]byte(`{"cmd":4}`))

	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	if len(order) != 0 {
		mu.Unlock()
		t.Fatal("second handler ran before first completed")
	}
	mu.Unlock()

	close(release)
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("order = %v, want [1 2]", order)
	}
}

func TestDispatchIgnoresMalformedFrame(t *testing.T) {
	d := New(nil)
	defer d.Close()

	called := false
	d.Register(proto.CmdStart, func(ctx context.Context, env proto.Envelope) {
		called = true
	})

	d.OnData([]byte(`not json`))
	time.Sleep(10 * time.Millisecond)
	if called {
		t.Fatal("handler must not run for malformed frame")
	}
}

func TestPostRunsOnWorker(t *testing.T) {
	d := New(nil)
	defer d.Close()

	done := make(chan struct{})
	if err := d.Post(func(ctx context.Context) { close(done) }); err != nil {
		t.Fatalf("post: %v", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("posted func never ran")
	}
}

func TestDispatchUnknownCommandIsIgnored(t *testing.T) {
	d := New(nil)
	defer d.Close()
	// No handler registered for CmdStop; must not panic.
	d.OnData([]byte(`{"cmd":4}`))
	time.Sleep(10 * time.Millisecond)
}
