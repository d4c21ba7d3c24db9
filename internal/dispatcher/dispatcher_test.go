package dispatcher

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("DEBUG: %s %v", msg, keysAndValues))
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("INFO: %s %v", msg, keysAndValues))
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("ERROR: %s %v", msg, keysAndValues))
}

func (l *testLogger) hasPrefix(prefix string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, msg := range l.messages {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	logger := &testLogger{}

	d, err := New(logger)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}
	t.Cleanup(d.Close)

	return d, logger
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got Event
	d.Register(":STATUS:", func(e Event) (any, error) {
		got = e
		return "result", nil
	})

	result, err := d.Dispatch(Event{Command: ":STATUS:", Args: []string{"m-1"}, Source: "cli"})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if result != "result" {
		t.Errorf("expected 'result', got %v", result)
	}
	if got.Arg(0) != "m-1" || got.Arg(1) != "" {
		t.Errorf("unexpected args %v", got.Args)
	}
	if got.Timestamp.IsZero() {
		t.Error("expected timestamp to be stamped")
	}
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Dispatch(Event{Command: ":UNKNOWN:"})

	if !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("expected ErrUnknownCommand, got %v", err)
	}
}

func TestDispatcher_BufferedHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)

	d.Register(":VALIDATE:", func(e Event) (any, error) {
		processed.Add(1)
		wg.Done()
		return nil, nil
	}, Buffered(100))

	for i := 0; i < 3; i++ {
		result, err := d.Dispatch(Event{Command: ":VALIDATE:"})
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if result != "queued" {
			t.Errorf("expected 'queued', got %v", result)
		}
	}

	wg.Wait()

	if processed.Load() != 3 {
		t.Errorf("expected 3 processed, got %d", processed.Load())
	}
}

func TestDispatcher_BufferedDropsWhenFull(t *testing.T) {
	d, _ := newTestDispatcher(t)

	started := make(chan struct{}, 3)
	block := make(chan struct{})
	d.Register(":FULL:", func(e Event) (any, error) {
		started <- struct{}{}
		<-block
		return nil, nil
	}, Buffered(2))
	defer close(block)

	d.Dispatch(Event{Command: ":FULL:"})
	<-started // first event is being processed

	d.Dispatch(Event{Command: ":FULL:"}) // queued
	d.Dispatch(Event{Command: ":FULL:"}) // queued

	_, err := d.Dispatch(Event{Command: ":FULL:"})
	if !errors.Is(err, ErrQueueFull) {
		t.Errorf("expected ErrQueueFull, got %v", err)
	}
}

func TestDispatcher_BufferedBlocking(t *testing.T) {
	d, _ := newTestDispatcher(t)

	started := make(chan struct{}, 3)
	block := make(chan struct{})
	d.Register(":BLOCKING:", func(e Event) (any, error) {
		started <- struct{}{}
		<-block
		return nil, nil
	}, Buffered(1), Blocking())

	d.Dispatch(Event{Command: ":BLOCKING:"})
	<-started
	d.Dispatch(Event{Command: ":BLOCKING:"})

	done := make(chan struct{})
	go func() {
		d.Dispatch(Event{Command: ":BLOCKING:"})
		close(done)
	}()

	select {
	case <-done:
		t.Error("dispatch should have blocked")
	case <-time.After(50 * time.Millisecond):
	}

	close(block)
	<-done
}

func TestDispatcher_QueuedErrorIsLogged(t *testing.T) {
	d, logger := newTestDispatcher(t)

	var wg sync.WaitGroup
	wg.Add(1)
	d.Register(":EXECUTE:", func(e Event) (any, error) {
		defer wg.Done()
		return nil, errors.New("not validated")
	}, Buffered(1))

	d.Dispatch(Event{Command: ":EXECUTE:"})
	wg.Wait()
	d.Close()

	if !logger.hasPrefix("ERROR: queued event failed") {
		t.Error("expected queued failure to be logged")
	}
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(":LOGGED:", func(e Event) (any, error) {
		return "ok", nil
	}, Logged())

	d.Dispatch(Event{Command: ":LOGGED:", Args: []string{"a", "b"}})

	if !logger.hasPrefix("DEBUG: handling event") || !logger.hasPrefix("DEBUG: event complete") {
		t.Errorf("expected start and completion logs, got %v", logger.messages)
	}
}

func TestDispatcher_LoggedHandlerError(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(":ERROR:", func(e Event) (any, error) {
		return nil, fmt.Errorf("test error")
	}, Logged())

	d.Dispatch(Event{Command: ":ERROR:"})

	if !logger.hasPrefix("ERROR") {
		t.Error("expected error log message")
	}
}

func TestDispatcher_HasHandlerAndCommands(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register(":PAUSE:", func(e Event) (any, error) { return nil, nil })
	d.Register(":EXECUTE:", func(e Event) (any, error) { return nil, nil })

	if !d.HasHandler(":PAUSE:") {
		t.Error("expected handler to exist")
	}
	if d.HasHandler(":NOT_EXISTS:") {
		t.Error("expected handler to not exist")
	}

	cmds := d.Commands()
	if len(cmds) != 2 || cmds[0] != ":EXECUTE:" || cmds[1] != ":PAUSE:" {
		t.Errorf("unexpected commands %v", cmds)
	}
}

func TestDispatcher_Close(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	d.Register(":QUEUED:", func(e Event) (any, error) {
		processed.Add(1)
		return nil, nil
	}, Buffered(10))

	for i := 0; i < 5; i++ {
		d.Dispatch(Event{Command: ":QUEUED:"})
	}
	d.Close()

	if processed.Load() != 5 {
		t.Errorf("expected queue drained on close, got %d", processed.Load())
	}

	if _, err := d.Dispatch(Event{Command: ":QUEUED:"}); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}

	d.Close()
}

func TestDispatcher_QueueDepths(t *testing.T) {
	d, _ := newTestDispatcher(t)

	started := make(chan struct{}, 1)
	block := make(chan struct{})
	d.Register(":RETURN:", func(e Event) (any, error) {
		started <- struct{}{}
		<-block
		return nil, nil
	}, Buffered(4))
	defer close(block)

	d.Dispatch(Event{Command: ":RETURN:", Source: "mqtt"})
	<-started
	d.Dispatch(Event{Command: ":RETURN:", Source: "mqtt"})
	d.Dispatch(Event{Command: ":RETURN:", Source: "mqtt"})

	if got := d.queueDepths()[":RETURN:"]; got != 2 {
		t.Errorf("expected depth 2, got %d", got)
	}
}

func TestEvent_Arg(t *testing.T) {
	e := Event{Args: []string{"m-1", "grid"}}
	if e.Arg(0) != "m-1" || e.Arg(1) != "grid" {
		t.Errorf("unexpected args %q %q", e.Arg(0), e.Arg(1))
	}
	if e.Arg(2) != "" || e.Arg(-1) != "" {
		t.Error("expected empty string for missing args")
	}
}
