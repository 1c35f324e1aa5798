package clientapp

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fr3shw3b/tapsync/pkg/buttons"
	"github.com/fr3shw3b/tapsync/pkg/protocol"
	"github.com/fr3shw3b/tapsync/pkg/session"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

type unreachableTransport struct{}

func (unreachableTransport) Submit(context.Context, string, uint64, protocol.SubmitRequest) (*protocol.SubmitResponse, error) {
	return nil, io.ErrUnexpectedEOF
}

func Test_stdin_lines_are_recorded_as_presses(t *testing.T) {
	engine := createEngine()
	input := strings.NewReader("skill1\n\n  enemy2 \nboss\nskill1\n")

	readPresses(context.Background(), engine, input, createLogger())

	if engine.Pending(buttons.Skill1) != 2 || engine.Pending(buttons.Enemy2) != 1 {
		t.Errorf("expected skill1 x2 and enemy2 x1, got %d and %d", engine.Pending(buttons.Skill1), engine.Pending(buttons.Enemy2))
	}
	if engine.PendingTotal() != 3 {
		t.Errorf("expected unknown lines to be skipped, got %d pending", engine.PendingTotal())
	}
}

func Test_simulated_presses_are_all_recorded(t *testing.T) {
	engine := createEngine()
	presses := []buttons.Category{buttons.Enemy1, buttons.Enemy1, buttons.Skill3}

	simulatePresses(context.Background(), engine, presses, 0)

	if engine.Pending(buttons.Enemy1) != 2 || engine.Pending(buttons.Skill3) != 1 {
		t.Errorf("unexpected pending counts %d and %d", engine.Pending(buttons.Enemy1), engine.Pending(buttons.Skill3))
	}
}

func Test_simulation_stops_when_cancelled(t *testing.T) {
	engine := createEngine()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	simulatePresses(ctx, engine, []buttons.Category{buttons.Skill2}, 0)

	if engine.PendingTotal() != 0 {
		t.Errorf("expected no presses after cancellation, got %d", engine.PendingTotal())
	}
}

func createEngine() *session.Engine {
	engine := session.NewEngine(&session.EngineParams{Clock: clockwork.NewFakeClock()}, unreachableTransport{}, createLogger())
	engine.SetIdentity(session.Identity{RoomID: "room-1", ViewerID: "viewer-1"})
	return engine
}

func createLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type recordingTransport struct {
	received int
}

func (r *recordingTransport) Submit(_ context.Context, _ string, _ uint64, request protocol.SubmitRequest) (*protocol.SubmitResponse, error) {
	for _, event := range request.PushEvents {
		r.received += event.PushCount
	}
	return &protocol.SubmitResponse{Progress: &protocol.Progress{EventResults: []protocol.EventResult{}}}, nil
}

func Test_drain_sends_the_remaining_presses(t *testing.T) {
	transport := &recordingTransport{}
	engine := session.NewEngine(&session.EngineParams{Clock: clockwork.NewFakeClock()}, transport, createLogger())
	engine.SetIdentity(session.Identity{RoomID: "room-1", ViewerID: "viewer-1"})
	for i := 0; i < 4; i++ {
		engine.Record(buttons.Skill1)
	}

	drain(context.Background(), engine, time.Millisecond)

	if transport.received != 4 || engine.PendingTotal() != 0 {
		t.Errorf("expected all 4 presses sent, got %d with %d pending", transport.received, engine.PendingTotal())
	}
}

// slowTransport holds every exchange until released or cancelled.
type slowTransport struct {
	entered chan struct{}
	release chan struct{}

	mu       sync.Mutex
	received int
}

func (s *slowTransport) Submit(ctx context.Context, _ string, _ uint64, request protocol.SubmitRequest) (*protocol.SubmitResponse, error) {
	s.entered <- struct{}{}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.release:
	}
	s.mu.Lock()
	for _, event := range request.PushEvents {
		s.received += event.PushCount
	}
	s.mu.Unlock()
	return &protocol.SubmitResponse{Progress: &protocol.Progress{EventResults: []protocol.EventResult{}}}, nil
}

func Test_drain_waits_for_the_exchange_in_flight_before_shutdown(t *testing.T) {
	transport := &slowTransport{entered: make(chan struct{}, 4), release: make(chan struct{})}
	engine := session.NewEngine(&session.EngineParams{Clock: clockwork.NewFakeClock()}, transport, createLogger())
	engine.SetIdentity(session.Identity{RoomID: "room-1", ViewerID: "viewer-1"})
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine.Record(buttons.Skill1)
	if outcome := engine.Tick(runCtx); outcome != session.FlushStarted {
		t.Errorf("expected the tick to start an exchange, got %s", outcome)
		t.FailNow()
	}
	<-transport.entered

	drained := make(chan struct{})
	go func() {
		drain(context.Background(), engine, time.Millisecond)
		close(drained)
	}()

	select {
	case <-drained:
		t.Error("expected drain to wait while the batch is still in flight")
		t.FailNow()
	case <-time.After(50 * time.Millisecond):
	}

	close(transport.release)
	select {
	case <-drained:
	case <-time.After(2 * time.Second):
		t.Error("expected drain to finish once the exchange completed")
		t.FailNow()
	}
	cancel()

	transport.mu.Lock()
	defer transport.mu.Unlock()
	if transport.received != 1 || engine.PendingTotal() != 0 {
		t.Errorf("expected the press to be sent before shutdown, got %d sent with %d pending", transport.received, engine.PendingTotal())
	}
}
