package hub

import (
	"context"
	"ctchen222/tictactoe-engine/internal/bot"
	"ctchen222/tictactoe-engine/internal/events"
	"ctchen222/tictactoe-engine/internal/session"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/atomic"
)

var (
	tracer = otel.Tracer("hub")
	meter  = otel.Meter("hub")

	activeSessions, _ = meter.Int64UpDownCounter("hub.sessions.active",
		metric.WithDescription("Number of live sessions held by the hub"))
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrForbidden       = errors.New("session belongs to another player")
)

const updateBuffer = 256

type update struct {
	ctx  context.Context
	snap session.Snapshot
}

type entry struct {
	session     *session.Session
	owner       string
	last        session.Snapshot
	subscribers map[*Subscriber]struct{}
}

// Hub owns every live session, publishes their events and fans their
// snapshots out to subscribers.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	publisher   events.Publisher
	sessionOpts []session.Option
	updates     chan update
	active      *atomic.Int64
}

// Option configures a Hub.
type Option func(*Hub)

// WithSessionOptions appends options applied to every session the hub creates.
func WithSessionOptions(opts ...session.Option) Option {
	return func(h *Hub) { h.sessionOpts = append(h.sessionOpts, opts...) }
}

// NewHub creates a new hub.
func NewHub(publisher events.Publisher, opts ...Option) *Hub {
	if publisher == nil {
		publisher = events.NewNopPublisher()
	}
	h := &Hub{
		sessions:  make(map[string]*entry),
		publisher: publisher,
		updates:   make(chan update, updateBuffer),
		active:    atomic.NewInt64(0),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run dispatches session changes until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	slog.InfoContext(ctx, "Hub started")
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Hub stopped")
			return
		case u := <-h.updates:
			h.dispatch(u.ctx, u.snap)
		}
	}
}

// SessionChanged queues a snapshot for dispatch. Sessions call it from their
// own goroutines, so it never blocks.
func (h *Hub) SessionChanged(ctx context.Context, snap session.Snapshot) {
	select {
	case h.updates <- update{ctx: context.WithoutCancel(ctx), snap: snap}:
	default:
		slog.WarnContext(ctx, "Hub update queue full, dropping snapshot", "session.id", snap.ID, "session.version", snap.Version)
	}
}

// Create starts a new session for owner.
func (h *Hub) Create(ctx context.Context, owner string, difficulty bot.Difficulty) (*session.Session, error) {
	ctx, span := tracer.Start(ctx, "hub.Create", trace.WithAttributes(
		attribute.String("player.id", owner),
		attribute.String("bot.difficulty", string(difficulty)),
	))
	defer span.End()

	id := uuid.New().String()
	opts := append([]session.Option{session.WithID(id), session.WithObserver(h)}, h.sessionOpts...)
	s, err := session.New(difficulty, opts...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to create session")
		return nil, err
	}

	h.mu.Lock()
	h.sessions[id] = &entry{
		session:     s,
		owner:       owner,
		last:        s.Snapshot(),
		subscribers: make(map[*Subscriber]struct{}),
	}
	h.mu.Unlock()

	h.active.Inc()
	activeSessions.Add(ctx, 1)
	span.SetAttributes(attribute.String("session.id", id))
	slog.InfoContext(ctx, "Session created", "session.id", id, "player.id", owner, "bot.difficulty", difficulty)
	return s, nil
}

// Get returns the session with id if it belongs to owner.
func (h *Hub) Get(id, owner string) (*session.Session, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	e, err := h.lookupLocked(id, owner)
	if err != nil {
		return nil, err
	}
	return e.session, nil
}

// Remove closes the session, disconnects its subscribers and forgets it.
func (h *Hub) Remove(ctx context.Context, id, owner string) error {
	ctx, span := tracer.Start(ctx, "hub.Remove", trace.WithAttributes(
		attribute.String("session.id", id),
		attribute.String("player.id", owner),
	))
	defer span.End()

	h.mu.Lock()
	e, err := h.lookupLocked(id, owner)
	if err != nil {
		h.mu.Unlock()
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to remove session")
		return err
	}
	delete(h.sessions, id)
	h.mu.Unlock()

	h.closeEntry(ctx, id, e)
	slog.InfoContext(ctx, "Session removed", "session.id", id, "player.id", owner)
	return nil
}

// Close shuts down every session. It is called on server shutdown.
func (h *Hub) Close(ctx context.Context) {
	h.mu.Lock()
	entries := h.sessions
	h.sessions = make(map[string]*entry)
	h.mu.Unlock()

	for id, e := range entries {
		h.closeEntry(ctx, id, e)
	}
	slog.InfoContext(ctx, "Hub closed", "hub.sessions.closed", len(entries))
}

// closeEntry releases a session already removed from the registry.
func (h *Hub) closeEntry(ctx context.Context, id string, e *entry) {
	h.mu.Lock()
	for sub := range e.subscribers {
		sub.close()
	}
	h.mu.Unlock()

	e.session.Close()
	h.active.Dec()
	activeSessions.Add(ctx, -1)
	h.publish(ctx, events.TypeSessionClosed, events.SessionResetPayload{SessionID: id})
}

// Active returns the number of live sessions.
func (h *Hub) Active() int64 {
	return h.active.Load()
}

func (h *Hub) lookupLocked(id, owner string) (*entry, error) {
	e, ok := h.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if e.owner != owner {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, id)
	}
	return e, nil
}

func (h *Hub) dispatch(ctx context.Context, snap session.Snapshot) {
	h.mu.Lock()
	e, ok := h.sessions[snap.ID]
	if !ok || snap.Version <= e.last.Version {
		h.mu.Unlock()
		return
	}
	prev := e.last
	e.last = snap
	owner := e.owner
	for sub := range e.subscribers {
		select {
		case sub.ch <- snap:
		default:
			slog.WarnContext(ctx, "Dropping slow subscriber", "session.id", snap.ID)
			delete(e.subscribers, sub)
			sub.close()
		}
	}
	h.mu.Unlock()

	for _, ev := range deriveEvents(owner, prev, snap) {
		if err := h.publisher.Publish(ctx, ev); err != nil {
			slog.ErrorContext(ctx, "Failed to publish session event", "session.id", snap.ID, "event.type", ev.Type, "error", err)
		}
	}
}

func (h *Hub) publish(ctx context.Context, eventType string, payload any) {
	ev, err := events.New(eventType, payload)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to build session event", "event.type", eventType, "error", err)
		return
	}
	if err := h.publisher.Publish(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish session event", "event.type", eventType, "error", err)
	}
}
