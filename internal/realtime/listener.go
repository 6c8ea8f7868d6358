// Package realtime turns Postgres change notifications into cache
// invalidations and dashboard notices.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultChannel is the notify channel fed by the change trigger.
const DefaultChannel = "invite_changes"

// Change is one row change as published by the trigger.
type Change struct {
	Table   string `json:"table"`
	Op      string `json:"op"`
	EventID string `json:"event_id"`
	ID      string `json:"id"`
}

type subscription struct {
	tables  map[string]bool
	eventID string
	fn      func(Change)
}

func (s *subscription) matches(c Change) bool {
	if !s.tables[c.Table] {
		return false
	}
	return s.eventID == "" || s.eventID == c.EventID
}

type Listener struct {
	pool       *pgxpool.Pool
	channel    string
	status     *Status
	logger     *slog.Logger
	retryDelay time.Duration

	// connectTimeout bounds acquiring the LISTEN connection.
	connectTimeout time.Duration

	mu   sync.RWMutex
	subs map[int]*subscription
	next int
}

func NewListener(pool *pgxpool.Pool, channel string, status *Status, logger *slog.Logger) *Listener {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Listener{
		pool:           pool,
		channel:        channel,
		status:         status,
		logger:         logger,
		retryDelay:     2 * time.Second,
		connectTimeout: 10 * time.Second,
		subs:           map[int]*subscription{},
	}
}

// Subscribe calls fn for every change on one of tables. An empty eventID
// matches every event. The returned func removes the subscription.
func (l *Listener) Subscribe(tables []string, eventID string, fn func(Change)) func() {
	sub := &subscription{tables: map[string]bool{}, eventID: eventID, fn: fn}
	for _, t := range tables {
		sub.tables[t] = true
	}

	l.mu.Lock()
	id := l.next
	l.next++
	l.subs[id] = sub
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.subs, id)
		l.mu.Unlock()
	}
}

// Run listens until ctx is cancelled. A dropped connection is reported on the
// status and replaced with a fresh one from the pool after a pause.
func (l *Listener) Run(ctx context.Context) {
	l.logger.Info("Listening for row changes", "channel", l.channel)
	for {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			l.status.Set(StateClosed)
			return
		}

		if errors.Is(err, context.DeadlineExceeded) {
			l.status.Set(StateTimeout)
		} else {
			l.status.Set(StateError)
		}
		l.logger.Error("Change subscription ended, starting a new one", "error", err)

		select {
		case <-ctx.Done():
			l.status.Set(StateClosed)
			return
		case <-time.After(l.retryDelay):
		}
	}
}

func (l *Listener) listen(ctx context.Context) error {
	acquireCtx, cancel := context.WithTimeout(ctx, l.connectTimeout)
	conn, err := l.pool.Acquire(acquireCtx)
	cancel()
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	// A connection that was listening must not go back into the pool.
	pgConn := conn.Hijack()
	defer pgConn.Close(context.Background())

	if _, err := pgConn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	l.status.Set(StateSubscribed)

	for {
		n, err := pgConn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		l.Dispatch(n.Payload)
	}
}

// Dispatch decodes a notification payload and hands it to every matching
// subscription.
func (l *Listener) Dispatch(payload string) {
	var c Change
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		l.logger.Warn("Ignoring malformed change notification", "error", err)
		return
	}

	l.mu.RLock()
	matched := make([]func(Change), 0, len(l.subs))
	for _, sub := range l.subs {
		if sub.matches(c) {
			matched = append(matched, sub.fn)
		}
	}
	l.mu.RUnlock()

	for _, fn := range matched {
		fn(c)
	}
}
