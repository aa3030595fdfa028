// Package sideeffect delivers the fire-and-forget consequences of entity
// operations: partner notifications and point awards. Effects are buffered
// and applied in the background so the operations that emit them never wait
// on or fail because of them.
package sideeffect

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/duetapp/duet/internal/entity"
	"github.com/duetapp/duet/internal/notify"
	"github.com/duetapp/duet/internal/points"
)

type effectKind int

const (
	effectNotify effectKind = iota
	effectAward
)

type effect struct {
	kind effectKind

	// notify fields
	recipientID string
	entityKind  entity.Kind
	entityID    string
	title       string
	message     string

	// award fields
	userID string
	amount int
	reason string
}

// NotificationStore persists notifications for later listing.
type NotificationStore interface {
	Insert(ctx context.Context, n *notify.Notification) (*notify.Notification, error)
}

// Publisher pushes a stored notification to live subscribers.
type Publisher interface {
	Publish(n *notify.Notification)
}

// PointsLedger credits points and resolves achievement unlocks.
type PointsLedger interface {
	Add(ctx context.Context, userID string, amount int) (*points.UserPoints, bool, error)
	UnlockedBy(ctx context.Context, userID string, total int) ([]*points.Achievement, error)
	Grant(ctx context.Context, userID, achievementID string) (bool, error)
}

// Instrumentation counts queued effects and tracks buffer depth. Optional.
type Instrumentation interface {
	IncDispatchEffect(effect string)
	SetDispatchBufferSize(n int)
}

// Dispatcher buffers side effects in memory and applies them in batches from
// a background goroutine. It is safe for concurrent use. Failures are logged,
// never returned: by the time an effect is applied its originating operation
// has already succeeded.
type Dispatcher struct {
	notifications NotificationStore
	publisher     Publisher
	ledger        PointsLedger
	instr         Instrumentation

	buffer        []effect
	mu            sync.Mutex
	batchSize     int
	flushInterval time.Duration
	done          chan struct{}
	stopOnce      sync.Once
}

// NewDispatcher creates a dispatcher that applies buffered effects when the
// buffer reaches batchSize or every flushInterval, whichever comes first.
func NewDispatcher(notifications NotificationStore, publisher Publisher, ledger PointsLedger, batchSize int, flushInterval time.Duration) *Dispatcher {
	return &Dispatcher{
		notifications: notifications,
		publisher:     publisher,
		ledger:        ledger,
		buffer:        make([]effect, 0, batchSize),
		batchSize:     batchSize,
		flushInterval: flushInterval,
		done:          make(chan struct{}),
	}
}

// Instrument attaches metric counters to the dispatcher.
func (d *Dispatcher) Instrument(in Instrumentation) {
	d.instr = in
}

// Start begins the background goroutine that applies buffered effects on a
// timer. It blocks until Stop is called or the context is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.flush()
		case <-ctx.Done():
			d.flush()
			return
		case <-d.done:
			d.flush()
			return
		}
	}
}

// NotifyPartner queues a notification for the recipient. An empty recipient
// is a no-op, which lets callers fire unconditionally for couple-scoped
// transitions.
func (d *Dispatcher) NotifyPartner(recipientID string, kind entity.Kind, entityID, title, message string) {
	if recipientID == "" {
		return
	}
	d.enqueue(effect{
		kind:        effectNotify,
		recipientID: recipientID,
		entityKind:  kind,
		entityID:    entityID,
		title:       title,
		message:     message,
	})
}

// AwardPoints queues a point credit for the user.
func (d *Dispatcher) AwardPoints(userID string, amount int, reason string) {
	if userID == "" || amount <= 0 {
		return
	}
	d.enqueue(effect{kind: effectAward, userID: userID, amount: amount, reason: reason})
}

func (d *Dispatcher) enqueue(e effect) {
	d.mu.Lock()
	d.buffer = append(d.buffer, e)
	depth := len(d.buffer)
	d.mu.Unlock()

	if d.instr != nil {
		d.instr.IncDispatchEffect(effectLabel(e.kind))
		d.instr.SetDispatchBufferSize(depth)
	}

	if depth >= d.batchSize {
		d.flush()
	}
}

func effectLabel(k effectKind) string {
	if k == effectAward {
		return "award"
	}
	return "notify"
}

// flush drains the buffer and applies each effect. Errors are logged so
// callers are never blocked.
func (d *Dispatcher) flush() {
	d.mu.Lock()
	if len(d.buffer) == 0 {
		d.mu.Unlock()
		return
	}
	batch := d.buffer
	d.buffer = make([]effect, 0, d.batchSize)
	d.mu.Unlock()

	if d.instr != nil {
		d.instr.SetDispatchBufferSize(0)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, e := range batch {
		switch e.kind {
		case effectNotify:
			d.applyNotify(ctx, e)
		case effectAward:
			d.applyAward(ctx, e)
		}
	}
}

func (d *Dispatcher) applyNotify(ctx context.Context, e effect) {
	stored, err := d.notifications.Insert(ctx, &notify.Notification{
		RecipientID: e.recipientID,
		Kind:        string(e.entityKind),
		EntityID:    e.entityID,
		Title:       e.title,
		Message:     e.message,
	})
	if err != nil {
		slog.Error("failed to store notification", "recipient_id", e.recipientID, "error", err)
		return
	}
	d.publisher.Publish(stored)
}

func (d *Dispatcher) applyAward(ctx context.Context, e effect) {
	p, leveledUp, err := d.ledger.Add(ctx, e.userID, e.amount)
	if err != nil {
		slog.Error("failed to award points", "user_id", e.userID, "amount", e.amount, "reason", e.reason, "error", err)
		return
	}
	slog.Debug("points awarded", "user_id", e.userID, "amount", e.amount, "reason", e.reason, "total", p.Total)

	if leveledUp {
		d.selfNotify(ctx, e.userID, "Level up!", "You reached level "+strconv.Itoa(p.Level))
	}

	unlocked, err := d.ledger.UnlockedBy(ctx, e.userID, p.Total)
	if err != nil {
		slog.Error("failed to resolve achievements", "user_id", e.userID, "error", err)
		return
	}
	for _, a := range unlocked {
		granted, err := d.ledger.Grant(ctx, e.userID, a.ID)
		if err != nil {
			slog.Error("failed to grant achievement", "user_id", e.userID, "achievement", a.Code, "error", err)
			continue
		}
		if granted {
			d.selfNotify(ctx, e.userID, "Achievement unlocked", a.Title)
		}
	}
}

func (d *Dispatcher) selfNotify(ctx context.Context, userID, title, message string) {
	stored, err := d.notifications.Insert(ctx, &notify.Notification{
		RecipientID: userID,
		Kind:        "points",
		Title:       title,
		Message:     message,
	})
	if err != nil {
		slog.Error("failed to store notification", "recipient_id", userID, "error", err)
		return
	}
	d.publisher.Publish(stored)
}

// Stop signals the background goroutine to exit and performs a final flush.
// Safe to call more than once.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.done) })
}
