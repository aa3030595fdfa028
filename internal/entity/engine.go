package entity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/duetapp/duet/internal/couple"
	"github.com/duetapp/duet/internal/session"
	"github.com/duetapp/duet/internal/user"
	"github.com/jackc/pgx/v5"
)

// Point awards for entity transitions.
const (
	pointsTaskCreated       = 5
	pointsTaskCompleted     = 10
	pointsShoppingCompleted = 3
	pointsHabitCreated      = 3
	pointsHabitCompleted    = 1
	pointsRequestApproved   = 5
)

// RecordStore is the persistence interface the engine drives. It exists to
// allow testing without a real database. Get* methods report missing rows via
// pgx.ErrNoRows (possibly wrapped). Insert* may return (nil, nil) when the
// backend confirms a write without returning the stored row; the engine then
// keeps a temporary local copy.
type RecordStore interface {
	InsertEvent(ctx context.Context, e *Event) (*Event, error)
	GetEvent(ctx context.Context, id string) (*Event, error)
	UpdateEvent(ctx context.Context, id string, in UpdateEventInput) (*Event, error)
	DeleteEvent(ctx context.Context, id string) error
	ListEvents(ctx context.Context, coupleID *string, userID string) ([]*Event, error)

	InsertTask(ctx context.Context, t *Task) (*Task, error)
	GetTask(ctx context.Context, id string) (*Task, error)
	UpdateTask(ctx context.Context, id string, in UpdateTaskInput) (*Task, error)
	SetTaskCompleted(ctx context.Context, id string, completed bool) (*Task, error)
	DeleteTask(ctx context.Context, id string) error
	ListTasks(ctx context.Context, coupleID *string, userID string) ([]*Task, error)

	InsertShoppingItem(ctx context.Context, i *ShoppingItem) (*ShoppingItem, error)
	GetShoppingItem(ctx context.Context, id string) (*ShoppingItem, error)
	UpdateShoppingItem(ctx context.Context, id string, in UpdateShoppingItemInput) (*ShoppingItem, error)
	SetShoppingItemCompleted(ctx context.Context, id string, completed bool) (*ShoppingItem, error)
	DeleteShoppingItem(ctx context.Context, id string) error
	ListShoppingItems(ctx context.Context, coupleID *string, userID string) ([]*ShoppingItem, error)

	InsertHabit(ctx context.Context, h *Habit) (*Habit, error)
	GetHabit(ctx context.Context, id string) (*Habit, error)
	UpdateHabit(ctx context.Context, id string, in UpdateHabitInput) (*Habit, error)
	SetHabitProgress(ctx context.Context, id string, progress map[string]bool, streak int, lastCompleted *string) (*Habit, error)
	DeleteHabit(ctx context.Context, id string) error
	ListHabits(ctx context.Context, coupleID *string, userID string) ([]*Habit, error)

	InsertRequest(ctx context.Context, r *Request) (*Request, error)
	GetRequest(ctx context.Context, id string) (*Request, error)
	UpdateRequest(ctx context.Context, id string, in UpdateRequestInput) (*Request, error)
	ResolveRequest(ctx context.Context, id, status string, rejectReason *string) (*Request, error)
	SetRequestLinkedEvent(ctx context.Context, id, eventID string) error
	DeleteRequest(ctx context.Context, id string) error
	ListRequests(ctx context.Context, coupleID *string, userID string) ([]*Request, error)
}

// CoupleRefresher re-queries pairing state when the session's cached couple
// reference is missing or stale.
type CoupleRefresher interface {
	RefreshCoupleData(ctx context.Context, userID string) (*couple.Couple, error)
}

// Dispatcher receives fire-and-forget side effects. Implementations must not
// block; failures inside the dispatcher never reach the engine.
type Dispatcher interface {
	NotifyPartner(recipientID string, kind Kind, entityID, title, message string)
	AwardPoints(userID string, amount int, reason string)
}

// Mirror is the local cache the engine shadows every collection into.
type Mirror interface {
	PutCollection(ctx context.Context, kind, userID string, v any) error
	GetCollection(ctx context.Context, kind, userID string, v any) error
}

// Instrumentation counts notable engine events. Optional.
type Instrumentation interface {
	IncMirrorFallback(kind string)
}

// Engine implements the owned-entity operations. Every mutating entry point
// follows the same shape: require a user, resolve couple context, check
// ownership, persist, mirror, then dispatch side effects. Entry points return
// a typed *Error or succeed; they never panic.
type Engine struct {
	store   RecordStore
	couples CoupleRefresher
	effects Dispatcher
	mirror  Mirror
	instr   Instrumentation
}

// NewEngine creates the entity operation engine.
func NewEngine(store RecordStore, couples CoupleRefresher, effects Dispatcher, mirror Mirror) *Engine {
	return &Engine{store: store, couples: couples, effects: effects, mirror: mirror}
}

// Instrument attaches metric counters to the engine.
func (e *Engine) Instrument(in Instrumentation) {
	e.instr = in
}

func requireUser(sess *session.Session) (*user.User, *Error) {
	if sess == nil || sess.User == nil {
		return nil, errUnauthenticated()
	}
	return sess.User, nil
}

// resolveCoupleContext returns the session's couple, refreshing it from the
// store when the cached reference is absent or still pending. Pairing can
// complete after the session was established (the partner redeems the code
// later), so anything short of an active couple is re-checked on every call
// rather than cached as a permanent failure.
func (e *Engine) resolveCoupleContext(ctx context.Context, sess *session.Session) *couple.Couple {
	if sess.Couple.IsActive() {
		return sess.Couple
	}
	if sess.User == nil {
		return nil
	}
	c, err := e.couples.RefreshCoupleData(ctx, sess.User.ID)
	if err != nil {
		slog.Warn("couple refresh failed", "user_id", sess.User.ID, "error", err)
		return nil
	}
	if c == nil {
		return nil
	}
	sess.Couple = c
	return c
}

// activeCoupleID returns the couple id to scope queries by, or nil when the
// user has no active couple.
func activeCoupleID(c *couple.Couple) *string {
	if !c.IsActive() {
		return nil
	}
	id := c.ID
	return &id
}

// checkMutable verifies the session user may mutate an existing entity.
// Personal entities are invisible to anyone but their creator. Couple-scoped
// entities need a resolvable couple context (refreshed once here) matching
// the entity's couple.
func (e *Engine) checkMutable(ctx context.Context, sess *session.Session, createdBy string, coupleID *string, isPersonal bool, kind Kind) *Error {
	if isPersonal {
		if createdBy != sess.User.ID {
			return newError(CodeNotFound, kindNoun(kind)+" not found")
		}
		return nil
	}
	c := e.resolveCoupleContext(ctx, sess)
	if !c.IsActive() {
		return errCoupleContextUnavailable()
	}
	if coupleID == nil || c.ID != *coupleID {
		return newError(CodeForbidden, "you do not have access to this "+kindNoun(kind))
	}
	return nil
}

// partnerID returns the user to notify for a couple-scoped transition, or ""
// when no partner is resolved.
func partnerID(sess *session.Session) string {
	if sess.Partner != nil {
		return sess.Partner.ID
	}
	if sess.Couple != nil && sess.User != nil {
		return sess.Couple.OtherUser(sess.User.ID)
	}
	return ""
}

func kindNoun(kind Kind) string {
	switch kind {
	case KindEvent:
		return "event"
	case KindTask:
		return "task"
	case KindShoppingItem:
		return "shopping item"
	case KindHabit:
		return "habit"
	case KindRequest:
		return "request"
	}
	return "item"
}

// loadFailure maps a store read error to the engine taxonomy.
func loadFailure(kind Kind, id string, err error) *Error {
	if errors.Is(err, pgx.ErrNoRows) {
		return newError(CodeNotFound, kindNoun(kind)+" not found")
	}
	return remoteFailure("load", kind, id, err)
}

// remoteFailure wraps a store error, passing its message through verbatim.
func remoteFailure(op string, kind Kind, id string, err error) *Error {
	slog.Error("remote store failure", "kind", kind, "id", id, "op", op, "error", err)
	return &Error{Code: CodeRemoteStoreFailure, Message: err.Error(), Err: err}
}

// dedupeByID drops duplicates from a unioned query result, keeping the first
// occurrence. Unioned queries can overlap (requests appear in both the couple
// and the sent/received result), so every list path runs through this.
func dedupeByID[T any](items []*T, id func(*T) string) []*T {
	seen := make(map[string]struct{}, len(items))
	out := items[:0]
	for _, item := range items {
		key := id(item)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, item)
	}
	return out
}

// countMirrorFallback records that a list was served from the local cache.
func (e *Engine) countMirrorFallback(kind Kind) {
	if e.instr != nil {
		e.instr.IncMirrorFallback(string(kind))
	}
}

// mirrorCollection writes a collection through to the local cache. Mirror
// failures are logged and never affect the primary operation.
func (e *Engine) mirrorCollection(ctx context.Context, kind Kind, userID string, v any) {
	if err := e.mirror.PutCollection(ctx, string(kind), userID, v); err != nil {
		slog.Warn("local cache mirror write failed", "kind", kind, "user_id", userID, "error", err)
	}
}

// normalizeDay reduces a date or timestamp string to its YYYY-MM-DD day key.
func normalizeDay(date string) (string, error) {
	if t, err := time.Parse("2006-01-02", date); err == nil {
		return t.Format("2006-01-02"), nil
	}
	if t, err := time.Parse(time.RFC3339, date); err == nil {
		return t.Format("2006-01-02"), nil
	}
	return "", fmt.Errorf("unrecognized date %q", date)
}
