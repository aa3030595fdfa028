package entity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/duetapp/duet/internal/session"
)

// CreateEvent adds a calendar event, stamped personal or couple-scoped per
// the resolved couple context.
func (e *Engine) CreateEvent(ctx context.Context, sess *session.Session, in CreateEventInput) (*Event, error) {
	u, failure := requireUser(sess)
	if failure != nil {
		return nil, failure
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, newError(CodeInvalidArgument, "title is required")
	}
	if _, err := normalizeDay(in.Date); err != nil {
		return nil, newError(CodeInvalidArgument, "a valid date is required")
	}

	c := e.resolveCoupleContext(ctx, sess)
	own := DecideOwnership(c, in.Personal)
	draft := &Event{
		Title:       in.Title,
		Description: in.Description,
		Date:        in.Date,
		EndDate:     in.EndDate,
		Time:        in.Time,
		Type:        in.Type,
		Location:    in.Location,
		Color:       in.Color,
		AllDay:      in.AllDay,
		CreatedBy:   u.ID,
		CoupleID:    own.CoupleID,
		IsPersonal:  own.IsPersonal,
	}

	stored, err := e.store.InsertEvent(ctx, draft)
	if err != nil {
		return nil, remoteFailure("create", KindEvent, "", err)
	}
	if stored == nil {
		draft.ID = LocalID()
		draft.CreatedAt = time.Now()
		draft.UpdatedAt = draft.CreatedAt
		stored = draft
		e.syncEventMirror(ctx, u.ID, own.CoupleID, stored)
	} else {
		e.syncEventMirror(ctx, u.ID, own.CoupleID)
	}

	if !stored.IsPersonal {
		if pid := partnerID(sess); pid != "" {
			e.effects.NotifyPartner(pid, KindEvent, stored.ID, "New shared event",
				fmt.Sprintf("%s added %q on %s", u.Name, stored.Title, stored.Date))
		}
	}
	return stored, nil
}

// ListEvents returns every event visible to the user, falling back to the
// local mirror when the remote store is unreachable.
func (e *Engine) ListEvents(ctx context.Context, sess *session.Session) ([]*Event, error) {
	u, failure := requireUser(sess)
	if failure != nil {
		return nil, failure
	}
	coupleID := activeCoupleID(e.resolveCoupleContext(ctx, sess))

	events, err := e.store.ListEvents(ctx, coupleID, u.ID)
	if err != nil {
		var cached []*Event
		if cerr := e.mirror.GetCollection(ctx, string(KindEvent), u.ID, &cached); cerr == nil {
			slog.Warn("serving events from local mirror", "user_id", u.ID, "error", err)
			e.countMirrorFallback(KindEvent)
			return cached, nil
		}
		return nil, remoteFailure("list", KindEvent, "", err)
	}

	events = dedupeByID(events, func(ev *Event) string { return ev.ID })
	if events == nil {
		events = []*Event{}
	}
	e.mirrorCollection(ctx, KindEvent, u.ID, events)
	return events, nil
}

// UpdateEvent applies a partial edit to an event the user may mutate.
func (e *Engine) UpdateEvent(ctx context.Context, sess *session.Session, id string, in UpdateEventInput) (*Event, error) {
	u, failure := requireUser(sess)
	if failure != nil {
		return nil, failure
	}

	existing, err := e.store.GetEvent(ctx, id)
	if err != nil {
		return nil, loadFailure(KindEvent, id, err)
	}
	if failure := e.checkMutable(ctx, sess, existing.CreatedBy, existing.CoupleID, existing.IsPersonal, KindEvent); failure != nil {
		return nil, failure
	}

	updated, err := e.store.UpdateEvent(ctx, id, in)
	if err != nil {
		return nil, remoteFailure("update", KindEvent, id, err)
	}
	e.syncEventMirror(ctx, u.ID, activeCoupleID(sess.Couple))
	return updated, nil
}

// DeleteEvent removes an event.
func (e *Engine) DeleteEvent(ctx context.Context, sess *session.Session, id string) error {
	u, failure := requireUser(sess)
	if failure != nil {
		return failure
	}

	existing, err := e.store.GetEvent(ctx, id)
	if err != nil {
		return loadFailure(KindEvent, id, err)
	}
	if failure := e.checkMutable(ctx, sess, existing.CreatedBy, existing.CoupleID, existing.IsPersonal, KindEvent); failure != nil {
		return failure
	}

	if err := e.store.DeleteEvent(ctx, id); err != nil {
		return remoteFailure("delete", KindEvent, id, err)
	}
	e.syncEventMirror(ctx, u.ID, activeCoupleID(sess.Couple))
	return nil
}

func (e *Engine) syncEventMirror(ctx context.Context, userID string, coupleID *string, extra ...*Event) {
	events, err := e.store.ListEvents(ctx, coupleID, userID)
	if err != nil {
		slog.Warn("event mirror refresh failed", "user_id", userID, "error", err)
		return
	}
	events = append(events, extra...)
	events = dedupeByID(events, func(ev *Event) string { return ev.ID })
	e.mirrorCollection(ctx, KindEvent, userID, events)
}
