package entity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/duetapp/duet/internal/session"
)

// CreateHabit adds a habit with empty progress and a zero streak.
func (e *Engine) CreateHabit(ctx context.Context, sess *session.Session, in CreateHabitInput) (*Habit, error) {
	u, failure := requireUser(sess)
	if failure != nil {
		return nil, failure
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, newError(CodeInvalidArgument, "title is required")
	}

	frequency := in.Frequency
	if frequency == "" {
		frequency = "daily"
	}
	targetCount := in.TargetCount
	if targetCount < 1 {
		targetCount = 1
	}

	c := e.resolveCoupleContext(ctx, sess)
	own := DecideOwnership(c, in.Personal)
	draft := &Habit{
		Title:       in.Title,
		Description: in.Description,
		Frequency:   frequency,
		TargetDays:  in.TargetDays,
		TargetCount: targetCount,
		Time:        in.Time,
		AssignedTo:  in.AssignedTo,
		Progress:    map[string]bool{},
		CreatedBy:   u.ID,
		CoupleID:    own.CoupleID,
		IsPersonal:  own.IsPersonal,
	}

	stored, err := e.store.InsertHabit(ctx, draft)
	if err != nil {
		return nil, remoteFailure("create", KindHabit, "", err)
	}
	if stored == nil {
		draft.ID = LocalID()
		draft.CreatedAt = time.Now()
		draft.UpdatedAt = draft.CreatedAt
		stored = draft
		e.syncHabitMirror(ctx, u.ID, own.CoupleID, stored)
	} else {
		e.syncHabitMirror(ctx, u.ID, own.CoupleID)
	}

	e.effects.AwardPoints(u.ID, pointsHabitCreated, "habit created")
	if !stored.IsPersonal {
		if pid := partnerID(sess); pid != "" {
			e.effects.NotifyPartner(pid, KindHabit, stored.ID, "New shared habit",
				fmt.Sprintf("%s started %q", u.Name, stored.Title))
		}
	}
	return stored, nil
}

// ListHabits returns every habit visible to the user, falling back to the
// local mirror when the remote store is unreachable.
func (e *Engine) ListHabits(ctx context.Context, sess *session.Session) ([]*Habit, error) {
	u, failure := requireUser(sess)
	if failure != nil {
		return nil, failure
	}
	coupleID := activeCoupleID(e.resolveCoupleContext(ctx, sess))

	habits, err := e.store.ListHabits(ctx, coupleID, u.ID)
	if err != nil {
		var cached []*Habit
		if cerr := e.mirror.GetCollection(ctx, string(KindHabit), u.ID, &cached); cerr == nil {
			slog.Warn("serving habits from local mirror", "user_id", u.ID, "error", err)
			e.countMirrorFallback(KindHabit)
			return cached, nil
		}
		return nil, remoteFailure("list", KindHabit, "", err)
	}

	habits = dedupeByID(habits, func(h *Habit) string { return h.ID })
	if habits == nil {
		habits = []*Habit{}
	}
	e.mirrorCollection(ctx, KindHabit, u.ID, habits)
	return habits, nil
}

// UpdateHabit applies a partial edit to a habit the user may mutate.
func (e *Engine) UpdateHabit(ctx context.Context, sess *session.Session, id string, in UpdateHabitInput) (*Habit, error) {
	u, failure := requireUser(sess)
	if failure != nil {
		return nil, failure
	}

	existing, err := e.store.GetHabit(ctx, id)
	if err != nil {
		return nil, loadFailure(KindHabit, id, err)
	}
	if failure := e.checkMutable(ctx, sess, existing.CreatedBy, existing.CoupleID, existing.IsPersonal, KindHabit); failure != nil {
		return nil, failure
	}

	updated, err := e.store.UpdateHabit(ctx, id, in)
	if err != nil {
		return nil, remoteFailure("update", KindHabit, id, err)
	}
	e.syncHabitMirror(ctx, u.ID, activeCoupleID(sess.Couple))
	return updated, nil
}

// DeleteHabit removes a habit.
func (e *Engine) DeleteHabit(ctx context.Context, sess *session.Session, id string) error {
	u, failure := requireUser(sess)
	if failure != nil {
		return failure
	}

	existing, err := e.store.GetHabit(ctx, id)
	if err != nil {
		return loadFailure(KindHabit, id, err)
	}
	if failure := e.checkMutable(ctx, sess, existing.CreatedBy, existing.CoupleID, existing.IsPersonal, KindHabit); failure != nil {
		return failure
	}

	if err := e.store.DeleteHabit(ctx, id); err != nil {
		return remoteFailure("delete", KindHabit, id, err)
	}
	e.syncHabitMirror(ctx, u.ID, activeCoupleID(sess.Couple))
	return nil
}

// UpdateHabitProgress flips completion for one day. The streak moves by one
// on each transition: up when a day is newly marked done (which also stamps
// last_completed and earns a point), down to a floor of zero when a day is
// unmarked, whichever day it is. Uncompletions never earn points or notify.
func (e *Engine) UpdateHabitProgress(ctx context.Context, sess *session.Session, id, date string) (*Habit, error) {
	u, failure := requireUser(sess)
	if failure != nil {
		return nil, failure
	}

	day, err := normalizeDay(date)
	if err != nil {
		return nil, newError(CodeInvalidArgument, "a valid date is required")
	}

	existing, err := e.store.GetHabit(ctx, id)
	if err != nil {
		return nil, loadFailure(KindHabit, id, err)
	}
	if failure := e.checkMutable(ctx, sess, existing.CreatedBy, existing.CoupleID, existing.IsPersonal, KindHabit); failure != nil {
		return nil, failure
	}

	progress := make(map[string]bool, len(existing.Progress)+1)
	for k, v := range existing.Progress {
		progress[k] = v
	}
	nowDone := !progress[day]
	progress[day] = nowDone

	streak := existing.Streak
	lastCompleted := existing.LastCompleted
	if nowDone {
		streak++
		lastCompleted = &day
	} else if streak > 0 {
		streak--
	}

	updated, err := e.store.SetHabitProgress(ctx, id, progress, streak, lastCompleted)
	if err != nil {
		return nil, remoteFailure("progress", KindHabit, id, err)
	}
	e.syncHabitMirror(ctx, u.ID, activeCoupleID(sess.Couple))

	if nowDone {
		e.effects.AwardPoints(u.ID, pointsHabitCompleted, "habit day completed")
		if !updated.IsPersonal && updated.CreatedBy != u.ID {
			if pid := partnerID(sess); pid != "" {
				e.effects.NotifyPartner(pid, KindHabit, updated.ID, "Habit checked off",
					fmt.Sprintf("%s completed %q for %s", u.Name, updated.Title, day))
			}
		}
	}
	return updated, nil
}

func (e *Engine) syncHabitMirror(ctx context.Context, userID string, coupleID *string, extra ...*Habit) {
	habits, err := e.store.ListHabits(ctx, coupleID, userID)
	if err != nil {
		slog.Warn("habit mirror refresh failed", "user_id", userID, "error", err)
		return
	}
	habits = append(habits, extra...)
	habits = dedupeByID(habits, func(h *Habit) string { return h.ID })
	e.mirrorCollection(ctx, KindHabit, userID, habits)
}
