package entity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/duetapp/duet/internal/session"
)

// CreateTask adds a task, stamped personal or couple-scoped per the resolved
// couple context.
func (e *Engine) CreateTask(ctx context.Context, sess *session.Session, in CreateTaskInput) (*Task, error) {
	u, failure := requireUser(sess)
	if failure != nil {
		return nil, failure
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, newError(CodeInvalidArgument, "title is required")
	}

	c := e.resolveCoupleContext(ctx, sess)
	own := DecideOwnership(c, in.Personal)
	draft := &Task{
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		AssignedTo:  in.AssignedTo,
		DueDate:     in.DueDate,
		CreatedBy:   u.ID,
		CoupleID:    own.CoupleID,
		IsPersonal:  own.IsPersonal,
	}

	stored, err := e.store.InsertTask(ctx, draft)
	if err != nil {
		return nil, remoteFailure("create", KindTask, "", err)
	}
	if stored == nil {
		// The store confirmed the write without returning the row. Keep a
		// temporary local copy so the list stays responsive; its id prefix
		// marks it as unconfirmed.
		draft.ID = LocalID()
		draft.CreatedAt = time.Now()
		draft.UpdatedAt = draft.CreatedAt
		stored = draft
		e.syncTaskMirror(ctx, u.ID, own.CoupleID, stored)
	} else {
		e.syncTaskMirror(ctx, u.ID, own.CoupleID)
	}

	e.effects.AwardPoints(u.ID, pointsTaskCreated, "task created")
	if !stored.IsPersonal {
		if pid := partnerID(sess); pid != "" {
			e.effects.NotifyPartner(pid, KindTask, stored.ID, "New shared task",
				fmt.Sprintf("%s added %q", u.Name, stored.Title))
		}
	}
	return stored, nil
}

// ListTasks returns every task visible to the user: couple-scoped tasks for
// an active couple plus personal ones. Falls back to the local mirror when
// the remote store is unreachable.
func (e *Engine) ListTasks(ctx context.Context, sess *session.Session) ([]*Task, error) {
	u, failure := requireUser(sess)
	if failure != nil {
		return nil, failure
	}
	coupleID := activeCoupleID(e.resolveCoupleContext(ctx, sess))

	tasks, err := e.store.ListTasks(ctx, coupleID, u.ID)
	if err != nil {
		var cached []*Task
		if cerr := e.mirror.GetCollection(ctx, string(KindTask), u.ID, &cached); cerr == nil {
			slog.Warn("serving tasks from local mirror", "user_id", u.ID, "error", err)
			e.countMirrorFallback(KindTask)
			return cached, nil
		}
		return nil, remoteFailure("list", KindTask, "", err)
	}

	tasks = dedupeByID(tasks, func(t *Task) string { return t.ID })
	if tasks == nil {
		tasks = []*Task{}
	}
	e.mirrorCollection(ctx, KindTask, u.ID, tasks)
	return tasks, nil
}

// UpdateTask applies a partial edit to a task the user may mutate.
func (e *Engine) UpdateTask(ctx context.Context, sess *session.Session, id string, in UpdateTaskInput) (*Task, error) {
	u, failure := requireUser(sess)
	if failure != nil {
		return nil, failure
	}

	existing, err := e.store.GetTask(ctx, id)
	if err != nil {
		return nil, loadFailure(KindTask, id, err)
	}
	if failure := e.checkMutable(ctx, sess, existing.CreatedBy, existing.CoupleID, existing.IsPersonal, KindTask); failure != nil {
		return nil, failure
	}

	updated, err := e.store.UpdateTask(ctx, id, in)
	if err != nil {
		return nil, remoteFailure("update", KindTask, id, err)
	}
	e.syncTaskMirror(ctx, u.ID, activeCoupleID(sess.Couple))
	return updated, nil
}

// DeleteTask removes a task. Deletes never fall back to local-only state.
func (e *Engine) DeleteTask(ctx context.Context, sess *session.Session, id string) error {
	u, failure := requireUser(sess)
	if failure != nil {
		return failure
	}

	existing, err := e.store.GetTask(ctx, id)
	if err != nil {
		return loadFailure(KindTask, id, err)
	}
	if failure := e.checkMutable(ctx, sess, existing.CreatedBy, existing.CoupleID, existing.IsPersonal, KindTask); failure != nil {
		return failure
	}

	if err := e.store.DeleteTask(ctx, id); err != nil {
		return remoteFailure("delete", KindTask, id, err)
	}
	e.syncTaskMirror(ctx, u.ID, activeCoupleID(sess.Couple))
	return nil
}

// ToggleTask flips a task's completion. Completing someone else's shared task
// notifies the partner; uncompleting never does.
func (e *Engine) ToggleTask(ctx context.Context, sess *session.Session, id string) (*Task, error) {
	u, failure := requireUser(sess)
	if failure != nil {
		return nil, failure
	}

	existing, err := e.store.GetTask(ctx, id)
	if err != nil {
		return nil, loadFailure(KindTask, id, err)
	}
	if failure := e.checkMutable(ctx, sess, existing.CreatedBy, existing.CoupleID, existing.IsPersonal, KindTask); failure != nil {
		return nil, failure
	}

	updated, err := e.store.SetTaskCompleted(ctx, id, !existing.Completed)
	if err != nil {
		return nil, remoteFailure("toggle", KindTask, id, err)
	}
	e.syncTaskMirror(ctx, u.ID, activeCoupleID(sess.Couple))

	if updated.Completed {
		e.effects.AwardPoints(u.ID, pointsTaskCompleted, "task completed")
		if !updated.IsPersonal && updated.CreatedBy != u.ID {
			if pid := partnerID(sess); pid != "" {
				e.effects.NotifyPartner(pid, KindTask, updated.ID, "Task completed",
					fmt.Sprintf("%s completed %q", u.Name, updated.Title))
			}
		}
	}
	return updated, nil
}

// syncTaskMirror refreshes the user's task mirror from the store, appending
// any unconfirmed local records.
func (e *Engine) syncTaskMirror(ctx context.Context, userID string, coupleID *string, extra ...*Task) {
	tasks, err := e.store.ListTasks(ctx, coupleID, userID)
	if err != nil {
		slog.Warn("task mirror refresh failed", "user_id", userID, "error", err)
		return
	}
	tasks = append(tasks, extra...)
	tasks = dedupeByID(tasks, func(t *Task) string { return t.ID })
	e.mirrorCollection(ctx, KindTask, userID, tasks)
}
