package entity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/duetapp/duet/internal/session"
)

// CreateRequest sends a request to the partner. Requests only make sense
// inside an active couple; without one the operation fails so the caller can
// prompt the user to finish pairing.
func (e *Engine) CreateRequest(ctx context.Context, sess *session.Session, in CreateRequestInput) (*Request, error) {
	u, failure := requireUser(sess)
	if failure != nil {
		return nil, failure
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, newError(CodeInvalidArgument, "title is required")
	}

	c := e.resolveCoupleContext(ctx, sess)
	pid := partnerID(sess)
	if !c.IsActive() || pid == "" {
		return nil, errCoupleContextUnavailable()
	}

	own := DecideOwnership(c, false)
	draft := &Request{
		Title:       in.Title,
		Description: in.Description,
		Priority:    in.Priority,
		FromUser:    u.ID,
		ToUser:      pid,
		Status:      RequestPending,
		DueDate:     in.DueDate,
		CreatedBy:   u.ID,
		CoupleID:    own.CoupleID,
		IsPersonal:  own.IsPersonal,
	}

	stored, err := e.store.InsertRequest(ctx, draft)
	if err != nil {
		return nil, remoteFailure("create", KindRequest, "", err)
	}
	if stored == nil {
		draft.ID = LocalID()
		draft.CreatedAt = time.Now()
		draft.UpdatedAt = draft.CreatedAt
		stored = draft
		e.syncRequestMirror(ctx, u.ID, own.CoupleID, stored)
	} else {
		e.syncRequestMirror(ctx, u.ID, own.CoupleID)
	}

	e.effects.NotifyPartner(pid, KindRequest, stored.ID, "New request",
		fmt.Sprintf("%s asked: %q", u.Name, stored.Title))
	return stored, nil
}

// ListRequests returns the union of couple-scoped requests and those the
// user sent or received, de-duplicated by id.
func (e *Engine) ListRequests(ctx context.Context, sess *session.Session) ([]*Request, error) {
	u, failure := requireUser(sess)
	if failure != nil {
		return nil, failure
	}
	coupleID := activeCoupleID(e.resolveCoupleContext(ctx, sess))

	requests, err := e.store.ListRequests(ctx, coupleID, u.ID)
	if err != nil {
		var cached []*Request
		if cerr := e.mirror.GetCollection(ctx, string(KindRequest), u.ID, &cached); cerr == nil {
			slog.Warn("serving requests from local mirror", "user_id", u.ID, "error", err)
			e.countMirrorFallback(KindRequest)
			return cached, nil
		}
		return nil, remoteFailure("list", KindRequest, "", err)
	}

	requests = dedupeByID(requests, func(r *Request) string { return r.ID })
	if requests == nil {
		requests = []*Request{}
	}
	e.mirrorCollection(ctx, KindRequest, u.ID, requests)
	return requests, nil
}

// UpdateRequest edits a still-pending request. Only the sender may edit.
func (e *Engine) UpdateRequest(ctx context.Context, sess *session.Session, id string, in UpdateRequestInput) (*Request, error) {
	u, failure := requireUser(sess)
	if failure != nil {
		return nil, failure
	}

	existing, err := e.store.GetRequest(ctx, id)
	if err != nil {
		return nil, loadFailure(KindRequest, id, err)
	}
	if existing.FromUser != u.ID {
		return nil, newError(CodeForbidden, "only the sender can edit a request")
	}
	if existing.Status != RequestPending {
		return nil, newError(CodeForbidden, "this request has already been resolved")
	}

	updated, err := e.store.UpdateRequest(ctx, id, in)
	if err != nil {
		return nil, remoteFailure("update", KindRequest, id, err)
	}
	e.syncRequestMirror(ctx, u.ID, activeCoupleID(sess.Couple))
	return updated, nil
}

// DeleteRequest withdraws a still-pending request. Only the sender may
// delete.
func (e *Engine) DeleteRequest(ctx context.Context, sess *session.Session, id string) error {
	u, failure := requireUser(sess)
	if failure != nil {
		return failure
	}

	existing, err := e.store.GetRequest(ctx, id)
	if err != nil {
		return loadFailure(KindRequest, id, err)
	}
	if existing.FromUser != u.ID {
		return newError(CodeForbidden, "only the sender can delete a request")
	}
	if existing.Status != RequestPending {
		return newError(CodeForbidden, "this request has already been resolved")
	}

	if err := e.store.DeleteRequest(ctx, id); err != nil {
		return remoteFailure("delete", KindRequest, id, err)
	}
	e.syncRequestMirror(ctx, u.ID, activeCoupleID(sess.Couple))
	return nil
}

// ApproveRequest resolves a pending request as approved. Only the recipient
// may approve, and only once. A request with a due date also yields exactly
// one linked calendar event; the approval stands even if that event cannot
// be created, since the calendar entry is a convenience, not the contract.
func (e *Engine) ApproveRequest(ctx context.Context, sess *session.Session, id string) (*Request, error) {
	u, failure := requireUser(sess)
	if failure != nil {
		return nil, failure
	}

	existing, err := e.store.GetRequest(ctx, id)
	if err != nil {
		return nil, loadFailure(KindRequest, id, err)
	}
	if existing.ToUser != u.ID {
		return nil, newError(CodeForbidden, "only the recipient can approve a request")
	}
	if existing.Status != RequestPending {
		return nil, newError(CodeForbidden, "this request has already been resolved")
	}

	updated, err := e.store.ResolveRequest(ctx, id, RequestApproved, nil)
	if err != nil {
		return nil, remoteFailure("approve", KindRequest, id, err)
	}

	if updated.DueDate != nil {
		ev := &Event{
			Title:      "Request: " + updated.Title,
			Date:       *updated.DueDate,
			EndDate:    updated.DueDate,
			Type:       EventTypeRequest,
			AllDay:     true,
			CreatedBy:  u.ID,
			CoupleID:   updated.CoupleID,
			IsPersonal: updated.IsPersonal,
		}
		storedEv, evErr := e.store.InsertEvent(ctx, ev)
		if evErr != nil || storedEv == nil {
			slog.Error("failed to create event for approved request", "request_id", id, "error", evErr)
		} else if linkErr := e.store.SetRequestLinkedEvent(ctx, id, storedEv.ID); linkErr != nil {
			slog.Error("failed to link event to approved request", "request_id", id, "event_id", storedEv.ID, "error", linkErr)
		} else {
			updated.LinkedEventID = &storedEv.ID
			e.syncEventMirror(ctx, u.ID, updated.CoupleID)
		}
	}
	e.syncRequestMirror(ctx, u.ID, activeCoupleID(sess.Couple))

	e.effects.AwardPoints(u.ID, pointsRequestApproved, "request approved")
	e.effects.NotifyPartner(updated.FromUser, KindRequest, updated.ID, "Request approved",
		fmt.Sprintf("%s approved %q", u.Name, updated.Title))
	return updated, nil
}

// RejectRequest resolves a pending request as rejected. A non-empty reason
// must be captured before the transition commits.
func (e *Engine) RejectRequest(ctx context.Context, sess *session.Session, id, reason string) (*Request, error) {
	u, failure := requireUser(sess)
	if failure != nil {
		return nil, failure
	}

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, newError(CodeInvalidArgument, "a rejection reason is required")
	}

	existing, err := e.store.GetRequest(ctx, id)
	if err != nil {
		return nil, loadFailure(KindRequest, id, err)
	}
	if existing.ToUser != u.ID {
		return nil, newError(CodeForbidden, "only the recipient can reject a request")
	}
	if existing.Status != RequestPending {
		return nil, newError(CodeForbidden, "this request has already been resolved")
	}

	updated, err := e.store.ResolveRequest(ctx, id, RequestRejected, &reason)
	if err != nil {
		return nil, remoteFailure("reject", KindRequest, id, err)
	}
	e.syncRequestMirror(ctx, u.ID, activeCoupleID(sess.Couple))

	e.effects.NotifyPartner(updated.FromUser, KindRequest, updated.ID, "Request declined",
		fmt.Sprintf("%s declined %q: %s", u.Name, updated.Title, reason))
	return updated, nil
}

func (e *Engine) syncRequestMirror(ctx context.Context, userID string, coupleID *string, extra ...*Request) {
	requests, err := e.store.ListRequests(ctx, coupleID, userID)
	if err != nil {
		slog.Warn("request mirror refresh failed", "user_id", userID, "error", err)
		return
	}
	requests = append(requests, extra...)
	requests = dedupeByID(requests, func(r *Request) string { return r.ID })
	e.mirrorCollection(ctx, KindRequest, userID, requests)
}
