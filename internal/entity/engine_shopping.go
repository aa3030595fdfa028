package entity

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/duetapp/duet/internal/session"
)

// CreateShoppingItem adds an item to a shopping list.
func (e *Engine) CreateShoppingItem(ctx context.Context, sess *session.Session, in CreateShoppingItemInput) (*ShoppingItem, error) {
	u, failure := requireUser(sess)
	if failure != nil {
		return nil, failure
	}
	if strings.TrimSpace(in.Name) == "" {
		return nil, newError(CodeInvalidArgument, "name is required")
	}

	quantity := in.Quantity
	if quantity < 1 {
		quantity = 1
	}
	listType := in.ListType
	if listType == "" {
		listType = "daily"
	}

	c := e.resolveCoupleContext(ctx, sess)
	own := DecideOwnership(c, in.Personal)
	draft := &ShoppingItem{
		Name:       in.Name,
		Quantity:   quantity,
		ListType:   listType,
		CreatedBy:  u.ID,
		CoupleID:   own.CoupleID,
		IsPersonal: own.IsPersonal,
	}

	stored, err := e.store.InsertShoppingItem(ctx, draft)
	if err != nil {
		return nil, remoteFailure("create", KindShoppingItem, "", err)
	}
	if stored == nil {
		draft.ID = LocalID()
		draft.CreatedAt = time.Now()
		draft.UpdatedAt = draft.CreatedAt
		stored = draft
		e.syncShoppingMirror(ctx, u.ID, own.CoupleID, stored)
	} else {
		e.syncShoppingMirror(ctx, u.ID, own.CoupleID)
	}

	if !stored.IsPersonal {
		if pid := partnerID(sess); pid != "" {
			e.effects.NotifyPartner(pid, KindShoppingItem, stored.ID, "Shopping list updated",
				fmt.Sprintf("%s added %q", u.Name, stored.Name))
		}
	}
	return stored, nil
}

// ListShoppingItems returns every item visible to the user, falling back to
// the local mirror when the remote store is unreachable.
func (e *Engine) ListShoppingItems(ctx context.Context, sess *session.Session) ([]*ShoppingItem, error) {
	u, failure := requireUser(sess)
	if failure != nil {
		return nil, failure
	}
	coupleID := activeCoupleID(e.resolveCoupleContext(ctx, sess))

	items, err := e.store.ListShoppingItems(ctx, coupleID, u.ID)
	if err != nil {
		var cached []*ShoppingItem
		if cerr := e.mirror.GetCollection(ctx, string(KindShoppingItem), u.ID, &cached); cerr == nil {
			slog.Warn("serving shopping items from local mirror", "user_id", u.ID, "error", err)
			e.countMirrorFallback(KindShoppingItem)
			return cached, nil
		}
		return nil, remoteFailure("list", KindShoppingItem, "", err)
	}

	items = dedupeByID(items, func(i *ShoppingItem) string { return i.ID })
	if items == nil {
		items = []*ShoppingItem{}
	}
	e.mirrorCollection(ctx, KindShoppingItem, u.ID, items)
	return items, nil
}

// UpdateShoppingItem applies a partial edit to an item the user may mutate.
func (e *Engine) UpdateShoppingItem(ctx context.Context, sess *session.Session, id string, in UpdateShoppingItemInput) (*ShoppingItem, error) {
	u, failure := requireUser(sess)
	if failure != nil {
		return nil, failure
	}

	existing, err := e.store.GetShoppingItem(ctx, id)
	if err != nil {
		return nil, loadFailure(KindShoppingItem, id, err)
	}
	if failure := e.checkMutable(ctx, sess, existing.CreatedBy, existing.CoupleID, existing.IsPersonal, KindShoppingItem); failure != nil {
		return nil, failure
	}

	updated, err := e.store.UpdateShoppingItem(ctx, id, in)
	if err != nil {
		return nil, remoteFailure("update", KindShoppingItem, id, err)
	}
	e.syncShoppingMirror(ctx, u.ID, activeCoupleID(sess.Couple))
	return updated, nil
}

// DeleteShoppingItem removes an item.
func (e *Engine) DeleteShoppingItem(ctx context.Context, sess *session.Session, id string) error {
	u, failure := requireUser(sess)
	if failure != nil {
		return failure
	}

	existing, err := e.store.GetShoppingItem(ctx, id)
	if err != nil {
		return loadFailure(KindShoppingItem, id, err)
	}
	if failure := e.checkMutable(ctx, sess, existing.CreatedBy, existing.CoupleID, existing.IsPersonal, KindShoppingItem); failure != nil {
		return failure
	}

	if err := e.store.DeleteShoppingItem(ctx, id); err != nil {
		return remoteFailure("delete", KindShoppingItem, id, err)
	}
	e.syncShoppingMirror(ctx, u.ID, activeCoupleID(sess.Couple))
	return nil
}

// ToggleShoppingItem flips an item's completion. Checking off someone else's
// shared item notifies the partner; unchecking never does.
func (e *Engine) ToggleShoppingItem(ctx context.Context, sess *session.Session, id string) (*ShoppingItem, error) {
	u, failure := requireUser(sess)
	if failure != nil {
		return nil, failure
	}

	existing, err := e.store.GetShoppingItem(ctx, id)
	if err != nil {
		return nil, loadFailure(KindShoppingItem, id, err)
	}
	if failure := e.checkMutable(ctx, sess, existing.CreatedBy, existing.CoupleID, existing.IsPersonal, KindShoppingItem); failure != nil {
		return nil, failure
	}

	updated, err := e.store.SetShoppingItemCompleted(ctx, id, !existing.Completed)
	if err != nil {
		return nil, remoteFailure("toggle", KindShoppingItem, id, err)
	}
	e.syncShoppingMirror(ctx, u.ID, activeCoupleID(sess.Couple))

	if updated.Completed {
		e.effects.AwardPoints(u.ID, pointsShoppingCompleted, "shopping item completed")
		if !updated.IsPersonal && updated.CreatedBy != u.ID {
			if pid := partnerID(sess); pid != "" {
				e.effects.NotifyPartner(pid, KindShoppingItem, updated.ID, "Item bought",
					fmt.Sprintf("%s got %q", u.Name, updated.Name))
			}
		}
	}
	return updated, nil
}

func (e *Engine) syncShoppingMirror(ctx context.Context, userID string, coupleID *string, extra ...*ShoppingItem) {
	items, err := e.store.ListShoppingItems(ctx, coupleID, userID)
	if err != nil {
		slog.Warn("shopping mirror refresh failed", "user_id", userID, "error", err)
		return
	}
	items = append(items, extra...)
	items = dedupeByID(items, func(i *ShoppingItem) string { return i.ID })
	e.mirrorCollection(ctx, KindShoppingItem, userID, items)
}
