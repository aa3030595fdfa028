package sideeffect

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/duetapp/duet/internal/entity"
	"github.com/duetapp/duet/internal/notify"
	"github.com/duetapp/duet/internal/points"
)

type fakeNotifStore struct {
	mu       sync.Mutex
	inserted []*notify.Notification
	err      error
}

func (f *fakeNotifStore) Insert(_ context.Context, n *notify.Notification) (*notify.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	cp := *n
	cp.ID = fmt.Sprintf("n-%d", len(f.inserted)+1)
	f.inserted = append(f.inserted, &cp)
	return &cp, nil
}

func (f *fakeNotifStore) all() []*notify.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*notify.Notification(nil), f.inserted...)
}

type fakePublisher struct {
	mu        sync.Mutex
	published []*notify.Notification
}

func (f *fakePublisher) Publish(n *notify.Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, n)
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

type fakeLedger struct {
	mu       sync.Mutex
	totals   map[string]int
	unlocked []*points.Achievement
	granted  []string
	addErr   error
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{totals: map[string]int{}}
}

func (f *fakeLedger) Add(_ context.Context, userID string, amount int) (*points.UserPoints, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return nil, false, f.addErr
	}
	before := f.totals[userID]
	f.totals[userID] = before + amount
	total := f.totals[userID]
	return &points.UserPoints{UserID: userID, Total: total, Level: points.Level(total)},
		points.Level(total) > points.Level(before), nil
}

func (f *fakeLedger) UnlockedBy(_ context.Context, _ string, total int) ([]*points.Achievement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*points.Achievement
	for _, a := range f.unlocked {
		if a.Threshold <= total {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeLedger) Grant(_ context.Context, userID, achievementID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, g := range f.granted {
		if g == achievementID {
			return false, nil
		}
	}
	f.granted = append(f.granted, achievementID)
	return true, nil
}

func newTestDispatcher(batchSize int) (*Dispatcher, *fakeNotifStore, *fakePublisher, *fakeLedger) {
	store := &fakeNotifStore{}
	pub := &fakePublisher{}
	ledger := newFakeLedger()
	return NewDispatcher(store, pub, ledger, batchSize, time.Hour), store, pub, ledger
}

func TestNotifyPartnerFlushesAtBatchSize(t *testing.T) {
	d, store, pub, _ := newTestDispatcher(2)

	d.NotifyPartner("user-b", entity.KindTask, "t1", "New shared task", "Alice added a task")
	if len(store.all()) != 0 {
		t.Fatal("effect applied before the batch filled")
	}
	d.NotifyPartner("user-b", entity.KindTask, "t2", "New shared task", "Alice added another")

	got := store.all()
	if len(got) != 2 {
		t.Fatalf("inserted = %d, want 2", len(got))
	}
	if got[0].RecipientID != "user-b" || got[0].Kind != "task" || got[0].EntityID != "t1" {
		t.Errorf("notification = %+v", got[0])
	}
	if pub.count() != 2 {
		t.Errorf("published = %d, want 2", pub.count())
	}
}

func TestNotifyPartnerEmptyRecipientIsNoop(t *testing.T) {
	d, store, _, _ := newTestDispatcher(1)

	d.NotifyPartner("", entity.KindTask, "t1", "x", "y")
	if len(store.all()) != 0 {
		t.Error("empty recipient must be dropped")
	}
}

func TestAwardPointsLevelUp(t *testing.T) {
	d, store, _, ledger := newTestDispatcher(1)
	ledger.totals["user-a"] = 95

	d.AwardPoints("user-a", 10, "task completed")

	if ledger.totals["user-a"] != 105 {
		t.Errorf("total = %d, want 105", ledger.totals["user-a"])
	}
	got := store.all()
	if len(got) != 1 {
		t.Fatalf("notifications = %d, want a level-up message", len(got))
	}
	if got[0].RecipientID != "user-a" || got[0].Title != "Level up!" {
		t.Errorf("notification = %+v", got[0])
	}
}

func TestAwardPointsNoLevelUpStaysQuiet(t *testing.T) {
	d, store, _, _ := newTestDispatcher(1)

	d.AwardPoints("user-a", 10, "task completed")
	if len(store.all()) != 0 {
		t.Error("a plain award must not notify")
	}
}

func TestAwardPointsUnlocksAchievements(t *testing.T) {
	d, store, _, ledger := newTestDispatcher(1)
	ledger.unlocked = []*points.Achievement{
		{ID: "a1", Code: "first_steps", Title: "First Steps", Threshold: 5},
		{ID: "a2", Code: "half_century", Title: "Half Century", Threshold: 50},
	}

	d.AwardPoints("user-a", 10, "task completed")

	if len(ledger.granted) != 1 || ledger.granted[0] != "a1" {
		t.Errorf("granted = %v, want [a1]", ledger.granted)
	}
	got := store.all()
	if len(got) != 1 || got[0].Title != "Achievement unlocked" {
		t.Errorf("notifications = %+v, want one unlock message", got)
	}
}

func TestAwardPointsIgnoresInvalidAmounts(t *testing.T) {
	d, _, _, ledger := newTestDispatcher(1)

	d.AwardPoints("user-a", 0, "nothing")
	d.AwardPoints("user-a", -5, "nothing")
	d.AwardPoints("", 5, "nobody")
	if len(ledger.totals) != 0 {
		t.Errorf("totals = %v, want untouched", ledger.totals)
	}
}

func TestAwardFailureDoesNotStopBatch(t *testing.T) {
	d, store, _, ledger := newTestDispatcher(2)
	ledger.addErr = errors.New("ledger down")

	d.AwardPoints("user-a", 10, "task completed")
	d.NotifyPartner("user-b", entity.KindTask, "t1", "New shared task", "still delivered")

	if len(store.all()) != 1 {
		t.Errorf("notifications = %d, want the notify effect applied", len(store.all()))
	}
}

func TestStopFlushesRemainder(t *testing.T) {
	d, store, _, _ := newTestDispatcher(10)

	d.NotifyPartner("user-b", entity.KindTask, "t1", "x", "y")
	d.Stop()
	d.Start(context.Background()) // done already closed; applies the final flush and returns

	if len(store.all()) != 1 {
		t.Errorf("notifications = %d, want 1 after final flush", len(store.all()))
	}
	d.Stop() // second Stop must not panic
}
