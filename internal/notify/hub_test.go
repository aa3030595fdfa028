package notify

import "testing"

func TestHubDeliversToRecipientOnly(t *testing.T) {
	h := NewHub()

	aCh, aCancel := h.Subscribe("user-a")
	defer aCancel()
	bCh, bCancel := h.Subscribe("user-b")
	defer bCancel()

	h.Publish(&Notification{ID: "n1", RecipientID: "user-a", Title: "hello"})

	select {
	case n := <-aCh:
		if n.ID != "n1" {
			t.Errorf("got %q, want n1", n.ID)
		}
	default:
		t.Fatal("user-a should have received the notification")
	}
	select {
	case n := <-bCh:
		t.Errorf("user-b should not receive user-a's notification, got %+v", n)
	default:
	}
}

func TestHubFanOut(t *testing.T) {
	h := NewHub()

	ch1, cancel1 := h.Subscribe("user-a")
	defer cancel1()
	ch2, cancel2 := h.Subscribe("user-a")
	defer cancel2()

	h.Publish(&Notification{ID: "n1", RecipientID: "user-a"})

	for i, ch := range []<-chan *Notification{ch1, ch2} {
		select {
		case <-ch:
		default:
			t.Errorf("subscriber %d missed the notification", i)
		}
	}
}

func TestHubDoesNotBlockOnFullBuffer(t *testing.T) {
	h := NewHub()

	ch, cancel := h.Subscribe("user-a")
	defer cancel()

	// Overfill the buffer; Publish must never block.
	for i := 0; i < 100; i++ {
		h.Publish(&Notification{RecipientID: "user-a"})
	}
	if len(ch) != cap(ch) {
		t.Errorf("buffer = %d, want full at %d", len(ch), cap(ch))
	}
}

func TestHubUnsubscribe(t *testing.T) {
	h := NewHub()

	ch, cancel := h.Subscribe("user-a")
	cancel()

	if h.SubscriberCount("user-a") != 0 {
		t.Error("cancel should unregister the subscriber")
	}
	if _, ok := <-ch; ok {
		t.Error("cancel should close the channel")
	}
	// Publishing after cancel must not panic.
	h.Publish(&Notification{RecipientID: "user-a"})
}
