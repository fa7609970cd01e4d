package notify

import (
	"context"
	"testing"
	"time"

	"github.com/R3E-Network/studio_layer/internal/app/domain/notification"
)

func TestHubKeepsBoundedFeedNewestFirst(t *testing.T) {
	hub := NewHub(3, nil)
	for _, msg := range []string{"a", "b", "c", "d"} {
		hub.Publish(context.Background(), notification.Notification{StudioID: "s", Message: msg})
	}
	hub.Publish(context.Background(), notification.Notification{StudioID: "other", Message: "x"})

	feed := hub.Recent("s", "", 0)
	if len(feed) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(feed))
	}
	if feed[0].Message != "d" || feed[2].Message != "b" {
		t.Errorf("feed = %v, %v, %v", feed[0].Message, feed[1].Message, feed[2].Message)
	}
	if feed[0].Audience != notification.AudienceAdmin || feed[0].ID == "" {
		t.Errorf("expected defaults to be filled, got %+v", feed[0])
	}
	if got := hub.Recent("s", "", 1); len(got) != 1 {
		t.Errorf("limit ignored: %d", len(got))
	}
}

func TestHubDeliversByStudioAndAudience(t *testing.T) {
	hub := NewHub(0, nil)
	admin, cancelAdmin := hub.Subscribe("s", notification.AudienceAdmin, 1)
	defer cancelAdmin()
	ana, cancelAna := hub.Subscribe("s", "ana", 1)
	defer cancelAna()

	hub.Publish(context.Background(), notification.Notification{StudioID: "s", Audience: "ana", Message: MsgNewDocument})

	select {
	case n := <-ana:
		if n.Message != MsgNewDocument {
			t.Errorf("message = %q", n.Message)
		}
	case <-time.After(time.Second):
		t.Fatal("client subscriber did not receive notification")
	}
	select {
	case n := <-admin:
		t.Fatalf("admin should not receive client notification: %+v", n)
	default:
	}
}

func TestHubCancelReleasesSubscriber(t *testing.T) {
	hub := NewHub(0, nil)
	ch, cancel := hub.Subscribe("s", notification.AudienceAdmin, 1)
	cancel()
	cancel()
	if hub.Subscribers() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", hub.Subscribers())
	}
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
	// publishing after cancel must not panic
	hub.Publish(context.Background(), notification.Notification{StudioID: "s"})
}

func TestHubDropsForSlowSubscribers(t *testing.T) {
	hub := NewHub(0, nil)
	_, cancel := hub.Subscribe("s", notification.AudienceAdmin, 1)
	defer cancel()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			hub.Publish(context.Background(), notification.Notification{StudioID: "s"})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestMessages(t *testing.T) {
	if got := SignedMessage("Ana"); got != "NUEVA FIRMA: El cliente Ana ha firmado su consentimiento." {
		t.Errorf("SignedMessage = %q", got)
	}
	if got := MedicalMessage("Ana"); got != "NUEVO HISTORIAL: Recibiste la ficha clínica de Ana." {
		t.Errorf("MedicalMessage = %q", got)
	}
}
