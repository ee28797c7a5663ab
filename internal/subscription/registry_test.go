package subscription

import (
	"testing"
	"time"
)

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry(10)

	err := r.Register("sub1", "patient-a", "ws")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if r.Count() != 1 {
		t.Errorf("Expected 1 subscription, got %d", r.Count())
	}

	entry, exists := r.Get("sub1")
	if !exists {
		t.Fatal("Subscription not found")
	}

	if entry.PatientID != "patient-a" {
		t.Errorf("Expected patient-a, got %s", entry.PatientID)
	}
}

func TestRegistry_RegisterDuplicate(t *testing.T) {
	r := NewRegistry(10)
	r.Register("sub1", "patient-a", "ws")

	if err := r.Register("sub1", "patient-b", "ws"); err == nil {
		t.Error("Expected duplicate registration to fail")
	}
}

func TestRegistry_RegisterMax(t *testing.T) {
	r := NewRegistry(2)

	r.Register("sub1", "patient-a", "ws")
	r.Register("sub2", "patient-b", "ws")

	err := r.Register("sub3", "patient-c", "ws")
	if err != ErrMaxSubscriptionsReached {
		t.Errorf("Expected ErrMaxSubscriptionsReached, got %v", err)
	}
}

func TestRegistry_Unlimited(t *testing.T) {
	r := NewRegistry(0)
	for _, id := range []string{"a", "b", "c", "d"} {
		if err := r.Register(id, "p", "ws"); err != nil {
			t.Fatalf("Register %s failed: %v", id, err)
		}
	}
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewRegistry(10)

	r.Register("sub1", "patient-a", "ws")
	r.Register("sub2", "patient-a", "ws")

	if err := r.Unregister("sub1"); err != nil {
		t.Fatalf("Unregister failed: %v", err)
	}

	if r.Count() != 1 {
		t.Errorf("Expected 1 subscription, got %d", r.Count())
	}

	if ids := r.ByPatient("patient-a"); len(ids) != 1 {
		t.Errorf("Expected 1 subscription for patient, got %d", len(ids))
	}

	if err := r.Unregister("sub1"); err == nil {
		t.Error("Expected second Unregister to fail")
	}

	r.Unregister("sub2")
	if stats := r.Stats(); stats.WatchedPatients != 0 {
		t.Errorf("Expected no watched patients, got %d", stats.WatchedPatients)
	}
}

func TestRegistry_MarkDelivered(t *testing.T) {
	r := NewRegistry(10)
	r.Register("sub1", "patient-a", "ws")

	entry, _ := r.Get("sub1")
	first := entry.GetLastDelivered()

	time.Sleep(10 * time.Millisecond)

	if err := r.MarkDelivered("sub1"); err != nil {
		t.Fatalf("MarkDelivered failed: %v", err)
	}

	if !entry.GetLastDelivered().After(first) {
		t.Error("LastDeliveredAt was not updated")
	}

	if err := r.MarkDelivered("missing"); err == nil {
		t.Error("Expected MarkDelivered on unknown id to fail")
	}
}

func TestRegistry_Idle(t *testing.T) {
	r := NewRegistry(10)

	r.Register("sub1", "patient-a", "ws")
	r.Register("sub2", "patient-b", "ws")

	entry, _ := r.Get("sub1")
	entry.mu.Lock()
	entry.LastDeliveredAt = time.Now().Add(-5 * time.Minute)
	entry.mu.Unlock()

	idle := r.Idle(2 * time.Minute)
	if len(idle) != 1 || idle[0] != "sub1" {
		t.Errorf("Expected [sub1] idle, got %v", idle)
	}
}

func TestRegistry_Stats(t *testing.T) {
	r := NewRegistry(100)

	r.Register("sub1", "patient-a", "ws")
	r.Register("sub2", "patient-a", "ws")
	r.Register("sub3", "patient-b", "ws")

	stats := r.Stats()
	if stats.OpenSubscriptions != 3 {
		t.Errorf("Expected 3 subscriptions, got %d", stats.OpenSubscriptions)
	}
	if stats.WatchedPatients != 2 {
		t.Errorf("Expected 2 watched patients, got %d", stats.WatchedPatients)
	}
	if stats.MaxSubscriptions != 100 {
		t.Errorf("Expected max 100, got %d", stats.MaxSubscriptions)
	}
}
