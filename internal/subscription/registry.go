package subscription

import (
	"fmt"
	"sync"
	"time"
)

// Entry describes one open live subscription on a patient.
type Entry struct {
	ID              string
	PatientID       string
	Owner           string
	OpenedAt        time.Time
	LastDeliveredAt time.Time
	mu              sync.RWMutex
}

// MarkDelivered records that an update was just delivered
func (e *Entry) MarkDelivered() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.LastDeliveredAt = time.Now()
}

// GetLastDelivered returns the last delivery timestamp
func (e *Entry) GetLastDelivered() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.LastDeliveredAt
}

// Registry tracks every open subscription so leaked listeners are visible.
type Registry struct {
	entries   map[string]*Entry   // key: subscription id
	byPatient map[string][]string // key: patient id, value: []subscription id
	mu        sync.RWMutex
	maxSubs   int
}

// NewRegistry creates a registry. maxSubscriptions <= 0 means unlimited.
func NewRegistry(maxSubscriptions int) *Registry {
	return &Registry{
		entries:   make(map[string]*Entry),
		byPatient: make(map[string][]string),
		maxSubs:   maxSubscriptions,
	}
}

// Register adds a new subscription
func (r *Registry) Register(id, patientID, owner string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.maxSubs > 0 && len(r.entries) >= r.maxSubs {
		return ErrMaxSubscriptionsReached
	}

	if _, exists := r.entries[id]; exists {
		return fmt.Errorf("subscription %s already registered", id)
	}

	now := time.Now()
	r.entries[id] = &Entry{
		ID:              id,
		PatientID:       patientID,
		Owner:           owner,
		OpenedAt:        now,
		LastDeliveredAt: now,
	}
	r.byPatient[patientID] = append(r.byPatient[patientID], id)

	return nil
}

// Unregister removes a subscription
func (r *Registry) Unregister(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, exists := r.entries[id]
	if !exists {
		return fmt.Errorf("subscription %s not found", id)
	}

	patientID := entry.PatientID
	if ids, ok := r.byPatient[patientID]; ok {
		for i, sid := range ids {
			if sid == id {
				r.byPatient[patientID] = append(ids[:i], ids[i+1:]...)
				break
			}
		}
		if len(r.byPatient[patientID]) == 0 {
			delete(r.byPatient, patientID)
		}
	}

	delete(r.entries, id)
	return nil
}

// Get retrieves a subscription by id
func (r *Registry) Get(id string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, exists := r.entries[id]
	return entry, exists
}

// ByPatient returns the subscription ids open on a patient
func (r *Registry) ByPatient(patientID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byPatient[patientID]
	result := make([]string, len(ids))
	copy(result, ids)
	return result
}

// MarkDelivered updates the last delivery time of a subscription
func (r *Registry) MarkDelivered(id string) error {
	r.mu.RLock()
	entry, exists := r.entries[id]
	r.mu.RUnlock()

	if !exists {
		return fmt.Errorf("subscription %s not found", id)
	}

	entry.MarkDelivered()
	return nil
}

// Idle returns subscriptions with no delivery within timeout.
func (r *Registry) Idle(timeout time.Duration) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	var idle []string
	for id, entry := range r.entries {
		if now.Sub(entry.GetLastDelivered()) > timeout {
			idle = append(idle, id)
		}
	}
	return idle
}

// Count returns the number of open subscriptions
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Stats returns statistics about the registry
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return Stats{
		OpenSubscriptions: len(r.entries),
		WatchedPatients:   len(r.byPatient),
		MaxSubscriptions:  r.maxSubs,
	}
}

// Stats contains statistics about the registry
type Stats struct {
	OpenSubscriptions int `json:"openSubscriptions"`
	WatchedPatients   int `json:"watchedPatients"`
	MaxSubscriptions  int `json:"maxSubscriptions"`
}

var (
	ErrMaxSubscriptionsReached = &RegistryError{"maximum subscriptions reached"}
)

// RegistryError represents a registry error
type RegistryError struct {
	msg string
}

func (e *RegistryError) Error() string {
	return e.msg
}
