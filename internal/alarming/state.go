package alarming

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smukkama/matricare/internal/models"
)

// AlarmState represents the current state of an alarm
type AlarmState struct {
	Status          string        `json:"status"` // CLEAR, PENDING_ALARM, ALARMING
	BreachStartTime time.Time     `json:"breach_start_time"`
	LastChecked     time.Time     `json:"last_checked"`
	BreachValue     float64       `json:"breach_value"`
	AlarmID         int64         `json:"alarm_id,omitempty"`
	VitalsAtAlert   models.Vitals `json:"vitals_at_alert"`
	History         []string      `json:"history,omitempty"`
}

const (
	AlarmStateClear   = "CLEAR"
	AlarmStatePending = "PENDING_ALARM"
	AlarmStateActive  = "ALARMING"
)

const (
	stateKeyPrefix = "alarm_state:"
	stateTTL       = 7 * 24 * time.Hour
	maxHistory     = 10
)

// StateManager manages alarm states in Redis
type StateManager struct {
	redis *redis.Client
}

// NewStateManager creates a new state manager
func NewStateManager(redisClient *redis.Client) *StateManager {
	return &StateManager{redis: redisClient}
}

func stateKey(patientID, rule string) string {
	return fmt.Sprintf("%s%s:%s", stateKeyPrefix, patientID, rule)
}

// GetState retrieves the alarm state for a patient and rule
func (sm *StateManager) GetState(ctx context.Context, patientID, rule string) (*AlarmState, error) {
	data, err := sm.redis.Get(ctx, stateKey(patientID, rule)).Result()
	if err == redis.Nil {
		return &AlarmState{Status: AlarmStateClear}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get state from Redis: %w", err)
	}

	var state AlarmState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}

	return &state, nil
}

// SetState saves the alarm state for a patient and rule
func (sm *StateManager) SetState(ctx context.Context, patientID, rule string, state *AlarmState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	// Expire stale states of patients that left the roster
	if err := sm.redis.Set(ctx, stateKey(patientID, rule), data, stateTTL).Err(); err != nil {
		return fmt.Errorf("failed to set state in Redis: %w", err)
	}

	return nil
}

// DeleteState removes the alarm state (returns to CLEAR)
func (sm *StateManager) DeleteState(ctx context.Context, patientID, rule string) error {
	return sm.redis.Del(ctx, stateKey(patientID, rule)).Err()
}

// GetAllStates returns every stored alarm state keyed by Redis key
func (sm *StateManager) GetAllStates(ctx context.Context) (map[string]*AlarmState, error) {
	states := make(map[string]*AlarmState)

	iter := sm.redis.Scan(ctx, 0, stateKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := sm.redis.Get(ctx, key).Result()
		if err != nil {
			continue
		}

		var state AlarmState
		if err := json.Unmarshal([]byte(data), &state); err != nil {
			continue
		}
		states[key] = &state
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan alarm states: %w", err)
	}

	return states, nil
}

func appendHistory(history []string, entry string) []string {
	history = append(history, entry)
	if len(history) > maxHistory {
		history = history[len(history)-maxHistory:]
	}
	return history
}
