package invite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Ledger records which addresses were already invited for one family
// update event. A later event that adds the same address again claims a
// fresh key.
type Ledger struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewLedger returns a ledger. Claims expire after ttl; 0 keeps them forever.
func NewLedger(client *redis.Client, ttl time.Duration) *Ledger {
	return &Ledger{redis: client, ttl: ttl}
}

func ledgerKey(patientID, email, eventID string) string {
	return fmt.Sprintf("invite:%s:%s:%s", patientID, strings.ToLower(email), eventID)
}

// Claim reports whether the caller won the right to send this invitation.
func (l *Ledger) Claim(ctx context.Context, patientID, email, eventID string) (bool, error) {
	ok, err := l.redis.SetNX(ctx, ledgerKey(patientID, email, eventID), time.Now().UTC().Format(time.RFC3339), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim invitation: %w", err)
	}
	return ok, nil
}

// Release drops a claim so the invitation can be sent again.
func (l *Ledger) Release(ctx context.Context, patientID, email, eventID string) error {
	return l.redis.Del(ctx, ledgerKey(patientID, email, eventID)).Err()
}
