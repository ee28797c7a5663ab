package invite

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/smukkama/matricare/internal/protocol"
	"github.com/smukkama/matricare/internal/queue"
)

type TokenIssuer interface {
	InviteToken(email, patientID string, ttl time.Duration) (string, error)
}

type Claimer interface {
	Claim(ctx context.Context, patientID, email, eventID string) (bool, error)
	Release(ctx context.Context, patientID, email, eventID string) error
}

// Processor turns family-list changes into one invitation per newly added
// address.
type Processor struct {
	tokens   TokenIssuer
	ledger   Claimer
	sender   Sender
	baseURL  string
	tokenTTL time.Duration
	logger   *zap.Logger
}

func NewProcessor(tokens TokenIssuer, ledger Claimer, sender Sender, baseURL string, tokenTTL time.Duration, logger *zap.Logger) *Processor {
	return &Processor{
		tokens:   tokens,
		ledger:   ledger,
		sender:   sender,
		baseURL:  strings.TrimRight(baseURL, "/"),
		tokenTTL: tokenTTL,
		logger:   logger,
	}
}

// HandleMessage is a queue.Handler for UserUpdated events.
func (p *Processor) HandleMessage(ctx context.Context, msg kafka.Message) error {
	evt, err := protocol.DecodeUserUpdated(msg.Value)
	if err != nil {
		return fmt.Errorf("%w: failed to decode event: %v", queue.ErrSkip, err)
	}
	if evt.Type != protocol.EventTypeFamilyUpdated {
		return nil
	}
	return p.Handle(ctx, evt)
}

// Handle sends invitations for the addresses evt added. Addresses already
// invited for this event are skipped, so redelivery never resends, while an
// address removed and added back by a later event is invited again.
func (p *Processor) Handle(ctx context.Context, evt *protocol.UserUpdated) error {
	added := NewAddresses(evt.Before, evt.After)
	if len(added) == 0 {
		return nil
	}

	var errs []error
	for _, email := range added {
		if err := p.invite(ctx, evt, email); err != nil {
			p.logger.Warn("invitation failed",
				zap.String("patient_id", evt.PatientID),
				zap.String("email", email),
				zap.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (p *Processor) invite(ctx context.Context, evt *protocol.UserUpdated, email string) error {
	id := eventID(evt)
	claimed, err := p.ledger.Claim(ctx, evt.PatientID, email, id)
	if err != nil {
		return err
	}
	if !claimed {
		p.logger.Debug("invitation already sent",
			zap.String("patient_id", evt.PatientID),
			zap.String("email", email))
		return nil
	}

	if err := p.send(ctx, evt, email); err != nil {
		if rerr := p.ledger.Release(ctx, evt.PatientID, email, id); rerr != nil {
			p.logger.Error("failed to release invitation claim", zap.Error(rerr))
		}
		return err
	}
	return nil
}

func (p *Processor) send(ctx context.Context, evt *protocol.UserUpdated, email string) error {
	tok, err := p.tokens.InviteToken(email, evt.PatientID, p.tokenTTL)
	if err != nil {
		return fmt.Errorf("failed to issue invitation token: %w", err)
	}

	return p.sender.Send(ctx, Invitation{
		To:          email,
		PatientName: evt.PatientName,
		Link:        p.Link(tok),
	})
}

// eventID identifies evt. Events written before ids existed fall back to
// their timestamp.
func eventID(evt *protocol.UserUpdated) string {
	if evt.EventID != "" {
		return evt.EventID
	}
	return strconv.FormatInt(evt.OccurredAt.UnixNano(), 10)
}

// Link builds the family login URL for a token.
func (p *Processor) Link(token string) string {
	return p.baseURL + "/family-login?token=" + url.QueryEscape(token)
}
