package directory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Kind names a patient sub-collection.
type Kind string

const (
	KindAppointments Kind = "appointments"
	KindSymptoms     Kind = "symptoms"
)

// Update carries the full current contents of one sub-collection. Data is
// []models.Appointment or []models.Symptom depending on Type.
type Update struct {
	Type Kind `json:"type"`
	Data any  `json:"data"`
}

// ChannelName is the pub/sub channel announcing changes to a sub-collection.
func ChannelName(patientID string, kind Kind) string {
	return fmt.Sprintf("matricare:users:%s:%s", patientID, kind)
}

func noop() {}

// Subscribe opens one live feed per sub-collection of a patient. Each feed
// delivers the full sequence once on open and again after every change.
// The returned function closes both feeds; only its first call has any
// effect. When the channels cannot be opened or the first read fails, the
// error is logged and a no-op is returned.
func (d *Directory) Subscribe(ctx context.Context, patientID string, onUpdate func(Update)) func() {
	subCtx, cancel := context.WithCancel(ctx)

	kinds := []Kind{KindAppointments, KindSymptoms}
	streams := make([]*redis.PubSub, 0, len(kinds))
	closeStreams := func() {
		cancel()
		for _, ps := range streams {
			_ = ps.Close()
		}
	}

	for _, kind := range kinds {
		ps := d.redis.Subscribe(subCtx, ChannelName(patientID, kind))
		if _, err := ps.Receive(subCtx); err != nil {
			_ = ps.Close()
			closeStreams()
			d.logger.Error("Subscription setup failed",
				zap.String("patient_id", patientID),
				zap.String("kind", string(kind)),
				zap.Error(err),
			)
			return noop
		}
		streams = append(streams, ps)
	}

	initial := make([]Update, len(kinds))
	for i, kind := range kinds {
		u, err := d.load(subCtx, patientID, kind)
		if err != nil {
			closeStreams()
			d.logger.Error("Subscription initial read failed",
				zap.String("patient_id", patientID),
				zap.String("kind", string(kind)),
				zap.Error(err),
			)
			return noop
		}
		initial[i] = u
	}

	subID := uuid.NewString()
	if err := d.registry.Register(subID, patientID, "directory"); err != nil {
		closeStreams()
		d.logger.Error("Subscription rejected",
			zap.String("patient_id", patientID),
			zap.Error(err),
		)
		return noop
	}

	for i, ps := range streams {
		go d.listen(subCtx, subID, patientID, kinds[i], ps, initial[i], onUpdate)
	}

	d.logger.Debug("Subscription opened",
		zap.String("subscription_id", subID),
		zap.String("patient_id", patientID),
	)

	var once sync.Once
	return func() {
		once.Do(func() {
			closeStreams()
			_ = d.registry.Unregister(subID)
			d.logger.Debug("Subscription closed", zap.String("subscription_id", subID))
		})
	}
}

func (d *Directory) listen(ctx context.Context, subID, patientID string, kind Kind, ps *redis.PubSub, initial Update, onUpdate func(Update)) {
	ch := ps.Channel()

	d.emit(ctx, subID, initial, onUpdate)
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			u, err := d.load(ctx, patientID, kind)
			if err != nil {
				d.logger.Warn("Failed to refresh sub-collection",
					zap.String("patient_id", patientID),
					zap.String("kind", string(kind)),
					zap.Error(err),
				)
				continue
			}
			d.emit(ctx, subID, u, onUpdate)
		}
	}
}

// load reads the full current contents of one sub-collection.
func (d *Directory) load(ctx context.Context, patientID string, kind Kind) (Update, error) {
	update := Update{Type: kind}

	switch kind {
	case KindAppointments:
		items, err := d.store.ListAppointments(ctx, patientID)
		if err != nil {
			return update, err
		}
		update.Data = items
	case KindSymptoms:
		items, err := d.store.ListSymptoms(ctx, patientID)
		if err != nil {
			return update, err
		}
		update.Data = items
	}
	return update, nil
}

func (d *Directory) emit(ctx context.Context, subID string, u Update, onUpdate func(Update)) {
	if ctx.Err() != nil {
		return
	}
	onUpdate(u)
	_ = d.registry.MarkDelivered(subID)
}

// notify announces a change; subscribers re-read the sub-collection.
func (d *Directory) notify(ctx context.Context, patientID string, kind Kind) {
	if err := d.redis.Publish(ctx, ChannelName(patientID, kind), "changed").Err(); err != nil {
		d.logger.Warn("Failed to publish change notification",
			zap.String("patient_id", patientID),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
}
