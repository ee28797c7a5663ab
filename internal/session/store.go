package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/smukkama/matricare/internal/models"
)

var (
	ErrNoSession = errors.New("session not found or expired")
	ErrEmptyNote = errors.New("note text is required")
)

// Session is the logged-in doctor's view state.
type Session struct {
	ID          string    `json:"id"`
	LoggedIn    bool      `json:"loggedIn"`
	DoctorID    string    `json:"doctorId"`
	DoctorName  string    `json:"doctorName"`
	DoctorPhoto string    `json:"doctorPhoto"`
	License     string    `json:"license"`
	StartedAt   time.Time `json:"startedAt"`
}

// Note is a free-text observation a doctor left on a patient.
type Note struct {
	PatientID string    `json:"patientId"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store keeps sessions and their notes in Redis. Every key of a session
// shares its TTL, refreshed on write.
type Store struct {
	redis *redis.Client
	ttl   time.Duration
	now   func() time.Time
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{redis: client, ttl: ttl, now: time.Now}
}

func sessionKey(id string) string { return "session:" + id }

func notesKey(id, patientID string) string {
	return fmt.Sprintf("session:%s:notes:%s", id, patientID)
}

// Start opens a session for doctor.
func (s *Store) Start(ctx context.Context, doctor *models.Doctor) (*Session, error) {
	sess := &Session{
		ID:          uuid.NewString(),
		LoggedIn:    true,
		DoctorID:    doctor.ID,
		DoctorName:  doctor.Name,
		DoctorPhoto: doctor.PhotoURL,
		License:     doctor.LicenceNumber,
		StartedAt:   s.now().UTC(),
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(sess.ID), data, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}
	return sess, nil
}

// Get loads a session. ErrNoSession is returned when it is missing or expired.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.redis.Get(ctx, sessionKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &sess, nil
}

// AddNote prepends a note for patientID, so Notes lists newest first.
func (s *Store) AddNote(ctx context.Context, id, patientID, text string) (*Note, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyNote
	}

	note := &Note{PatientID: patientID, Text: text, CreatedAt: s.now().UTC()}
	data, err := json.Marshal(note)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal note: %w", err)
	}

	key := notesKey(id, patientID)
	pipe := s.redis.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.Expire(ctx, key, s.ttl)
	pipe.Expire(ctx, sessionKey(id), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to store note: %w", err)
	}
	return note, nil
}

// Notes lists one patient's notes, newest first.
func (s *Store) Notes(ctx context.Context, id, patientID string) ([]Note, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.readNotes(ctx, notesKey(id, patientID))
}

// AllNotes returns every note of the session grouped by patient id.
func (s *Store) AllNotes(ctx context.Context, id string) (map[string][]Note, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}

	keys, err := s.noteKeys(ctx, id)
	if err != nil {
		return nil, err
	}

	prefix := notesKey(id, "")
	all := make(map[string][]Note, len(keys))
	for _, key := range keys {
		notes, err := s.readNotes(ctx, key)
		if err != nil {
			return nil, err
		}
		if len(notes) > 0 {
			all[strings.TrimPrefix(key, prefix)] = notes
		}
	}
	return all, nil
}

// End logs out: the session and all its notes are deleted.
func (s *Store) End(ctx context.Context, id string) error {
	keys, err := s.noteKeys(ctx, id)
	if err != nil {
		return err
	}
	keys = append(keys, sessionKey(id))
	return s.redis.Del(ctx, keys...).Err()
}

func (s *Store) readNotes(ctx context.Context, key string) ([]Note, error) {
	raw, err := s.redis.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read notes: %w", err)
	}

	notes := make([]Note, 0, len(raw))
	for _, r := range raw {
		var n Note
		if err := json.Unmarshal([]byte(r), &n); err != nil {
			continue
		}
		notes = append(notes, n)
	}
	return notes, nil
}

func (s *Store) noteKeys(ctx context.Context, id string) ([]string, error) {
	var keys []string
	var cursor uint64
	for {
		k, next, err := s.redis.Scan(ctx, cursor, notesKey(id, "*"), 200).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan notes: %w", err)
		}
		keys = append(keys, k...)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}
