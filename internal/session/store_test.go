package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smukkama/matricare/internal/models"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore(client, time.Hour), mr
}

var doctor = &models.Doctor{ID: "d1", Name: "Dr Rao", LicenceNumber: "MH-1", PhotoURL: "https://img/rao"}

func TestStartAndGet(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	sess, err := s.Start(ctx, doctor)
	require.NoError(t, err)
	assert.True(t, sess.LoggedIn)

	got, err := s.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "Dr Rao", got.DoctorName)
	assert.Equal(t, "https://img/rao", got.DoctorPhoto)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSessionExpires(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()

	sess, err := s.Start(ctx, doctor)
	require.NoError(t, err)

	mr.FastForward(2 * time.Hour)
	_, err = s.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestNotes_NewestFirstAndGrouped(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	sess, _ := s.Start(ctx, doctor)

	_, err := s.AddNote(ctx, sess.ID, "p1", "first")
	require.NoError(t, err)
	_, err = s.AddNote(ctx, sess.ID, "p1", "second")
	require.NoError(t, err)
	_, err = s.AddNote(ctx, sess.ID, "p2", "other")
	require.NoError(t, err)

	notes, err := s.Notes(ctx, sess.ID, "p1")
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, "second", notes[0].Text)

	empty, err := s.Notes(ctx, sess.ID, "p3")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	all, err := s.AllNotes(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Len(t, all["p1"], 2)
	assert.Equal(t, "other", all["p2"][0].Text)

	_, err = s.AddNote(ctx, sess.ID, "p1", "   ")
	assert.ErrorIs(t, err, ErrEmptyNote)
	_, err = s.AddNote(ctx, "nope", "p1", "x")
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestEnd_RemovesEverything(t *testing.T) {
	s, mr := newTestStore(t)
	ctx := context.Background()
	sess, _ := s.Start(ctx, doctor)
	other, _ := s.Start(ctx, doctor)

	_, _ = s.AddNote(ctx, sess.ID, "p1", "x")
	_, _ = s.AddNote(ctx, other.ID, "p1", "keep")

	require.NoError(t, s.End(ctx, sess.ID))
	_, err := s.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNoSession)
	assert.False(t, mr.Exists(notesKey(sess.ID, "p1")))
	assert.True(t, mr.Exists(notesKey(other.ID, "p1")))
}
