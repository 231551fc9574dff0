package view

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/yourorg/dm-service/internal/models"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func msg(sender, content string, offset time.Duration) models.Message {
	return models.Message{
		ID:             primitive.NewObjectID(),
		ConversationID: primitive.NewObjectID(),
		SenderID:       sender,
		Content:        content,
		CreatedAt:      baseTime.Add(offset),
	}
}

func inserted(m models.Message) models.ChangeEvent {
	return models.ChangeEvent{Kind: models.EventInserted, Message: m}
}

func updated(m models.Message) models.ChangeEvent {
	return models.ChangeEvent{Kind: models.EventUpdated, Message: m}
}

func deleted(m models.Message) models.ChangeEvent {
	now := baseTime.Add(time.Hour)
	m.DeletedAt = &now
	return models.ChangeEvent{Kind: models.EventDeleted, Message: m}
}

func TestApplyInitial_ReplacesState(t *testing.T) {
	v := New()
	v.ApplyInitial([]models.Message{msg("a", "one", 0), msg("b", "two", time.Second)})
	require.Equal(t, 2, v.Len())

	v.ApplyInitial([]models.Message{msg("a", "fresh", 0)})
	require.Equal(t, 1, v.Len())
	assert.Equal(t, "fresh", v.Messages()[0].Content)
}

func TestApply_InsertAppends(t *testing.T) {
	v := New()
	v.ApplyInitial(nil)

	m := msg("a", "hi", 0)
	changed := v.Apply(inserted(m))
	require.True(t, changed)
	require.Equal(t, 1, v.Len())
	assert.Equal(t, "hi", v.Messages()[0].Content)
}

func TestApply_DuplicateInsertIsNoOp(t *testing.T) {
	v := New()
	v.ApplyInitial(nil)

	m := msg("a", "hi", 0)
	require.True(t, v.Apply(inserted(m)))
	require.False(t, v.Apply(inserted(m)), "redelivered insert must be ignored")
	assert.Equal(t, 1, v.Len())

	// same id, different content: still an insert, still ignored
	m2 := m
	m2.Content = "tampered"
	require.False(t, v.Apply(inserted(m2)))
	assert.Equal(t, "hi", v.Messages()[0].Content)
}

func TestApply_UpdateReplacesInPlace(t *testing.T) {
	v := New()
	a, b, c := msg("a", "one", 0), msg("b", "two", time.Second), msg("a", "three", 2*time.Second)
	v.ApplyInitial([]models.Message{a, b, c})

	edit := b
	edit.Content = "two (edited)"
	now := baseTime.Add(time.Minute)
	edit.UpdatedAt = &now

	require.True(t, v.Apply(updated(edit)))
	got := v.Messages()
	require.Equal(t, 3, v.Len())
	assert.Equal(t, "one", got[0].Content)
	assert.Equal(t, "two (edited)", got[1].Content)
	assert.Equal(t, "three", got[2].Content)
}

func TestApply_UpdateIdempotent(t *testing.T) {
	v := New()
	m := msg("a", "one", 0)
	v.ApplyInitial([]models.Message{m})

	edit := m
	edit.Content = "changed"
	require.True(t, v.Apply(updated(edit)))
	require.False(t, v.Apply(updated(edit)), "identical redelivered update must short-circuit")
}

func TestApply_UpdateForUnknownIdAppends(t *testing.T) {
	// snapshot raced with a concurrent edit: the update arrives for a
	// message the initial list never contained
	v := New()
	v.ApplyInitial([]models.Message{msg("a", "one", 0)})

	stranger := msg("b", "late", time.Second)
	require.True(t, v.Apply(updated(stranger)))
	require.Equal(t, 2, v.Len())
	assert.Equal(t, "late", v.Messages()[1].Content)
}

func TestApply_DeleteTombstonesInPlace(t *testing.T) {
	v := New()
	a, b := msg("a", "one", 0), msg("b", "two", time.Second)
	v.ApplyInitial([]models.Message{a, b})

	require.True(t, v.Apply(deleted(a)))
	got := v.Messages()
	require.Equal(t, 2, v.Len(), "deletion must not change message count")
	assert.Equal(t, a.ID, got[0].ID, "deletion must not change order")
	assert.Empty(t, got[0].Content)
	assert.Empty(t, got[0].Attachments)
	assert.True(t, got[0].Deleted())
	assert.Equal(t, "two", got[1].Content)
}

func TestApply_DeleteIdempotent(t *testing.T) {
	v := New()
	a := msg("a", "one", 0)
	v.ApplyInitial([]models.Message{a})

	ev := deleted(a)
	require.True(t, v.Apply(ev))
	require.False(t, v.Apply(ev))
	assert.Equal(t, 1, v.Len())
}

func TestApply_DeleteForUnknownIdAppendsTombstone(t *testing.T) {
	v := New()
	v.ApplyInitial(nil)

	a := msg("a", "secret", 0)
	require.True(t, v.Apply(deleted(a)))
	got := v.Messages()
	require.Equal(t, 1, v.Len())
	assert.True(t, got[0].Deleted())
	assert.Empty(t, got[0].Content, "tombstone must never leak content")
}

func TestApply_DeleteRedactsEventPayload(t *testing.T) {
	// even if a delete event carries content, the reducer stores the
	// tombstone form
	v := New()
	a := msg("a", "secret", 0)
	v.ApplyInitial([]models.Message{a})

	now := baseTime.Add(time.Hour)
	withContent := a
	withContent.DeletedAt = &now
	withContent.Attachments = []string{"https://example.com/x"}
	require.True(t, v.Apply(models.ChangeEvent{Kind: models.EventDeleted, Message: withContent}))

	got := v.Messages()[0]
	assert.Empty(t, got.Content)
	assert.Empty(t, got.Attachments)
}

func TestApply_UnknownKindIgnored(t *testing.T) {
	v := New()
	v.ApplyInitial(nil)
	require.False(t, v.Apply(models.ChangeEvent{Kind: "mystery", Message: msg("a", "x", 0)}))
	assert.Equal(t, 0, v.Len())
}

func TestApply_InsertAfterSnapshotKeepsOrder(t *testing.T) {
	v := New()
	a, b := msg("a", "one", 0), msg("b", "two", time.Second)
	v.ApplyInitial([]models.Message{a, b})

	c := msg("a", "three", 2*time.Second)
	require.True(t, v.Apply(inserted(c)))

	got := v.Messages()
	require.Equal(t, []string{"one", "two", "three"}, []string{got[0].Content, got[1].Content, got[2].Content})
}

func TestMessages_ReturnsCopy(t *testing.T) {
	v := New()
	a := msg("a", "one", 0)
	v.ApplyInitial([]models.Message{a})

	got := v.Messages()
	got[0].Content = "mutated"
	assert.Equal(t, "one", v.Messages()[0].Content)
}
