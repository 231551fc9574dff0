package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/yourorg/dm-service/internal/errs"
	"github.com/yourorg/dm-service/internal/models"
	"github.com/yourorg/dm-service/internal/repository"
	"github.com/yourorg/dm-service/internal/storage"
)

// Publisher pushes a committed ledger mutation onto the live feed.
type Publisher interface {
	Publish(ctx context.Context, ev models.ChangeEvent) error
}

// Announcer is notified when the directory creates a conversation.
type Announcer interface {
	ConversationCreated(conv *models.Conversation)
}

// File is an attachment handed to Send before upload.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// ChatService is the conversation directory and message ledger. It is
// the single writer of message state; every mutation is committed to
// the repository first and then published on the change feed, so all
// views converge through one code path.
type ChatService struct {
	convs repository.Conversations
	msgs  repository.Messages
	store storage.Uploader
	feed  Publisher
	ann   Announcer
	log   *zap.SugaredLogger
}

func NewChatService(convs repository.Conversations, msgs repository.Messages, store storage.Uploader, feed Publisher, ann Announcer, log *zap.SugaredLogger) *ChatService {
	return &ChatService{convs: convs, msgs: msgs, store: store, feed: feed, ann: ann, log: log}
}

// ResolveOrCreate returns the one conversation between selfID and
// otherID, creating it when absent. Symmetric in its arguments.
func (s *ChatService) ResolveOrCreate(ctx context.Context, selfID, otherID string) (*models.Conversation, error) {
	if selfID == "" {
		return nil, errs.ErrUnauthenticated
	}
	if otherID == "" || otherID == selfID {
		return nil, fmt.Errorf("%w: invalid counterpart", errs.ErrBadRequest)
	}
	conv, created, err := s.convs.FindOrCreate(ctx, selfID, otherID)
	if err != nil {
		return nil, err
	}
	if created {
		s.log.Infow("conversation created", "conversation", conv.ID.Hex())
		if s.ann != nil {
			s.ann.ConversationCreated(conv)
		}
	}
	return conv, nil
}

// Conversation fetches a conversation the caller participates in.
func (s *ChatService) Conversation(ctx context.Context, selfID string, id primitive.ObjectID) (*models.Conversation, error) {
	if selfID == "" {
		return nil, errs.ErrUnauthenticated
	}
	conv, err := s.convs.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(selfID) {
		return nil, errs.ErrUnauthorized
	}
	return conv, nil
}

func (s *ChatService) ListConversations(ctx context.Context, selfID string) ([]*models.Conversation, error) {
	if selfID == "" {
		return nil, errs.ErrUnauthenticated
	}
	return s.convs.ListForUser(ctx, selfID)
}

// ListMessages returns the snapshot of a conversation in ascending
// creation order. Tombstones stay in place with content redacted.
func (s *ChatService) ListMessages(ctx context.Context, conversationID primitive.ObjectID) ([]*models.Message, error) {
	msgs, err := s.msgs.List(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	for i, m := range msgs {
		if m.Deleted() {
			t := m.Tombstone()
			msgs[i] = &t
		}
	}
	return msgs, nil
}

// Send uploads every attachment first and appends the message only
// after all uploads succeed, so a failed upload leaves no partial row.
func (s *ChatService) Send(ctx context.Context, conversationID primitive.ObjectID, senderID, content string, files []File) (*models.Message, error) {
	if senderID == "" {
		return nil, errs.ErrUnauthenticated
	}
	conv, err := s.convs.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(senderID) {
		return nil, errs.ErrUnauthorized
	}
	if content == "" && len(files) == 0 {
		return nil, fmt.Errorf("%w: empty message", errs.ErrBadRequest)
	}

	var attachments []string
	for _, f := range files {
		key := attachmentKey(conversationID, f.Name)
		url, err := s.store.Upload(ctx, key, f.ContentType, f.Data)
		if err != nil {
			return nil, err
		}
		attachments = append(attachments, url)
	}

	now := time.Now().UTC()
	m := &models.Message{
		ID:             primitive.NewObjectID(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Attachments:    attachments,
		CreatedAt:      now,
	}
	if err := s.msgs.Insert(ctx, m); err != nil {
		return nil, err
	}
	if err := s.convs.Touch(ctx, conversationID, now); err != nil {
		s.log.Warnw("touch conversation", "conversation", conversationID.Hex(), "err", err)
	}
	s.publish(ctx, models.ChangeEvent{Kind: models.EventInserted, Message: *m})
	return m, nil
}

// Edit replaces the content of a message the caller authored.
// Tombstoned messages can no longer be edited.
func (s *ChatService) Edit(ctx context.Context, messageID primitive.ObjectID, senderID, content string) (*models.Message, error) {
	if senderID == "" {
		return nil, errs.ErrUnauthenticated
	}
	if content == "" {
		return nil, fmt.Errorf("%w: empty content", errs.ErrBadRequest)
	}
	now := time.Now().UTC()
	m, err := s.msgs.Edit(ctx, messageID, senderID, content, now)
	if err != nil {
		return nil, s.classifyMutation(ctx, messageID, senderID, err)
	}
	s.publish(ctx, models.ChangeEvent{Kind: models.EventUpdated, Message: *m})
	return m, nil
}

// SoftDelete tombstones a message the caller authored. Deleting an
// already-deleted message is a no-op, not an error.
func (s *ChatService) SoftDelete(ctx context.Context, messageID primitive.ObjectID, senderID string) error {
	if senderID == "" {
		return errs.ErrUnauthenticated
	}
	now := time.Now().UTC()
	m, err := s.msgs.SoftDelete(ctx, messageID, senderID, now)
	if err != nil {
		err = s.classifyMutation(ctx, messageID, senderID, err)
		if errors.Is(err, errs.ErrDeleted) {
			return nil // idempotent
		}
		return err
	}
	s.publish(ctx, models.ChangeEvent{Kind: models.EventDeleted, Message: m.Tombstone()})
	return nil
}

// MarkRead stamps read receipts on every unread message the
// counterpart sent, tombstones included so their receipt state stays
// consistent. The reader's own messages are never marked.
func (s *ChatService) MarkRead(ctx context.Context, conversationID primitive.ObjectID, readerID string) error {
	if readerID == "" {
		return errs.ErrUnauthenticated
	}
	conv, err := s.convs.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	if !conv.HasParticipant(readerID) {
		return errs.ErrUnauthorized
	}
	now := time.Now().UTC()
	updated, err := s.msgs.MarkRead(ctx, conversationID, readerID, now)
	if err != nil {
		return err
	}
	for _, m := range updated {
		out := *m
		if m.Deleted() {
			out = m.Tombstone() // tombstones go out redacted
		}
		s.publish(ctx, models.ChangeEvent{Kind: models.EventUpdated, Message: out})
	}
	return nil
}

// classifyMutation turns the repository's unmatched-guard result into
// the precise denial: missing row, foreign sender, or tombstone.
func (s *ChatService) classifyMutation(ctx context.Context, messageID primitive.ObjectID, senderID string, err error) error {
	if !errors.Is(err, errs.ErrNotFound) {
		return err
	}
	m, gerr := s.msgs.Get(ctx, messageID)
	if gerr != nil {
		return gerr
	}
	if m.SenderID != senderID {
		return errs.ErrUnauthorized
	}
	if m.Deleted() {
		return errs.ErrDeleted
	}
	return errs.ErrNotFound
}

// publish pushes a committed mutation onto the feed. Failures are
// logged, never surfaced: the feed contract is at-least-once during an
// active connection, and consumers recover by re-fetching the snapshot.
func (s *ChatService) publish(ctx context.Context, ev models.ChangeEvent) {
	if s.feed == nil {
		return
	}
	if err := s.feed.Publish(ctx, ev); err != nil {
		s.log.Errorw("publish change event", "kind", ev.Kind, "message", ev.Message.ID.Hex(), "err", err)
	}
}

func attachmentKey(conversationID primitive.ObjectID, filename string) string {
	name := strings.ReplaceAll(filename, "/", "_")
	return fmt.Sprintf("%s/%d-%s-%s", conversationID.Hex(), time.Now().UnixMilli(), uuid.NewString(), name)
}
