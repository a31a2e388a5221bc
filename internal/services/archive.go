package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sevanet-labs/sevabot-backend/internal/apperr"
	"github.com/sevanet-labs/sevabot-backend/internal/clients/gcp"
	"github.com/sevanet-labs/sevabot-backend/internal/config"
	"github.com/sevanet-labs/sevabot-backend/internal/logger"
	"github.com/sevanet-labs/sevabot-backend/internal/repos"
	"github.com/sevanet-labs/sevabot-backend/internal/types"
)

const (
	archivePrefix    = "archived_conversations/"
	archiveIndexName = "metadata.json"
	jsonContentType  = "application/json"
)

// ArchiveService runs the archive-then-delete lifecycle. A conversation is
// only removed from the database after its snapshot is durably in blob
// storage, unless the operator has opted into delete-on-archive-failure.
type ArchiveService interface {
	// DeleteConversation archives the conversation and then deletes it.
	// Safe to retry after any failure; the state column records progress.
	DeleteConversation(ctx context.Context, owner string, conversationID uuid.UUID) error
	ListArchived(ctx context.Context, owner string) ([]types.ArchiveIndexEntry, error)
	GetArchived(ctx context.Context, owner string, conversationID uuid.UUID) (*types.ArchiveRecord, error)
	// PurgeArchived permanently removes a snapshot and its index entry.
	PurgeArchived(ctx context.Context, owner string, conversationID uuid.UUID) error
	// Enabled reports whether blob storage is configured. When false,
	// deletes are refused rather than performed without a snapshot.
	Enabled() bool
}

type archiveService struct {
	log    *logger.Logger
	cfg    *config.Config
	convs  repos.ConversationRepo
	msgs   repos.MessageRepo
	bucket gcp.BucketService
}

func NewArchiveService(log *logger.Logger, cfg *config.Config, convs repos.ConversationRepo, msgs repos.MessageRepo, bucket gcp.BucketService) (ArchiveService, error) {
	if log == nil || cfg == nil {
		return nil, fmt.Errorf("logger and config required")
	}
	if convs == nil || msgs == nil {
		return nil, fmt.Errorf("conversation and message repos required")
	}
	return &archiveService{
		log:    log.With("service", "ArchiveService"),
		cfg:    cfg,
		convs:  convs,
		msgs:   msgs,
		bucket: bucket,
	}, nil
}

func (s *archiveService) Enabled() bool {
	return s.bucket != nil
}

func (s *archiveService) DeleteConversation(ctx context.Context, owner string, conversationID uuid.UUID) error {
	if owner == "" {
		return apperr.Errorf(apperr.KindValidation, "owner is required")
	}

	conv, err := s.convs.GetByID(ctx, nil, conversationID)
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}
	if conv == nil || conv.Owner != owner {
		return apperr.Errorf(apperr.KindNotFound, "conversation %s not found", conversationID)
	}

	switch conv.State {
	case types.ConversationActive, types.ConversationArchiveFailed:
		if !s.Enabled() && !s.cfg.DeleteOnArchiveFailure {
			return apperr.Errorf(apperr.KindArchiveWrite,
				"archive storage is not configured, refusing to delete conversation %s", conversationID)
		}
		won, err := s.convs.TransitionState(ctx, nil, conv.ID, conv.State, types.ConversationArchiving)
		if err != nil {
			return fmt.Errorf("transition to archiving: %w", err)
		}
		// Losing the guarded update means another delete of the same
		// conversation is in flight right now.
		if !won {
			return apperr.Errorf(apperr.KindConflict,
				"conversation %s is already being deleted", conversationID)
		}
		if err := s.snapshot(ctx, conv); err != nil {
			if _, terr := s.convs.TransitionState(ctx, nil, conv.ID, types.ConversationArchiving, types.ConversationArchiveFailed); terr != nil {
				s.log.Error("Failed to record archive failure", "conversation_id", conv.ID, "error", terr)
			}
			if !s.cfg.DeleteOnArchiveFailure {
				return apperr.New(apperr.KindArchiveWrite, err)
			}
			s.log.Warn("Archive failed, deleting anyway per configuration",
				"conversation_id", conv.ID, "error", err)
			if _, terr := s.convs.TransitionState(ctx, nil, conv.ID, types.ConversationArchiveFailed, types.ConversationArchived); terr != nil {
				return fmt.Errorf("transition after forced delete: %w", terr)
			}
		} else {
			if _, err := s.convs.TransitionState(ctx, nil, conv.ID, types.ConversationArchiving, types.ConversationArchived); err != nil {
				return fmt.Errorf("transition to archived: %w", err)
			}
		}
	case types.ConversationArchiving:
		return apperr.Errorf(apperr.KindConflict,
			"conversation %s is already being deleted", conversationID)
	case types.ConversationArchived:
		// A prior attempt crashed between snapshot and delete. The snapshot
		// is durable, so resume straight into the delete phase.
		s.log.Warn("Resuming interrupted delete", "conversation_id", conv.ID)
	case types.ConversationDeleted:
		return apperr.Errorf(apperr.KindNotFound, "conversation %s not found", conversationID)
	default:
		return fmt.Errorf("unexpected conversation state %q", conv.State)
	}

	if err := s.msgs.DeleteByConversation(ctx, nil, conv.ID); err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if err := s.convs.DeleteByID(ctx, nil, conv.ID); err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}

	s.log.Info("Deleted conversation", "owner", owner, "conversation_id", conv.ID)
	return nil
}

func (s *archiveService) ListArchived(ctx context.Context, owner string) ([]types.ArchiveIndexEntry, error) {
	if !s.Enabled() {
		return nil, apperr.Errorf(apperr.KindArchiveWrite, "archive storage is not configured")
	}
	idx, err := s.loadIndex(ctx, owner)
	if err != nil {
		return nil, err
	}
	return idx.ArchivedConversations, nil
}

func (s *archiveService) GetArchived(ctx context.Context, owner string, conversationID uuid.UUID) (*types.ArchiveRecord, error) {
	if !s.Enabled() {
		return nil, apperr.Errorf(apperr.KindArchiveWrite, "archive storage is not configured")
	}
	data, err := s.bucket.GetObject(ctx, recordKey(owner, conversationID))
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return nil, apperr.Errorf(apperr.KindNotFound,
				"archived conversation %s not found", conversationID)
		}
		return nil, apperr.New(apperr.KindArchiveWrite, fmt.Errorf("read archive record: %w", err))
	}
	var record types.ArchiveRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode archive record %s: %w", conversationID, err)
	}
	return &record, nil
}

func (s *archiveService) PurgeArchived(ctx context.Context, owner string, conversationID uuid.UUID) error {
	if !s.Enabled() {
		return apperr.Errorf(apperr.KindArchiveWrite, "archive storage is not configured")
	}
	if err := s.bucket.DeleteObject(ctx, recordKey(owner, conversationID)); err != nil {
		if !apperr.IsKind(err, apperr.KindNotFound) {
			return apperr.New(apperr.KindArchiveWrite, fmt.Errorf("delete archive record: %w", err))
		}
	}

	idx, err := s.loadIndex(ctx, owner)
	if err != nil {
		return err
	}
	kept := idx.ArchivedConversations[:0]
	for _, entry := range idx.ArchivedConversations {
		if entry.ConversationID != conversationID {
			kept = append(kept, entry)
		}
	}
	idx.ArchivedConversations = kept
	if err := s.saveIndex(ctx, owner, idx); err != nil {
		return err
	}

	s.log.Info("Purged archived conversation", "owner", owner, "conversation_id", conversationID)
	return nil
}

// snapshot writes the record object, then folds the conversation into the
// owner's index. An index failure is logged but not fatal; the record
// itself is the source of truth and the index can be rebuilt from ListKeys.
func (s *archiveService) snapshot(ctx context.Context, conv *types.Conversation) error {
	if !s.Enabled() {
		return fmt.Errorf("archive storage is not configured")
	}

	msgs, err := s.msgs.ListByConversation(ctx, nil, conv.ID)
	if err != nil {
		return fmt.Errorf("load messages for archive: %w", err)
	}
	flat := make([]types.Message, len(msgs))
	for i, m := range msgs {
		flat[i] = *m
	}

	archivedAt := time.Now().UTC()
	record := types.ArchiveRecord{
		Conversation: *conv,
		Messages:     flat,
		Metadata: types.ArchiveMetadata{
			OwnerScope:   conv.Owner,
			ArchivedAt:   archivedAt,
			MessageCount: len(flat),
		},
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode archive record: %w", err)
	}
	if err := s.bucket.PutObject(ctx, recordKey(conv.Owner, conv.ID), data, jsonContentType); err != nil {
		return fmt.Errorf("write archive record: %w", err)
	}

	if err := s.indexConversation(ctx, conv, archivedAt, len(flat)); err != nil {
		s.log.Warn("Failed to update archive index", "conversation_id", conv.ID, "error", err)
	}
	return nil
}

// indexConversation replaces any existing entry for the same conversation,
// so retried archives never duplicate index rows.
func (s *archiveService) indexConversation(ctx context.Context, conv *types.Conversation, archivedAt time.Time, messageCount int) error {
	idx, err := s.loadIndex(ctx, conv.Owner)
	if err != nil {
		return err
	}

	entry := types.ArchiveIndexEntry{
		ConversationID: conv.ID,
		Title:          conv.Title,
		CreatedAt:      conv.CreatedAt,
		ArchivedAt:     archivedAt,
		MessageCount:   messageCount,
	}
	replaced := false
	for i, existing := range idx.ArchivedConversations {
		if existing.ConversationID == conv.ID {
			idx.ArchivedConversations[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		idx.ArchivedConversations = append(idx.ArchivedConversations, entry)
	}
	return s.saveIndex(ctx, conv.Owner, idx)
}

func (s *archiveService) loadIndex(ctx context.Context, owner string) (*types.ArchiveIndex, error) {
	data, err := s.bucket.GetObject(ctx, indexKey(owner))
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return &types.ArchiveIndex{OwnerScope: owner}, nil
		}
		return nil, apperr.New(apperr.KindArchiveWrite, fmt.Errorf("read archive index: %w", err))
	}
	var idx types.ArchiveIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("decode archive index for %s: %w", owner, err)
	}
	return &idx, nil
}

func (s *archiveService) saveIndex(ctx context.Context, owner string, idx *types.ArchiveIndex) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("encode archive index: %w", err)
	}
	if err := s.bucket.PutObject(ctx, indexKey(owner), data, jsonContentType); err != nil {
		return apperr.New(apperr.KindArchiveWrite, fmt.Errorf("write archive index: %w", err))
	}
	return nil
}

func recordKey(owner string, conversationID uuid.UUID) string {
	return archivePrefix + safeOwner(owner) + "/" + conversationID.String() + ".json"
}

func indexKey(owner string) string {
	return archivePrefix + safeOwner(owner) + "/" + archiveIndexName
}

// safeOwner makes an owner identifier usable as an object key path segment.
func safeOwner(owner string) string {
	owner = strings.ReplaceAll(owner, "@", "_at_")
	owner = strings.ReplaceAll(owner, ".", "_")
	return strings.ReplaceAll(owner, "/", "_")
}
