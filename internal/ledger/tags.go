package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/service"
)

// CreateTag adds a tag. Names are unique per user.
func (s *Service) CreateTag(ctx context.Context, session model.Session, name, description, color string) (*model.Tag, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	name, err := model.NormalizeTagName(name)
	if err != nil {
		return nil, err
	}
	if _, err := s.storage.GetTagByName(ctx, session.UserID, name); err == nil {
		return nil, common.Validationf("tag %q already exists", name)
	} else if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	tag := &model.Tag{
		UserID:      session.UserID,
		Name:        name,
		Description: strings.TrimSpace(description),
		Color:       strings.TrimSpace(color),
	}
	if err := s.storage.CreateTag(ctx, tag); err != nil {
		return nil, fmt.Errorf("failed to create tag: %w", err)
	}
	return tag, nil
}

// ListTags lists tags by name.
func (s *Service) ListTags(ctx context.Context, session model.Session) ([]model.Tag, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	return s.storage.ListTags(ctx, session.UserID)
}

// DeleteTag removes a tag from the user's list and from every transaction.
func (s *Service) DeleteTag(ctx context.Context, session model.Session, name string) error {
	if err := session.Require(); err != nil {
		return err
	}
	tag, err := s.storage.GetTagByName(ctx, session.UserID, strings.TrimSpace(name))
	if err != nil {
		return err
	}
	return s.storage.DeleteTag(ctx, session.UserID, tag.ID)
}

// TagTransaction attaches tags to a transaction, creating any that do not exist.
func (s *Service) TagTransaction(ctx context.Context, session model.Session, txnID int64, names ...string) error {
	if err := session.Require(); err != nil {
		return err
	}
	if len(names) == 0 {
		return common.Validationf("at least one tag is required")
	}
	return s.inTx(ctx, func(store service.Store) error {
		if _, err := store.GetTransaction(ctx, session.UserID, txnID); err != nil {
			return err
		}
		for _, raw := range names {
			tag, err := getOrCreateTag(ctx, store, session.UserID, raw)
			if err != nil {
				return err
			}
			if err := store.AddTagToTransaction(ctx, txnID, tag.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

func getOrCreateTag(ctx context.Context, store service.Store, userID int64, raw string) (*model.Tag, error) {
	name, err := model.NormalizeTagName(raw)
	if err != nil {
		return nil, err
	}
	tag, err := store.GetTagByName(ctx, userID, name)
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}
	tag = &model.Tag{UserID: userID, Name: name}
	if err := store.CreateTag(ctx, tag); err != nil {
		return nil, fmt.Errorf("failed to create tag: %w", err)
	}
	return tag, nil
}

// UntagTransaction detaches tags from a transaction.
func (s *Service) UntagTransaction(ctx context.Context, session model.Session, txnID int64, names ...string) error {
	if err := session.Require(); err != nil {
		return err
	}
	return s.inTx(ctx, func(store service.Store) error {
		if _, err := store.GetTransaction(ctx, session.UserID, txnID); err != nil {
			return err
		}
		for _, name := range names {
			tag, err := store.GetTagByName(ctx, session.UserID, strings.TrimSpace(name))
			if err != nil {
				return err
			}
			if err := store.RemoveTagFromTransaction(ctx, txnID, tag.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

// TransactionTags lists the tags on one transaction.
func (s *Service) TransactionTags(ctx context.Context, session model.Session, txnID int64) ([]model.Tag, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	if _, err := s.storage.GetTransaction(ctx, session.UserID, txnID); err != nil {
		return nil, err
	}
	return s.storage.ListTransactionTags(ctx, txnID)
}

// TransactionsByTag returns the newest transactions carrying a tag.
func (s *Service) TransactionsByTag(ctx context.Context, session model.Session, name string, limit int) ([]model.Transaction, error) {
	return s.Search(ctx, session, model.TransactionFilter{Tags: []string{strings.TrimSpace(name)}, Limit: limit})
}

// TagStats reports how often each tag is used and the money it covers.
func (s *Service) TagStats(ctx context.Context, session model.Session) ([]model.TagStat, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	return s.storage.TagStats(ctx, session.UserID)
}
