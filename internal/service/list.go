package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/superlists/internal/apperror"
	"github.com/sakif/superlists/internal/model"
	"github.com/sakif/superlists/internal/repository"
)

// ListService handles business logic for lists and their items.
//
// Validation that needs no database (blank text) happens here. Rules that
// must hold under concurrency (one text per list, list and first item
// together) are enforced by the repository in a single atomic step.
type ListService struct {
	lists  repository.ListRepository
	owners repository.OwnershipIndex
	users  repository.UserRepository
	logger *slog.Logger
}

// NewListService creates a ListService.
func NewListService(lists repository.ListRepository, owners repository.OwnershipIndex, users repository.UserRepository, logger *slog.Logger) *ListService {
	return &ListService{lists: lists, owners: owners, users: users, logger: logger}
}

// cleanText trims surrounding whitespace and rejects what is left if blank.
func cleanText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperror.EmptyText("text")
	}
	return text, nil
}

// Create makes a new list holding one item with the given text.
// owner may be nil, in which case the list is anonymous for good.
func (s *ListService) Create(ctx context.Context, text string, owner *model.User) (*model.List, error) {
	text, err := cleanText(text)
	if err != nil {
		return nil, err
	}

	list := &model.List{}
	if owner != nil {
		ownerID := owner.ID
		list.OwnerID = &ownerID
	}
	first := &model.Item{Text: text}

	if err := s.lists.CreateList(ctx, list, first); err != nil {
		return nil, fmt.Errorf("service/list: creating list: %w", err)
	}
	list.Items = []model.Item{*first}

	s.logger.Info("list created",
		slog.String("listID", list.ID),
		slog.Bool("owned", owner != nil),
	)
	return list, nil
}

// AddItem appends an item to an existing list.
//
// Blank text fails with ErrEmptyText before the duplicate check runs; text
// already in the list fails with ErrDuplicateItem.
func (s *ListService) AddItem(ctx context.Context, listID, text string) (*model.Item, error) {
	text, err := cleanText(text)
	if err != nil {
		return nil, err
	}

	item := &model.Item{ListID: listID, Text: text}
	if err := s.lists.AddItem(ctx, item); err != nil {
		return nil, fmt.Errorf("service/list: adding item to %s: %w", listID, err)
	}

	s.logger.Debug("item added", slog.String("listID", listID), slog.String("itemID", item.ID))
	return item, nil
}

// Get returns a list with its items in creation order and, for an owned
// list, the owner's email.
func (s *ListService) Get(ctx context.Context, id string) (*model.List, error) {
	list, err := s.lists.GetList(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/list: getting list: %w", err)
	}

	if list.OwnerID != nil {
		owner, err := s.users.GetUserByID(ctx, *list.OwnerID)
		if err != nil {
			return nil, fmt.Errorf("service/list: getting owner of %s: %w", id, err)
		}
		list.OwnerEmail = owner.Email
	}

	items, err := s.lists.ItemsOf(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("service/list: getting items: %w", err)
	}
	list.Items = items
	return list, nil
}

// ListsOf returns every list owner created, oldest first.
// A user with no lists gets an empty slice.
func (s *ListService) ListsOf(ctx context.Context, owner *model.User) ([]model.List, error) {
	lists, err := s.owners.ListsByOwner(ctx, owner.ID)
	if err != nil {
		return nil, fmt.Errorf("service/list: listing lists of %s: %w", owner.ID, err)
	}
	return lists, nil
}
