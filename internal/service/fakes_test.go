package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/sakif/superlists/internal/apperror"
	"github.com/sakif/superlists/internal/mail"
	"github.com/sakif/superlists/internal/model"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeStore is an in-memory implementation of every repository interface.
// It enforces the same invariants as the SQLite schema: unique emails,
// unique text per list, single-use tokens.
type fakeStore struct {
	mu     sync.Mutex
	nextID int

	tokens map[string]*fakeToken // keyed by uid
	users  map[string]*model.User // keyed by email
	lists  []*model.List          // creation order
	items  map[string][]model.Item // keyed by list ID

	// set to a non-nil error to simulate a database failure
	failWith error
}

type fakeToken struct {
	token    model.Token
	consumed bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		tokens: make(map[string]*fakeToken),
		users:  make(map[string]*model.User),
		items:  make(map[string][]model.Item),
	}
}

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeStore) CreateToken(_ context.Context, token *model.Token) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.tokens[token.UID] = &fakeToken{token: *token}
	return nil
}

func (f *fakeStore) ConsumeToken(_ context.Context, uid string, now time.Time) (*model.Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	t, ok := f.tokens[uid]
	if !ok || t.consumed || expired(t.token, now) {
		return nil, apperror.NotFound("token", uid)
	}
	t.consumed = true
	result := t.token
	return &result, nil
}

// expired mirrors the SQL predicate: a zero ExpiresAt never expires.
func expired(t model.Token, now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

func (f *fakeStore) PurgeTokens(_ context.Context, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return 0, f.failWith
	}
	var n int64
	for uid, t := range f.tokens {
		if t.consumed || expired(t.token, now) {
			delete(f.tokens, uid)
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) GetOrCreateUser(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	u, ok := f.users[email]
	if !ok {
		u = &model.User{ID: f.id("user"), Email: email, CreatedAt: time.Now()}
		f.users[email] = u
	}
	result := *u
	return &result, nil
}

func (f *fakeStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	u, ok := f.users[email]
	if !ok {
		return nil, apperror.NotFound("user", email)
	}
	result := *u
	return &result, nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, u := range f.users {
		if u.ID == id {
			result := *u
			return &result, nil
		}
	}
	return nil, apperror.NotFound("user", id)
}

func (f *fakeStore) CreateList(_ context.Context, list *model.List, first *model.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	list.ID = f.id("list")
	list.Name = first.Text
	first.ID = f.id("item")
	first.ListID = list.ID
	stored := *list
	f.lists = append(f.lists, &stored)
	f.items[list.ID] = []model.Item{*first}
	return nil
}

func (f *fakeStore) AddItem(_ context.Context, item *model.Item) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	existing, ok := f.items[item.ListID]
	if !ok {
		return apperror.NotFound("list", item.ListID)
	}
	for _, it := range existing {
		if it.Text == item.Text {
			return apperror.DuplicateItem("text")
		}
	}
	item.ID = f.id("item")
	f.items[item.ListID] = append(existing, *item)
	return nil
}

func (f *fakeStore) GetList(_ context.Context, id string) (*model.List, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	for _, l := range f.lists {
		if l.ID == id {
			result := *l
			return &result, nil
		}
	}
	return nil, apperror.NotFound("list", id)
}

func (f *fakeStore) ItemsOf(_ context.Context, listID string) ([]model.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	return append([]model.Item{}, f.items[listID]...), nil
}

func (f *fakeStore) ListsByOwner(_ context.Context, ownerID string) ([]model.List, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	result := []model.List{}
	for _, l := range f.lists {
		if l.OwnerID != nil && *l.OwnerID == ownerID {
			result = append(result, *l)
		}
	}
	return result, nil
}

func (f *fakeStore) itemCount(listID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items[listID])
}

// fakeMailer records every message instead of sending it.
type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

// testLogger keeps test output quiet except for errors.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

