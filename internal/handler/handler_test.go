package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/superlists/internal/apperror"
	"github.com/sakif/superlists/internal/auth"
	"github.com/sakif/superlists/internal/handler"
	"github.com/sakif/superlists/internal/model"
)

// =========================================================================
// FAKES
// =========================================================================

// fakeAuth implements handler.Authenticator.
type fakeAuth struct {
	users       map[string]*model.User // keyed by email
	validTokens map[string]string      // uid → email
	sendErr     error
	authErr     error
	sentTo      []string
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{
		users:       make(map[string]*model.User),
		validTokens: make(map[string]string),
	}
}

func (f *fakeAuth) SendLoginLink(_ context.Context, email string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	if strings.TrimSpace(email) == "" {
		return apperror.ValidationFailed("email", "Email is required")
	}
	f.sentTo = append(f.sentTo, email)
	return nil
}

func (f *fakeAuth) Authenticate(_ context.Context, uid string) (*model.User, error) {
	if f.authErr != nil {
		return nil, f.authErr
	}
	email, ok := f.validTokens[uid]
	if !ok {
		return nil, nil
	}
	delete(f.validTokens, uid)
	if _, ok := f.users[email]; !ok {
		f.users[email] = &model.User{ID: "user-" + email, Email: email}
	}
	return f.users[email], nil
}

func (f *fakeAuth) Lookup(_ context.Context, email string) (*model.User, error) {
	u, ok := f.users[email]
	if !ok {
		return nil, apperror.NotFound("user", email)
	}
	return u, nil
}

// fakeLists implements handler.ListManager.
type fakeLists struct {
	lists   map[string]*model.List
	nextID  int
	failErr error
	owners  []*model.User // owner passed to each Create call
}

func newFakeLists() *fakeLists {
	return &fakeLists{lists: make(map[string]*model.List)}
}

func (f *fakeLists) Create(_ context.Context, text string, owner *model.User) (*model.List, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperror.EmptyText("text")
	}
	f.owners = append(f.owners, owner)
	f.nextID++
	l := &model.List{ID: "list-" + string(rune('0'+f.nextID)), Name: text}
	if owner != nil {
		l.OwnerID = &owner.ID
	}
	l.Items = []model.Item{{ID: "item", ListID: l.ID, Text: text}}
	f.lists[l.ID] = l
	return l, nil
}

func (f *fakeLists) AddItem(_ context.Context, listID, text string) (*model.Item, error) {
	l, ok := f.lists[listID]
	if !ok {
		return nil, apperror.NotFound("list", listID)
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperror.EmptyText("text")
	}
	for _, it := range l.Items {
		if it.Text == text {
			return nil, apperror.DuplicateItem("text")
		}
	}
	item := model.Item{ID: "item", ListID: listID, Text: text}
	l.Items = append(l.Items, item)
	return &item, nil
}

func (f *fakeLists) Get(_ context.Context, id string) (*model.List, error) {
	if f.failErr != nil {
		return nil, f.failErr
	}
	l, ok := f.lists[id]
	if !ok {
		return nil, apperror.NotFound("list", id)
	}
	return l, nil
}

func (f *fakeLists) ListsOf(_ context.Context, owner *model.User) ([]model.List, error) {
	result := []model.List{}
	for _, l := range f.lists {
		if l.OwnerID != nil && *l.OwnerID == owner.ID {
			result = append(result, *l)
		}
	}
	return result, nil
}

// =========================================================================
// HELPERS
// =========================================================================

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testSessions(t *testing.T) *auth.SessionService {
	t.Helper()
	s, err := auth.NewSessionService("handler-test-secret-0123456789", time.Hour)
	require.NoError(t, err)
	return s
}

// newRouter mounts the handlers the way the server does.
func newRouter(t *testing.T, authn *fakeAuth, lists *fakeLists) (http.Handler, *auth.SessionService) {
	t.Helper()
	sessions := testSessions(t)
	ah := handler.NewAuthHandler(authn, sessions, false, testLogger())
	lh := handler.NewListHandler(lists, authn, testLogger())

	r := chi.NewRouter()
	r.Post("/accounts/send_login_email", ah.HandleSendLoginEmail)
	r.Get("/accounts/login", ah.HandleLogin)
	r.Post("/accounts/logout", ah.HandleLogout)
	r.Group(func(r chi.Router) {
		r.Use(auth.OptionalSession(sessions))
		r.Post("/api/lists", lh.HandleCreate)
		r.Get("/api/lists/{id}", lh.HandleGet)
		r.Post("/api/lists/{id}/items", lh.HandleAddItem)
	})
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireSession(sessions))
		r.Get("/api/me", ah.HandleMe)
		r.Get("/api/users/{email}/lists", lh.HandleUserLists)
	})
	return r, sessions
}

func do(t *testing.T, h http.Handler, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func sessionCookie(t *testing.T, s *auth.SessionService, email string) *http.Cookie {
	t.Helper()
	token, err := s.Issue(email)
	require.NoError(t, err)
	return &http.Cookie{Name: auth.CookieName, Value: token}
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var resp handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	return resp
}

// =========================================================================
// AUTH HANDLER
// =========================================================================

func TestHandleSendLoginEmail(t *testing.T) {
	t.Run("json body", func(t *testing.T) {
		authn := newFakeAuth()
		h, _ := newRouter(t, authn, newFakeLists())

		rr := do(t, h, http.MethodPost, "/accounts/send_login_email", `{"email":"edith@example.com"}`)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), handler.LoginLinkSentMessage)
		assert.Equal(t, []string{"edith@example.com"}, authn.sentTo)
	})

	t.Run("form body", func(t *testing.T) {
		authn := newFakeAuth()
		h, _ := newRouter(t, authn, newFakeLists())

		req := httptest.NewRequest(http.MethodPost, "/accounts/send_login_email",
			strings.NewReader("email=edith%40example.com"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, []string{"edith@example.com"}, authn.sentTo)
	})

	t.Run("blank email", func(t *testing.T) {
		h, _ := newRouter(t, newFakeAuth(), newFakeLists())

		rr := do(t, h, http.MethodPost, "/accounts/send_login_email", `{"email":""}`)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Equal(t, "email", decodeError(t, rr).Field)
	})

	t.Run("rate limited", func(t *testing.T) {
		authn := newFakeAuth()
		authn.sendErr = apperror.RateLimited("slow down")
		h, _ := newRouter(t, authn, newFakeLists())

		rr := do(t, h, http.MethodPost, "/accounts/send_login_email", `{"email":"a@b.com"}`)

		assert.Equal(t, http.StatusTooManyRequests, rr.Code)
		assert.Equal(t, "rate_limited", decodeError(t, rr).Error)
	})

	t.Run("mailer down", func(t *testing.T) {
		authn := newFakeAuth()
		authn.sendErr = errors.New("smtp: connection refused")
		h, _ := newRouter(t, authn, newFakeLists())

		rr := do(t, h, http.MethodPost, "/accounts/send_login_email", `{"email":"a@b.com"}`)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.NotContains(t, rr.Body.String(), "smtp")
	})
}

func TestHandleLogin(t *testing.T) {
	t.Run("valid token sets session and redirects", func(t *testing.T) {
		authn := newFakeAuth()
		authn.validTokens["good"] = "a@b.com"
		h, sessions := newRouter(t, authn, newFakeLists())

		rr := do(t, h, http.MethodGet, "/accounts/login?token=good", "")

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Equal(t, "/", rr.Header().Get("Location"))

		cookies := rr.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, auth.CookieName, cookies[0].Name)
		assert.True(t, cookies[0].HttpOnly)

		email, err := sessions.Validate(cookies[0].Value)
		require.NoError(t, err)
		assert.Equal(t, "a@b.com", email)
	})

	t.Run("unknown token redirects without session", func(t *testing.T) {
		h, _ := newRouter(t, newFakeAuth(), newFakeLists())

		rr := do(t, h, http.MethodGet, "/accounts/login?token=bogus", "")

		assert.Equal(t, http.StatusSeeOther, rr.Code)
		assert.Empty(t, rr.Result().Cookies())
	})

	t.Run("storage fault is a 500", func(t *testing.T) {
		authn := newFakeAuth()
		authn.authErr = errors.New("database is locked")
		h, _ := newRouter(t, authn, newFakeLists())

		rr := do(t, h, http.MethodGet, "/accounts/login?token=x", "")

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}

func TestHandleLogout(t *testing.T) {
	h, _ := newRouter(t, newFakeAuth(), newFakeLists())

	rr := do(t, h, http.MethodPost, "/accounts/logout", "")

	assert.Equal(t, http.StatusOK, rr.Code)
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestHandleMe(t *testing.T) {
	authn := newFakeAuth()
	authn.users["a@b.com"] = &model.User{ID: "u1", Email: "a@b.com"}
	h, sessions := newRouter(t, authn, newFakeLists())

	rr := do(t, h, http.MethodGet, "/api/me", "", sessionCookie(t, sessions, "a@b.com"))
	assert.Equal(t, http.StatusOK, rr.Code)

	var user model.User
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&user))
	assert.Equal(t, "u1", user.ID)

	rr = do(t, h, http.MethodGet, "/api/me", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

// =========================================================================
// LIST HANDLER
// =========================================================================

func TestHandleCreate(t *testing.T) {
	t.Run("anonymous", func(t *testing.T) {
		lists := newFakeLists()
		h, _ := newRouter(t, newFakeAuth(), lists)

		rr := do(t, h, http.MethodPost, "/api/lists", `{"text":"Buy milk"}`)

		assert.Equal(t, http.StatusCreated, rr.Code)
		var list model.List
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&list))
		assert.Equal(t, "Buy milk", list.Name)
		assert.Nil(t, list.OwnerID)
		assert.Equal(t, "/api/lists/"+list.ID, rr.Header().Get("Location"))
		require.Len(t, lists.owners, 1)
		assert.Nil(t, lists.owners[0])
	})

	t.Run("logged in caller owns the list", func(t *testing.T) {
		authn := newFakeAuth()
		authn.users["a@b.com"] = &model.User{ID: "u1", Email: "a@b.com"}
		lists := newFakeLists()
		h, sessions := newRouter(t, authn, lists)

		rr := do(t, h, http.MethodPost, "/api/lists", `{"text":"Buy milk"}`, sessionCookie(t, sessions, "a@b.com"))

		assert.Equal(t, http.StatusCreated, rr.Code)
		require.Len(t, lists.owners, 1)
		require.NotNil(t, lists.owners[0])
		assert.Equal(t, "u1", lists.owners[0].ID)
	})

	t.Run("empty text echoes input", func(t *testing.T) {
		h, _ := newRouter(t, newFakeAuth(), newFakeLists())

		rr := do(t, h, http.MethodPost, "/api/lists", `{"text":"  "}`)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		resp := decodeError(t, rr)
		assert.Equal(t, apperror.EmptyTextMessage, resp.Message)
		assert.Equal(t, "text", resp.Field)
		require.NotNil(t, resp.Input)
		assert.Equal(t, "  ", *resp.Input)
	})

	t.Run("invalid json", func(t *testing.T) {
		h, _ := newRouter(t, newFakeAuth(), newFakeLists())

		rr := do(t, h, http.MethodPost, "/api/lists", `{"text":`)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("storage fault", func(t *testing.T) {
		lists := newFakeLists()
		lists.failErr = errors.New("disk I/O error")
		h, _ := newRouter(t, newFakeAuth(), lists)

		rr := do(t, h, http.MethodPost, "/api/lists", `{"text":"x"}`)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
		assert.Equal(t, "internal_error", decodeError(t, rr).Error)
	})
}

func TestHandleAddItem(t *testing.T) {
	lists := newFakeLists()
	h, _ := newRouter(t, newFakeAuth(), lists)
	created, _ := lists.Create(context.Background(), "Buy milk", nil)

	rr := do(t, h, http.MethodPost, "/api/lists/"+created.ID+"/items", `{"text":"Buy bread"}`)
	assert.Equal(t, http.StatusCreated, rr.Code)
	var list model.List
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&list))
	require.Len(t, list.Items, 2)
	assert.Equal(t, "Buy bread", list.Items[1].Text)

	rr = do(t, h, http.MethodPost, "/api/lists/"+created.ID+"/items", `{"text":"Buy milk"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	resp := decodeError(t, rr)
	assert.Equal(t, apperror.DuplicateItemMessage, resp.Message)
	require.NotNil(t, resp.Input)
	assert.Equal(t, "Buy milk", *resp.Input)

	rr = do(t, h, http.MethodPost, "/api/lists/missing/items", `{"text":"x"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleGet(t *testing.T) {
	lists := newFakeLists()
	h, _ := newRouter(t, newFakeAuth(), lists)
	created, _ := lists.Create(context.Background(), "Buy milk", nil)

	rr := do(t, h, http.MethodGet, "/api/lists/"+created.ID, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, h, http.MethodGet, "/api/lists/nope", "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandleUserLists(t *testing.T) {
	authn := newFakeAuth()
	edith := &model.User{ID: "u-edith", Email: "edith@example.com"}
	authn.users[edith.Email] = edith
	lists := newFakeLists()
	lists.Create(context.Background(), "mine", edith)
	lists.Create(context.Background(), "anon", nil)
	h, sessions := newRouter(t, authn, lists)

	t.Run("own lists", func(t *testing.T) {
		rr := do(t, h, http.MethodGet, "/api/users/edith@example.com/lists", "",
			sessionCookie(t, sessions, "edith@example.com"))

		assert.Equal(t, http.StatusOK, rr.Code)
		var got []model.List
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
		require.Len(t, got, 1)
		assert.Equal(t, "mine", got[0].Name)
	})

	t.Run("someone else's lists", func(t *testing.T) {
		rr := do(t, h, http.MethodGet, "/api/users/edith@example.com/lists", "",
			sessionCookie(t, sessions, "mallory@example.com"))

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("anonymous", func(t *testing.T) {
		rr := do(t, h, http.MethodGet, "/api/users/edith@example.com/lists", "")

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestHandleUserLists_EncodedEmail(t *testing.T) {
	authn := newFakeAuth()
	edith := &model.User{ID: "u-edith", Email: "edith+todo@example.com"}
	authn.users[edith.Email] = edith
	lists := newFakeLists()
	lists.Create(context.Background(), "mine", edith)
	h, sessions := newRouter(t, authn, lists)
	cookie := sessionCookie(t, sessions, edith.Email)

	for _, path := range []string{
		"/api/users/edith+todo@example.com/lists",
		"/api/users/edith%2Btodo%40example.com/lists",
		"/api/users/edith+todo%40example.com/lists",
	} {
		t.Run(path, func(t *testing.T) {
			rr := do(t, h, http.MethodGet, path, "", cookie)

			require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
			var got []model.List
			require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
			require.Len(t, got, 1)
			assert.Equal(t, "mine", got[0].Name)
		})
	}

	t.Run("malformed escape", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/users/x/lists", nil)
		req.URL.RawPath = "/api/users/edith%zz/lists"
		req.AddCookie(cookie)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), `"field":"email"`)
	})
}
