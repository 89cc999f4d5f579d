package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/superlists/internal/apperror"
	"github.com/sakif/superlists/internal/auth"
	"github.com/sakif/superlists/internal/model"
)

// ListManager is what ListHandler needs from the list service.
type ListManager interface {
	Create(ctx context.Context, text string, owner *model.User) (*model.List, error)
	AddItem(ctx context.Context, listID, text string) (*model.Item, error)
	Get(ctx context.Context, id string) (*model.List, error)
	ListsOf(ctx context.Context, owner *model.User) ([]model.List, error)
}

// ListHandler serves lists and items.
type ListHandler struct {
	lists  ListManager
	auth   Authenticator
	logger *slog.Logger
}

// NewListHandler creates a ListHandler.
func NewListHandler(lists ListManager, authn Authenticator, logger *slog.Logger) *ListHandler {
	return &ListHandler{lists: lists, auth: authn, logger: logger}
}

// itemRequest is the JSON body for creating a list or adding an item.
type itemRequest struct {
	Text string `json:"text"`
}

// HandleCreate starts a new list with its first item.
//
// HTTP: POST /api/lists
// Auth: Optional. A logged-in caller becomes the list's owner.
func (h *ListHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	owner, err := currentUser(r.Context(), h.auth)
	if err != nil {
		h.logger.Error("resolving session failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	list, err := h.lists.Create(r.Context(), req.Text, owner)
	if err != nil {
		h.logError("create list", err)
		writeErrorWithInput(w, err, &req.Text)
		return
	}

	w.Header().Set("Location", "/api/lists/"+list.ID)
	writeJSON(w, http.StatusCreated, list)
}

// HandleGet returns a list with its items.
//
// HTTP: GET /api/lists/{id}
func (h *ListHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	list, err := h.lists.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.logError("get list", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// HandleAddItem adds an item and returns the updated list.
//
// HTTP: POST /api/lists/{id}/items
func (h *ListHandler) HandleAddItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req itemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if _, err := h.lists.AddItem(r.Context(), id, req.Text); err != nil {
		h.logError("add item", err)
		writeErrorWithInput(w, err, &req.Text)
		return
	}

	list, err := h.lists.Get(r.Context(), id)
	if err != nil {
		h.logError("get list", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, list)
}

// HandleUserLists returns every list owned by the user in the path.
//
// HTTP: GET /api/users/{email}/lists
// Auth: Required, and only for your own email.
//
// chi matches on the raw path when the client percent-encodes it, so the
// parameter may still carry %40 for '@' and has to be unescaped first.
func (h *ListHandler) HandleUserLists(w http.ResponseWriter, r *http.Request) {
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil {
		writeError(w, apperror.ValidationFailed("email", "Invalid email in path"))
		return
	}
	if sessionEmail, _ := auth.EmailFromContext(r.Context()); sessionEmail != email {
		writeError(w, apperror.Forbidden("You can only see your own lists"))
		return
	}

	owner, err := h.auth.Lookup(r.Context(), email)
	if err != nil {
		writeError(w, err)
		return
	}

	lists, err := h.lists.ListsOf(r.Context(), owner)
	if err != nil {
		h.logError("list lists", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lists)
}

// logError logs storage faults. Domain errors are the caller's problem and
// only show up in the request log.
func (h *ListHandler) logError(op string, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		h.logger.Error(op+" failed", slog.String("error", err.Error()))
	}
}
