// Package sample serves a small read-only catalog whose endpoints exercise
// every envelope path: plain results, known errors with validation detail,
// raw text, empty bodies, unhandled errors, panics and pre-wrapped envelopes.
package sample

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/radif/envelope/internal/apierr"
	"github.com/radif/envelope/internal/middleware"
	"github.com/radif/envelope/internal/response"
)

// Item is a catalog entry.
type Item struct {
	ID    string  `json:"id"    example:"b3f1c9a2-5d1e-4c1b-9a57-0e2f3a4b5c6d"`
	Name  string  `json:"name"  example:"Notebook"`
	Price float64 `json:"price" example:"4.5"`
}

type createItemRequest struct {
	Name  string  `json:"name"  example:"Notebook"`
	Price float64 `json:"price" example:"4.5"`
}

// Handler holds HTTP handlers for the sample endpoints.
type Handler struct {
	items map[string]Item
	order []string
}

// NewHandler creates a Handler serving the given items.
func NewHandler(items []Item) *Handler {
	h := &Handler{items: make(map[string]Item, len(items))}
	for _, it := range items {
		h.items[it.ID] = it
		h.order = append(h.order, it.ID)
	}
	return h
}

// Routes mounts the sample endpoints. Error-returning handlers go through t.
func (h *Handler) Routes(t *middleware.Translator, auth func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/items", h.ListItems)
	r.Get("/items/{id}", t.Handle(h.GetItem))
	r.Post("/items", t.Handle(h.CreateItem))
	r.Get("/text", h.Text)
	r.Get("/empty", h.Empty)
	r.Get("/wrapped", h.Wrapped)
	r.Get("/error", t.Handle(h.Fail))
	r.Get("/panic", h.Panic)
	r.With(auth).Get("/me", h.Me)
	return r
}

// ListItems godoc
//
//	@Summary	List items
//	@Tags		sample
//	@Produce	json
//	@Success	200	{object}	response.Envelope{result=[]Item}
//	@Router		/sample/items [get]
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	items := make([]Item, 0, len(h.order))
	for _, id := range h.order {
		items = append(items, h.items[id])
	}
	response.OK(w, items)
}

// GetItem godoc
//
//	@Summary	Get item
//	@Tags		sample
//	@Produce	json
//	@Param		id	path		string	true	"Item ID"
//	@Success	200	{object}	response.Envelope{result=Item}
//	@Failure	404	{object}	response.Envelope
//	@Router		/sample/items/{id} [get]
func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) error {
	id := chi.URLParam(r, "id")
	it, ok := h.items[id]
	if !ok {
		return apierr.NotFound("item not found",
			apierr.WithReference("ITEM_NOT_FOUND", "https://docs.radif.ir/errors/ITEM_NOT_FOUND"))
	}
	response.OK(w, it)
	return nil
}

// CreateItem godoc
//
//	@Summary		Validate item
//	@Description	Validates an item and echoes it back with a fresh ID. Nothing is stored.
//	@Tags			sample
//	@Accept			json
//	@Produce		json
//	@Param			request	body		createItemRequest	true	"Item"
//	@Success		201		{object}	response.Envelope{result=Item}
//	@Failure		400		{object}	response.Envelope
//	@Router			/sample/items [post]
func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) error {
	var req createItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return apierr.BadRequest("invalid request body", apierr.WithValidation("", err.Error()))
	}

	var opts []apierr.Option
	if strings.TrimSpace(req.Name) == "" {
		opts = append(opts, apierr.WithValidation("Name", "Required"))
	}
	if req.Price <= 0 {
		opts = append(opts, apierr.WithValidation("Price", "Must be greater than zero"))
	}
	if len(opts) > 0 {
		return apierr.BadRequest("One or more validation errors occurred.", opts...)
	}

	response.Created(w, Item{ID: uuid.NewString(), Name: req.Name, Price: req.Price})
	return nil
}

// Text returns a plain text body; it is wrapped as a string result.
func (h *Handler) Text(w http.ResponseWriter, r *http.Request) {
	response.Text(w, http.StatusOK, "catalog is open")
}

// Empty returns 200 with no body.
func (h *Handler) Empty(w http.ResponseWriter, r *http.Request) {
	response.NoContent(w, http.StatusOK)
}

// Wrapped returns a body that is already an envelope, as a proxied service
// would. Its status code wins over the transport status.
func (h *Handler) Wrapped(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.Success(http.StatusAccepted, map[string]string{"job": "queued"}))
}

// Fail returns an unexpected error.
func (h *Handler) Fail(w http.ResponseWriter, r *http.Request) error {
	return errors.Wrap(errors.New("inventory backend unreachable"), "list stock")
}

// Panic panics.
func (h *Handler) Panic(w http.ResponseWriter, r *http.Request) {
	panic("sample panic")
}

// Me godoc
//
//	@Summary	Current subject
//	@Tags		sample
//	@Produce	json
//	@Security	BearerAuth
//	@Success	200	{object}	response.Envelope
//	@Failure	401	{object}	response.Envelope
//	@Router		/sample/me [get]
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	subject, _ := r.Context().Value(middleware.SubjectKey).(string)
	response.OK(w, map[string]string{"subject": subject})
}
