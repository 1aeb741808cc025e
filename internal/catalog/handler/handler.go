// Package handler exposes catalog acquisition, circulation and lookup over
// HTTP/JSON.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/internal/catalog/book"
	apperrors "github.com/Adithya-Monish-Kumar-K/library-catalog/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/library-catalog/pkg/logger"
)

// maxBodyBytes bounds request bodies; a title is a few hundred bytes.
const maxBodyBytes = 64 << 10

type Handler struct {
	catalog *catalog.Catalog
	logger  *slog.Logger
}

func New(cat *catalog.Catalog) *Handler {
	return &Handler{
		catalog: cat,
		logger:  slog.Default().With("component", "catalog-handler"),
	}
}

// Routes mounts the catalog endpoints on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/titles/purchase", h.Purchase)
	r.Post("/titles/copies", h.Copies)
	r.Route("/copies/{id}", func(r chi.Router) {
		r.Get("/", h.GetCopy)
		r.Patch("/", h.SetCondition)
		r.Post("/checkout", h.circulation(catalog.OpCheckout))
		r.Post("/checkin", h.circulation(catalog.OpCheckin))
		r.Post("/lose", h.circulation(catalog.OpLose))
	})
	r.Get("/stats", h.Stats)
}

type titleRequest struct {
	Text    string   `json:"text"`
	Authors []string `json:"authors"`
	Year    int      `json:"year"`
}

func (req titleRequest) title() (book.Title, error) {
	t, err := book.NewTitle(req.Text, req.Authors, req.Year)
	if err != nil {
		return book.Title{}, apperrors.Invalid("%v", err)
	}
	return t, nil
}

type copyResponse struct {
	*book.Copy
	Status string `json:"status"`
}

// MarshalJSON flattens the copy fields next to status.
func (c copyResponse) MarshalJSON() ([]byte, error) {
	type view struct {
		ID        uuid.UUID      `json:"id"`
		Title     book.Title     `json:"title"`
		Condition book.Condition `json:"condition"`
		Status    string         `json:"status"`
	}
	return json.Marshal(view{c.ID(), c.Title(), c.Condition(), c.Status})
}

type circulationResponse struct {
	CopyID  uuid.UUID       `json:"copy_id"`
	Applied bool            `json:"applied"`
	Outcome catalog.Outcome `json:"outcome"`
	Status  string          `json:"status"`
}

func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	var req titleRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	t, err := req.title()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	cp, err := h.catalog.Purchase(r.Context(), t)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, copyResponse{Copy: cp, Status: h.catalog.CopyStatus(cp)})
}

// Copies lists the active copies of the Title in the body. ?available=true
// narrows to available copies; ?lost=true lists recorded lost copies.
func (h *Handler) Copies(w http.ResponseWriter, r *http.Request) {
	var req titleRequest
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	t, err := req.title()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	var copies []*book.Copy
	switch {
	case boolParam(q.Get("lost")):
		copies = h.catalog.LostCopies(t)
	case boolParam(q.Get("available")):
		copies = h.catalog.AvailableCopies(t)
	default:
		copies = h.catalog.AllCopies(t)
	}
	out := make([]copyResponse, 0, len(copies))
	for _, cp := range copies {
		out = append(out, copyResponse{Copy: cp, Status: h.catalog.CopyStatus(cp)})
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"title":  t,
		"count":  len(out),
		"copies": out,
	})
}

func (h *Handler) GetCopy(w http.ResponseWriter, r *http.Request) {
	cp, err := h.lookup(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, copyResponse{Copy: cp, Status: h.catalog.CopyStatus(cp)})
}

func (h *Handler) SetCondition(w http.ResponseWriter, r *http.Request) {
	cp, err := h.lookup(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req struct {
		Condition *book.Condition `json:"condition"`
	}
	if err := h.decode(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if req.Condition == nil {
		h.writeError(w, r, apperrors.Invalid("condition is required"))
		return
	}
	if err := h.catalog.SetCondition(r.Context(), cp, *req.Condition); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, copyResponse{Copy: cp, Status: h.catalog.CopyStatus(cp)})
}

// circulation serves checkout, checkin and lose. A non-applied outcome is
// a 200 unless ?strict=true, which turns it into the matching 409.
func (h *Handler) circulation(op catalog.Op) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cp, err := h.lookup(r)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		var out catalog.Outcome
		switch op {
		case catalog.OpCheckout:
			out, err = h.catalog.Checkout(r.Context(), cp)
		case catalog.OpCheckin:
			out, err = h.catalog.Checkin(r.Context(), cp)
		case catalog.OpLose:
			out, err = h.catalog.Lose(r.Context(), cp)
		}
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		if !out.OK() && boolParam(r.URL.Query().Get("strict")) {
			h.writeError(w, r, apperrors.Newf(out.Err(), apperrors.HTTPStatusCode(out.Err()), "%s %s", op, cp.ID()))
			return
		}
		h.writeJSON(w, http.StatusOK, circulationResponse{
			CopyID:  cp.ID(),
			Applied: out.OK(),
			Outcome: out,
			Status:  h.catalog.CopyStatus(cp),
		})
	}
}

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.catalog.Stats())
}

func (h *Handler) lookup(r *http.Request) (*book.Copy, error) {
	raw := chi.URLParam(r, "id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, apperrors.Invalid("malformed copy id %q", raw)
	}
	cp, ok := h.catalog.Copy(id)
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrNotFound, http.StatusNotFound, "copy %s", id)
	}
	return cp, nil
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperrors.Invalid("invalid request body: %v", err)
	}
	return nil
}

func boolParam(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("catalog request failed", "path", r.URL.Path, "error", err)
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}
