package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

// ListMenu returns the available catalog.
func (h *Handler) ListMenu(w http.ResponseWriter, r *http.Request) {
	items, err := h.menu.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	e.Arr(func(e *jx.Encoder) {
		for _, it := range items {
			encodeMenuItem(e, it)
		}
	})
	writeJSON(w, http.StatusOK, e.Bytes())
}

// GetMenuItem returns one catalog entry by id, available or not.
func (h *Handler) GetMenuItem(w http.ResponseWriter, r *http.Request) {
	it, err := h.menu.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var e jx.Encoder
	encodeMenuItem(&e, *it)
	writeJSON(w, http.StatusOK, e.Bytes())
}
