package handlers

import "net/http"

// Export renders the filtered view (same query as ListPayments) to xlsx.
func (h *Handlers) Export(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.userID(w, r)
	if !ok {
		return
	}
	if h.Exporter == nil {
		h.JSON(w, http.StatusServiceUnavailable, map[string]string{"error": "storage not configured"})
		return
	}

	f, sortKey, err := filterFromQuery(r)
	if err != nil {
		h.writeError(w, "EXPORT", err)
		return
	}
	recs, err := h.Payments.List(r.Context(), uid, f, sortKey)
	if err != nil {
		h.writeError(w, "EXPORT", err)
		return
	}

	res, err := h.Exporter.Export(r.Context(), uid, recs, h.now())
	if err != nil {
		h.writeError(w, "EXPORT", err)
		return
	}
	h.JSON(w, http.StatusCreated, res)
}
