package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"finance_tracker/internal/apperrors"
	"finance_tracker/internal/models"
	"finance_tracker/internal/services/lifecycle"
	"finance_tracker/internal/services/metrics"
	"finance_tracker/internal/services/payments"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
)

type paymentView struct {
	models.Payment
	DerivedStatus metrics.DerivedStatus `json:"derived_status"`
	DaysUntil     int                   `json:"days_until"`
}

func (h *Handlers) view(p models.Payment) paymentView {
	now := h.now()
	return paymentView{
		Payment:       p,
		DerivedStatus: h.Calc.StatusOf(p, now),
		DaysUntil:     metrics.DaysUntil(p.DueDate, now),
	}
}

type paymentRequest struct {
	Title          *string          `json:"title"`
	Amount         *decimal.Decimal `json:"amount"`
	DueDate        *Date            `json:"due_date"`
	Description    *string          `json:"description"`
	Category       *string          `json:"category"`
	Priority       *string          `json:"priority"`
	Provider       *string          `json:"provider"`
	Tags           []string         `json:"tags"`
	PaymentMethod  *string          `json:"payment_method"`
	ReminderDays   *int             `json:"reminder_days"`
	IsDebt         *bool            `json:"is_debt"`
	OriginalAmount *decimal.Decimal `json:"original_amount"`
	InterestRate   *decimal.Decimal `json:"interest_rate"`
	MinimumPayment *decimal.Decimal `json:"minimum_payment"`
	IncludesTax    *bool            `json:"includes_tax"`
	Recurring      *bool            `json:"recurring"`
	RecurringType  *string          `json:"recurring_type"`
}

func (r paymentRequest) createInput() payments.CreateInput {
	in := payments.CreateInput{
		Tags:           r.Tags,
		OriginalAmount: r.OriginalAmount,
		InterestRate:   r.InterestRate,
		MinimumPayment: r.MinimumPayment,
	}
	str := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	flag := func(p *bool) bool { return p != nil && *p }

	in.Title = str(r.Title)
	in.Description = str(r.Description)
	in.Category = str(r.Category)
	in.Priority = str(r.Priority)
	in.Provider = str(r.Provider)
	in.PaymentMethod = str(r.PaymentMethod)
	in.RecurringType = str(r.RecurringType)
	in.IsDebt = flag(r.IsDebt)
	in.IncludesTax = flag(r.IncludesTax)
	in.Recurring = flag(r.Recurring)
	if r.Amount != nil {
		in.Amount = *r.Amount
	}
	if r.DueDate != nil {
		in.DueDate = r.DueDate.Time
	}
	if r.ReminderDays != nil {
		in.ReminderDays = *r.ReminderDays
	}
	return in
}

func (r paymentRequest) editInput() payments.EditInput {
	return payments.EditInput{
		Title:          r.Title,
		Amount:         r.Amount,
		DueDate:        datePtr(r.DueDate),
		Description:    r.Description,
		Category:       r.Category,
		Priority:       r.Priority,
		Provider:       r.Provider,
		Tags:           r.Tags,
		PaymentMethod:  r.PaymentMethod,
		ReminderDays:   r.ReminderDays,
		IsDebt:         r.IsDebt,
		OriginalAmount: r.OriginalAmount,
		InterestRate:   r.InterestRate,
		MinimumPayment: r.MinimumPayment,
		IncludesTax:    r.IncludesTax,
		Recurring:      r.Recurring,
		RecurringType:  r.RecurringType,
	}
}

// filterFromQuery reads filter, window, category and q.
func filterFromQuery(r *http.Request) (metrics.Filter, string, error) {
	q := r.URL.Query()
	f := metrics.Filter{
		Name:     q.Get("filter"),
		Category: q.Get("category"),
		Search:   q.Get("q"),
	}
	if w := strings.TrimSpace(q.Get("window")); w != "" {
		n, err := strconv.Atoi(w)
		if err != nil || n < 0 {
			return f, "", apperrors.Validation("window", "must be a non-negative integer")
		}
		f.WindowDays = n
	}
	return f, q.Get("sort"), nil
}

func (h *Handlers) ListPayments(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.userID(w, r)
	if !ok {
		return
	}
	f, sortKey, err := filterFromQuery(r)
	if err != nil {
		h.writeError(w, "PAYMENTS][LIST", err)
		return
	}

	recs, err := h.Payments.List(r.Context(), uid, f, sortKey)
	if err != nil {
		h.writeError(w, "PAYMENTS][LIST", err)
		return
	}
	out := make([]paymentView, 0, len(recs))
	for _, p := range recs {
		out = append(out, h.view(p))
	}
	h.JSON(w, http.StatusOK, map[string]any{"data": out, "count": len(out)})
}

func (h *Handlers) CreatePayment(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req paymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	rec, err := h.Payments.Create(r.Context(), uid, req.createInput())
	if err != nil {
		h.writeError(w, "PAYMENTS][CREATE", err)
		return
	}
	h.JSON(w, http.StatusCreated, h.view(rec))
}

func (h *Handlers) GetPayment(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.userID(w, r)
	if !ok {
		return
	}
	rec, err := h.Payments.Get(r.Context(), uid, mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, "PAYMENTS][GET", err)
		return
	}
	h.JSON(w, http.StatusOK, h.view(rec))
}

func (h *Handlers) EditPayment(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req paymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	rec, err := h.Payments.Edit(r.Context(), uid, mux.Vars(r)["id"], req.editInput())
	if err != nil {
		h.writeError(w, "PAYMENTS][EDIT", err)
		return
	}
	h.JSON(w, http.StatusOK, h.view(rec))
}

func (h *Handlers) DeletePayment(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.userID(w, r)
	if !ok {
		return
	}
	if err := h.Payments.Delete(r.Context(), uid, mux.Vars(r)["id"]); err != nil {
		h.writeError(w, "PAYMENTS][DELETE", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) PaymentHistory(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.userID(w, r)
	if !ok {
		return
	}
	hist, err := h.Payments.History(r.Context(), uid, mux.Vars(r)["id"])
	if err != nil {
		h.writeError(w, "PAYMENTS][HISTORY", err)
		return
	}
	h.JSON(w, http.StatusOK, map[string]any{"data": hist, "count": len(hist)})
}

type settleRequest struct {
	Type   string           `json:"type"`
	Amount *decimal.Decimal `json:"amount"`
	Date   *Date            `json:"date"`
	Method string           `json:"method"`
	Note   string           `json:"note"`
}

type settleResponse struct {
	Updated      paymentView   `json:"updated"`
	Spawned      *paymentView  `json:"spawned,omitempty"`
	Installments []paymentView `json:"installments,omitempty"`
}

func (h *Handlers) result(res lifecycle.Result) settleResponse {
	out := settleResponse{Updated: h.view(res.Updated)}
	if res.Spawned != nil {
		v := h.view(*res.Spawned)
		out.Spawned = &v
	}
	for _, p := range res.Installments {
		out.Installments = append(out.Installments, h.view(p))
	}
	return out
}

func (h *Handlers) settlement(d *Date, method, note string) models.Settlement {
	st := models.Settlement{Date: h.now(), Method: method, Note: note}
	if d != nil && !d.IsZero() {
		st.Date = d.Time
	}
	return st
}

func (h *Handlers) SettlePayment(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req settleRequest
	if !h.decode(w, r, &req) {
		return
	}
	id := mux.Vars(r)["id"]
	st := h.settlement(req.Date, req.Method, req.Note)

	var (
		res lifecycle.Result
		err error
	)
	switch strings.ToLower(strings.TrimSpace(req.Type)) {
	case "", "full":
		res, err = h.Payments.SettleFull(r.Context(), uid, id, st)
	case "partial":
		if req.Amount == nil {
			err = apperrors.Validation("amount", "is required for a partial payment")
			break
		}
		res, err = h.Payments.SettlePartial(r.Context(), uid, id, *req.Amount, st)
	default:
		err = apperrors.Validation("type", "must be full or partial")
	}
	if err != nil {
		h.writeError(w, "PAYMENTS][SETTLE", err)
		return
	}
	h.JSON(w, http.StatusOK, h.result(res))
}

type installmentsRequest struct {
	Amount    *decimal.Decimal `json:"amount"`
	Count     int              `json:"count"`
	StartDate *Date            `json:"start_date"`
	Method    string           `json:"method"`
	Note      string           `json:"note"`
}

func (h *Handlers) ScheduleInstallments(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req installmentsRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Amount == nil {
		h.writeError(w, "PAYMENTS][INSTALLMENTS", apperrors.Validation("amount", "is required"))
		return
	}
	if req.StartDate == nil || req.StartDate.IsZero() {
		h.writeError(w, "PAYMENTS][INSTALLMENTS", apperrors.Validation("start_date", "is required"))
		return
	}

	st := h.settlement(nil, req.Method, req.Note)
	res, err := h.Payments.ScheduleInstallments(r.Context(), uid, mux.Vars(r)["id"], *req.Amount, req.Count, req.StartDate.Time, st)
	if err != nil {
		h.writeError(w, "PAYMENTS][INSTALLMENTS", err)
		return
	}
	h.JSON(w, http.StatusOK, h.result(res))
}

func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	uid, ok := h.userID(w, r)
	if !ok {
		return
	}
	st, err := h.Payments.Stats(r.Context(), uid)
	if err != nil {
		h.writeError(w, "STATS", err)
		return
	}
	h.JSON(w, http.StatusOK, st)
}
