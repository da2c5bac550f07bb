package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"finance_tracker/internal/apperrors"
	"finance_tracker/internal/models"
	importitems "finance_tracker/internal/repository/imports"
	"finance_tracker/internal/services/lifecycle"
	"finance_tracker/internal/services/metrics"
	"finance_tracker/internal/services/payments"
	auth "finance_tracker/internal/transport/auth"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var testNow = time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC)

type memStore struct {
	recs      map[string]models.Payment
	seq       int
	failAfter int
}

func (m *memStore) Create(_ context.Context, userID string, rec models.Payment) (string, error) {
	if m.failAfter == 0 {
		return "", errors.New("disk full")
	}
	if m.failAfter > 0 {
		m.failAfter--
	}
	m.seq++
	rec.ID = fmt.Sprintf("p%d", m.seq)
	rec.UserID = userID
	m.recs[rec.ID] = rec
	return rec.ID, nil
}

func (m *memStore) Get(_ context.Context, userID, id string) (models.Payment, error) {
	rec, ok := m.recs[id]
	if !ok || rec.UserID != userID {
		return models.Payment{}, &apperrors.NotFoundError{ID: id}
	}
	return rec.Clone(), nil
}

func (m *memStore) List(_ context.Context, userID string) ([]models.Payment, error) {
	var out []models.Payment
	for _, r := range m.recs {
		if r.UserID == userID {
			out = append(out, r.Clone())
		}
	}
	return out, nil
}

func (m *memStore) Update(_ context.Context, userID, id string, rec models.Payment) error {
	if cur, ok := m.recs[id]; !ok || cur.UserID != userID {
		return &apperrors.NotFoundError{ID: id}
	}
	rec.ID, rec.UserID = id, userID
	m.recs[id] = rec
	return nil
}

func (m *memStore) Delete(_ context.Context, userID, id string) error {
	if cur, ok := m.recs[id]; !ok || cur.UserID != userID {
		return &apperrors.NotFoundError{ID: id}
	}
	delete(m.recs, id)
	return nil
}

func newTestHandlers() (*Handlers, *memStore) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	store := &memStore{recs: map[string]models.Payment{}, failAfter: -1}
	seq := 0
	engine := lifecycle.NewEngine(decimal.RequireFromString("0.18"))
	engine.Now = func() time.Time { return testNow }
	engine.NewID = func() string { seq++; return fmt.Sprintf("h%d", seq) }
	calc := metrics.NewCalculator(3, 7)

	svc := payments.NewService(store, engine, calc, nil, logger)
	svc.Now = func() time.Time { return testNow }

	h := New(nil, nil, nil, nil, svc, calc, logger)
	h.Now = func() time.Time { return testNow }
	return h, store
}

func call(h http.HandlerFunc, method, target, body, uid string, vars map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if uid != "" {
		req = req.WithContext(auth.WithUserID(req.Context(), uid))
	}
	if vars != nil {
		req = mux.SetURLVars(req, vars)
	}
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return out
}

func TestCreatePayment_returnsView(t *testing.T) {
	h, _ := newTestHandlers()
	rr := call(h.CreatePayment, http.MethodPost, "/api/payments",
		`{"title":"Luz","amount":"100","due_date":"2024-01-07","includes_tax":true}`, "7", nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["derived_status"] != "dueSoon" || body["days_until"] != float64(2) {
		t.Fatalf("derived fields: %v", body)
	}
	if body["total_amount"] != "118" {
		t.Fatalf("total_amount=%v", body["total_amount"])
	}
}

func TestCreatePayment_validation(t *testing.T) {
	h, _ := newTestHandlers()
	cases := []string{
		`{"title":"","amount":10,"due_date":"2024-01-07"}`,
		`{"title":"x","amount":0,"due_date":"2024-01-07"}`,
		`{"title":"x","amount":10,"due_date":"07/01/2024"}`,
		`{not json`,
	}
	for _, body := range cases {
		rr := call(h.CreatePayment, http.MethodPost, "/api/payments", body, "7", nil)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("body %s: status=%d want 400", body, rr.Code)
		}
	}
}

func TestHandlers_requireUser(t *testing.T) {
	h, _ := newTestHandlers()
	rr := call(h.ListPayments, http.MethodGet, "/api/payments", "", "", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d want 401", rr.Code)
	}
}

func TestGetPayment_notFoundForOtherUser(t *testing.T) {
	h, _ := newTestHandlers()
	rr := call(h.CreatePayment, http.MethodPost, "/api/payments",
		`{"title":"Luz","amount":50,"due_date":"2024-01-20"}`, "7", nil)
	id := decodeBody(t, rr)["id"].(string)

	if rr := call(h.GetPayment, http.MethodGet, "/", "", "8", map[string]string{"id": id}); rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d want 404", rr.Code)
	}
	if rr := call(h.GetPayment, http.MethodGet, "/", "", "7", map[string]string{"id": id}); rr.Code != http.StatusOK {
		t.Fatalf("status=%d want 200", rr.Code)
	}
}

func TestSettlePayment_fullThenConflict(t *testing.T) {
	h, _ := newTestHandlers()
	rr := call(h.CreatePayment, http.MethodPost, "/api/payments",
		`{"title":"Netflix","amount":30,"due_date":"2024-01-10","recurring":true,"recurring_type":"monthly"}`, "7", nil)
	id := decodeBody(t, rr)["id"].(string)
	vars := map[string]string{"id": id}

	rr = call(h.SettlePayment, http.MethodPost, "/", `{"type":"full","method":"transferencia"}`, "7", vars)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	spawned, ok := body["spawned"].(map[string]any)
	if !ok {
		t.Fatalf("expected spawned recurrence: %v", body)
	}
	if !strings.HasPrefix(spawned["due_date"].(string), "2024-02-10") {
		t.Fatalf("spawned due=%v", spawned["due_date"])
	}

	rr = call(h.SettlePayment, http.MethodPost, "/", `{"type":"full"}`, "7", vars)
	if rr.Code != http.StatusConflict {
		t.Fatalf("status=%d want 409", rr.Code)
	}
}

func TestSettlePayment_partialNeedsAmount(t *testing.T) {
	h, _ := newTestHandlers()
	rr := call(h.CreatePayment, http.MethodPost, "/api/payments",
		`{"title":"Luz","amount":50,"due_date":"2024-01-20"}`, "7", nil)
	vars := map[string]string{"id": decodeBody(t, rr)["id"].(string)}

	if rr := call(h.SettlePayment, http.MethodPost, "/", `{"type":"partial"}`, "7", vars); rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want 400", rr.Code)
	}
	if rr := call(h.SettlePayment, http.MethodPost, "/", `{"type":"bogus"}`, "7", vars); rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d want 400", rr.Code)
	}
	rr = call(h.SettlePayment, http.MethodPost, "/", `{"type":"partial","amount":"20.5","date":"2024-01-04"}`, "7", vars)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	updated := decodeBody(t, rr)["updated"].(map[string]any)
	if updated["amount"] != "29.5" {
		t.Fatalf("amount=%v", updated["amount"])
	}
}

func TestScheduleInstallments_storeFailureReportsCreated(t *testing.T) {
	h, store := newTestHandlers()
	rr := call(h.CreatePayment, http.MethodPost, "/api/payments",
		`{"title":"Laptop","amount":1000,"due_date":"2024-01-20"}`, "7", nil)
	vars := map[string]string{"id": decodeBody(t, rr)["id"].(string)}

	store.failAfter = 1
	rr = call(h.ScheduleInstallments, http.MethodPost, "/",
		`{"amount":200,"count":4,"start_date":"2024-01-05"}`, "7", vars)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if got := decodeBody(t, rr)["created"]; got != float64(1) {
		t.Fatalf("created=%v want 1", got)
	}
}

func TestListPayments_filters(t *testing.T) {
	h, _ := newTestHandlers()
	for _, body := range []string{
		`{"title":"Luz","amount":50,"due_date":"2024-01-01"}`,
		`{"title":"Agua","amount":20,"due_date":"2024-01-30"}`,
	} {
		call(h.CreatePayment, http.MethodPost, "/api/payments", body, "7", nil)
	}

	rr := call(h.ListPayments, http.MethodGet, "/api/payments?filter=overdue", "", "7", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if got := decodeBody(t, rr)["count"]; got != float64(1) {
		t.Fatalf("overdue count=%v want 1", got)
	}

	if rr := call(h.ListPayments, http.MethodGet, "/api/payments?filter=nope", "", "7", nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown filter status=%d want 400", rr.Code)
	}
	if rr := call(h.ListPayments, http.MethodGet, "/api/payments?window=-1", "", "7", nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("bad window status=%d want 400", rr.Code)
	}
}

func TestStats(t *testing.T) {
	h, _ := newTestHandlers()
	call(h.CreatePayment, http.MethodPost, "/api/payments", `{"title":"Luz","amount":50,"due_date":"2024-01-01"}`, "7", nil)

	rr := call(h.Stats, http.MethodGet, "/api/stats", "", "7", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["overdue_count"] != float64(1) || body["total"] != float64(1) {
		t.Fatalf("stats=%v", body)
	}
}

func TestDeletePayment(t *testing.T) {
	h, store := newTestHandlers()
	rr := call(h.CreatePayment, http.MethodPost, "/api/payments", `{"title":"Luz","amount":50,"due_date":"2024-01-01"}`, "7", nil)
	vars := map[string]string{"id": decodeBody(t, rr)["id"].(string)}

	if rr := call(h.DeletePayment, http.MethodDelete, "/", "", "7", vars); rr.Code != http.StatusNoContent {
		t.Fatalf("status=%d", rr.Code)
	}
	if len(store.recs) != 0 {
		t.Fatalf("record not deleted")
	}
	if rr := call(h.DeletePayment, http.MethodDelete, "/", "", "7", vars); rr.Code != http.StatusNotFound {
		t.Fatalf("second delete status=%d want 404", rr.Code)
	}
}

func TestExport_withoutStorage(t *testing.T) {
	h, _ := newTestHandlers()
	if rr := call(h.Export, http.MethodPost, "/api/exports", "", "7", nil); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d want 503", rr.Code)
	}
}

func TestParseDate(t *testing.T) {
	for _, s := range []string{"2024-01-05", "2024-01-05T00:00:00Z"} {
		got, err := parseDate(s)
		if err != nil || !got.Equal(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)) {
			t.Fatalf("parseDate(%q)=%v,%v", s, got, err)
		}
	}
	if _, err := parseDate("05/01/2024"); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestImport_rejectsBadRequests(t *testing.T) {
	h, _ := newTestHandlers()
	cases := []string{
		`{"file_path":""}`,
		`{"file_path":"s3://finance/x.csv","type":"invoices"}`,
	}
	for _, body := range cases {
		if rr := call(h.Import, http.MethodPost, "/api/imports", body, "7", nil); rr.Code != http.StatusBadRequest {
			t.Fatalf("body %s: status=%d want 400", body, rr.Code)
		}
	}
}

func TestWriteError_mapping(t *testing.T) {
	h, _ := newTestHandlers()
	cases := []struct {
		err  error
		want int
	}{
		{apperrors.Validation("amount", "bad"), http.StatusBadRequest},
		{&apperrors.InvalidStateError{ID: "1", Status: "paid", Action: "settle"}, http.StatusConflict},
		{&apperrors.NotFoundError{ID: "1"}, http.StatusNotFound},
		{&apperrors.StoreError{Op: "update", Err: errors.New("x")}, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		rr := httptest.NewRecorder()
		h.writeError(rr, "TEST", c.err)
		if rr.Code != c.want {
			t.Fatalf("%v: status=%d want %d", c.err, rr.Code, c.want)
		}
	}
}

func withImportRecords(h *Handlers, recs map[string]importitems.Record) {
	h.FindImport = func(_ context.Context, id string) (importitems.Record, error) {
		rec, ok := recs[id]
		if !ok {
			return importitems.Record{}, &apperrors.NotFoundError{ID: id, Kind: "import record"}
		}
		return rec, nil
	}
}

func TestImportRecords_scopedToOwner(t *testing.T) {
	h, _ := newTestHandlers()
	owner := "7"
	withImportRecords(h, map[string]importitems.Record{
		"mine":   {ID: "mine", UserID: &owner, Status: importitems.StatusDone, Count: 3},
		"orphan": {ID: "orphan", Status: importitems.StatusDone},
	})

	rr := call(h.ImportStatus, http.MethodGet, "/api/imports/mine", "", "7", map[string]string{"id": "mine"})
	if rr.Code != http.StatusOK {
		t.Fatalf("owner status=%d body=%s", rr.Code, rr.Body.String())
	}
	if got := decodeBody(t, rr)["count"]; got != float64(3) {
		t.Fatalf("count=%v want 3", got)
	}

	for _, tc := range []struct{ uid, id string }{
		{"8", "mine"},
		{"7", "orphan"},
		{"7", "missing"},
	} {
		rr := call(h.ImportStatus, http.MethodGet, "/api/imports/"+tc.id, "", tc.uid, map[string]string{"id": tc.id})
		if rr.Code != http.StatusNotFound {
			t.Fatalf("status uid=%s id=%s: code=%d want 404", tc.uid, tc.id, rr.Code)
		}

		body := fmt.Sprintf(`{"file_path":"s3://finance/x.csv","import_record_id":%q}`, tc.id)
		rr = call(h.Import, http.MethodPost, "/api/imports", body, tc.uid, nil)
		if rr.Code != http.StatusNotFound {
			t.Fatalf("import uid=%s id=%s: code=%d want 404", tc.uid, tc.id, rr.Code)
		}
	}
}
