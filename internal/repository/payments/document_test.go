package payments

import (
	"testing"
	"time"

	"finance_tracker/internal/models"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestToTime_shapes(t *testing.T) {
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	cases := map[string]any{
		"datetime":  primitive.NewDateTimeFromTime(want),
		"timestamp": primitive.Timestamp{T: uint32(want.Unix())},
		"boxed":     bson.M{"seconds": want.Unix(), "nanoseconds": int32(0)},
		"firestore": map[string]any{"_seconds": float64(want.Unix()), "_nanoseconds": float64(0)},
		"boxed_d":   primitive.D{{Key: "seconds", Value: want.Unix()}},
		"date":      "2024-03-15",
		"rfc3339":   "2024-03-15T00:00:00Z",
		"native":    want.In(time.FixedZone("PET", -5*3600)),
	}
	for name, v := range cases {
		got, ok := toTime(v)
		if !ok {
			t.Fatalf("%s: not parsed", name)
		}
		if !got.Equal(want) {
			t.Fatalf("%s: got %s want %s", name, got, want)
		}
	}
	if _, ok := toTime("next tuesday"); ok {
		t.Fatalf("garbage string parsed as a date")
	}
}

func TestToDecimal_shapes(t *testing.T) {
	d128, _ := primitive.ParseDecimal128("120.50")
	cases := map[string]any{
		"decimal128": d128,
		"double":     120.5,
		"string":     "120.50",
		"comma":      "120,50",
	}
	want := decimal.RequireFromString("120.5")
	for name, v := range cases {
		got, ok := toDecimal(v)
		if !ok || !got.Equal(want) {
			t.Fatalf("%s: got %s ok=%v", name, got, ok)
		}
	}
	if got, ok := toDecimal(int32(300)); !ok || !got.Equal(decimal.NewFromInt(300)) {
		t.Fatalf("int32: got %s", got)
	}
	if _, ok := toDecimal(""); ok {
		t.Fatalf("empty string should not parse")
	}
}

func TestFromDoc_legacyDocument(t *testing.T) {
	oid := primitive.NewObjectID()
	raw := bson.M{
		"_id":            oid,
		"userId":         "u1",
		"title":          "Alquiler",
		"amount":         "850",
		"dueDate":        bson.M{"seconds": time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC).Unix(), "nanoseconds": 0},
		"category":       "desconocida",
		"priority":       "urgent",
		"es_recurrente":  true,
		"frecuencia":     "trimestral",
		"status":         "pending",
		"tags":           "casa, fijo",
		"paymentHistory": primitive.A{bson.M{"id": "h1", "amount": 100.0, "date": "2024-04-01", "method": "cheque"}},
	}

	p := fromDoc(raw)

	if p.ID != oid.Hex() || p.UserID != "u1" {
		t.Fatalf("identity: %q %q", p.ID, p.UserID)
	}
	if !p.Amount.Equal(decimal.NewFromInt(850)) {
		t.Fatalf("amount: %s", p.Amount)
	}
	if !p.DueDate.Equal(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("due: %s", p.DueDate)
	}
	if p.Category != models.DefaultCategory || p.Priority != models.PriorityMedium {
		t.Fatalf("enum fallback: %q %q", p.Category, p.Priority)
	}
	if !p.Recurring || p.RecurringType != models.RecurringQuarterly {
		t.Fatalf("recurrence: %v %q", p.Recurring, p.RecurringType)
	}
	if len(p.Tags) != 2 || p.Tags[1] != "fijo" {
		t.Fatalf("tags: %v", p.Tags)
	}
	if len(p.PaymentHistory) != 1 || !p.PaymentHistory[0].Amount.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("history: %+v", p.PaymentHistory)
	}
	if p.PaymentMethod != models.DefaultPaymentMethod {
		t.Fatalf("method: %q", p.PaymentMethod)
	}
	if !p.TotalAmount.Equal(p.Amount) {
		t.Fatalf("total: %s", p.TotalAmount)
	}
}

func TestFieldsDoc_readsBack(t *testing.T) {
	orig := decimal.RequireFromString("1200")
	paid := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	rec := models.Payment{
		Title:          "Préstamo",
		Amount:         decimal.RequireFromString("800"),
		DueDate:        time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Category:       "prestamos",
		Priority:       models.PriorityHigh,
		PaymentMethod:  "transferencia",
		IsDebt:         true,
		OriginalAmount: &orig,
		Status:         models.StatusPending,
		PaymentHistory: []models.HistoryEntry{{ID: "h1", Amount: decimal.RequireFromString("400"), Date: paid}},
		TotalPaid:      decimal.RequireFromString("400"),
	}
	rec.LastPaymentDate = &paid

	m := make(map[string]any)
	for _, e := range fieldsDoc(rec) {
		m[e.Key] = e.Value
	}
	// the driver hands embedded history documents back as maps
	hist := primitive.A{}
	for _, h := range m["payment_history"].(bson.A) {
		entry := make(map[string]any)
		for _, e := range h.(bson.D) {
			entry[e.Key] = e.Value
		}
		hist = append(hist, entry)
	}
	m["payment_history"] = hist

	got := fromDoc(m)
	if got.Title != rec.Title || !got.Amount.Equal(rec.Amount) || !got.DueDate.Equal(rec.DueDate) {
		t.Fatalf("core fields: %+v", got)
	}
	if got.OriginalAmount == nil || !got.OriginalAmount.Equal(orig) {
		t.Fatalf("original amount: %v", got.OriginalAmount)
	}
	if got.PaidAmount != nil || got.PaidDate != nil {
		t.Fatalf("nil pointers should stay nil")
	}
	if got.LastPaymentDate == nil || !got.LastPaymentDate.Equal(paid) {
		t.Fatalf("last payment date: %v", got.LastPaymentDate)
	}
	if len(got.PaymentHistory) != 1 || got.PaymentHistory[0].ID != "h1" {
		t.Fatalf("history: %+v", got.PaymentHistory)
	}
}
