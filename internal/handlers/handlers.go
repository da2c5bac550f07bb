package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"finance_tracker/internal/apperrors"
	"finance_tracker/internal/config/connections/mongo"
	"finance_tracker/internal/config/connections/postgres"
	"finance_tracker/internal/config/connections/redis"
	"finance_tracker/internal/config/connections/s3"
	"finance_tracker/internal/ports"
	importitems "finance_tracker/internal/repository/imports"
	"finance_tracker/internal/services/exporter"
	"finance_tracker/internal/services/importer/processors"
	"finance_tracker/internal/services/metrics"
	"finance_tracker/internal/services/payments"
	auth "finance_tracker/internal/transport/auth"

	"github.com/sirupsen/logrus"
)

type Handlers struct {
	Postgres *postgres.Postgres
	Mongo    *mongo.Mongo
	S3       *s3.S3
	Redis    *redis.Redis
	HTTP     *http.Client

	Payments *payments.Service
	Calc     metrics.Calculator
	Exporter *exporter.Exporter
	Registry map[string]ports.Processor

	FindImport func(ctx context.Context, id string) (importitems.Record, error)

	Logger *logrus.Logger
	Now    func() time.Time
}

func New(pg *postgres.Postgres, mg *mongo.Mongo, s3c *s3.S3, rd *redis.Redis, svc *payments.Service, calc metrics.Calculator, logger *logrus.Logger) *Handlers {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	reg := processors.Registry(
		processors.NewPaymentsProcessor(svc, importitems.ItemLogger{Mongo: mg, Logger: logger}, logger),
	)

	var exp *exporter.Exporter
	if s3c != nil {
		exp = exporter.New(s3c, calc, logger)
	}

	h := &Handlers{
		Postgres: pg,
		Mongo:    mg,
		S3:       s3c,
		Redis:    rd,
		HTTP:     &http.Client{Timeout: 5 * time.Minute},
		Payments: svc,
		Calc:     calc,
		Exporter: exp,
		Registry: reg,
		Logger:   logger,
		Now:      time.Now,
	}
	h.FindImport = func(ctx context.Context, id string) (importitems.Record, error) {
		return importitems.FindImportRecordByID(ctx, mg, id)
	}
	return h
}

func (h *Handlers) JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to HTTP statuses.
func (h *Handlers) writeError(w http.ResponseWriter, tag string, err error) {
	body := map[string]any{"error": err.Error()}
	code := http.StatusInternalServerError

	var se *apperrors.StoreError
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		code = http.StatusBadRequest
	case errors.Is(err, apperrors.ErrInvalidState):
		code = http.StatusConflict
	case errors.Is(err, apperrors.ErrNotFound):
		code = http.StatusNotFound
	case errors.As(err, &se):
		code = http.StatusBadGateway
		if se.Created > 0 {
			body["created"] = se.Created
		}
	}

	if code >= http.StatusInternalServerError {
		h.Logger.Printf("[%s][ERR] %v", tag, err)
	} else {
		h.Logger.Debugf("[%s][REJECT] %d %v", tag, code, err)
	}
	h.JSON(w, code, body)
}

func (h *Handlers) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	uid, err := auth.GetUserID(r.Context())
	if err != nil {
		h.JSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return "", false
	}
	return uid, true
}

func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		h.JSON(w, http.StatusBadRequest, map[string]string{"error": "bad JSON: " + err.Error()})
		return false
	}
	return true
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// Date accepts YYYY-MM-DD or RFC3339 in JSON bodies.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return apperrors.Validation("date", "must be a string")
	}
	t, err := parseDate(s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation("2006-01-02", s, time.UTC); err == nil {
		return t, nil
	}
	return time.Time{}, apperrors.Validation("date", "expected YYYY-MM-DD or RFC3339, got "+s)
}

func datePtr(d *Date) *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}
