package payments

import (
	"context"
	"time"

	"finance_tracker/internal/apperrors"
	"finance_tracker/internal/models"
	"finance_tracker/internal/ports"
	"finance_tracker/internal/services/lifecycle"
	"finance_tracker/internal/services/metrics"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type StatsCache interface {
	Get(ctx context.Context, userID string, now time.Time) (metrics.Stats, bool)
	Set(ctx context.Context, userID string, now time.Time, st metrics.Stats)
	Invalidate(ctx context.Context, userID string, now time.Time)
}

// Service runs user actions against the store: it loads a snapshot, asks the
// engine for the new state and writes the result back in order.
type Service struct {
	Store  ports.PaymentStore
	Engine *lifecycle.Engine
	Calc   metrics.Calculator
	Cache  StatsCache
	Logger *logrus.Logger
	Now    func() time.Time
}

func NewService(store ports.PaymentStore, engine *lifecycle.Engine, calc metrics.Calculator, cache StatsCache, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{
		Store:  store,
		Engine: engine,
		Calc:   calc,
		Cache:  cache,
		Logger: logger,
		Now:    time.Now,
	}
}

func (s *Service) invalidate(ctx context.Context, userID string) {
	if s.Cache != nil {
		s.Cache.Invalidate(ctx, userID, s.Now())
	}
}

func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (models.Payment, error) {
	if err := in.Validate(); err != nil {
		return models.Payment{}, err
	}
	rec := in.build(userID, s.Engine.TaxRate)

	id, err := s.Store.Create(ctx, userID, rec)
	if err != nil {
		s.Logger.Printf("[PAYMENTS][CREATE][ERR] user=%s title=%q err=%v", userID, rec.Title, err)
		return models.Payment{}, apperrors.Store("create", err)
	}
	rec.ID = id
	s.invalidate(ctx, userID)

	s.Logger.Printf("[PAYMENTS][CREATE][OK] user=%s id=%s amount=%s due=%s",
		userID, id, rec.Amount.StringFixed(2), rec.DueDate.Format("2006-01-02"))
	return rec, nil
}

func (s *Service) Get(ctx context.Context, userID, id string) (models.Payment, error) {
	rec, err := s.Store.Get(ctx, userID, id)
	if err != nil {
		return models.Payment{}, apperrors.Store("get", err)
	}
	return rec, nil
}

func (s *Service) Edit(ctx context.Context, userID, id string, patch EditInput) (models.Payment, error) {
	rec, err := s.Get(ctx, userID, id)
	if err != nil {
		return models.Payment{}, err
	}
	out, err := patch.apply(rec, s.Engine.TaxRate)
	if err != nil {
		return models.Payment{}, err
	}

	if err := s.Store.Update(ctx, userID, id, out); err != nil {
		s.Logger.Printf("[PAYMENTS][EDIT][ERR] user=%s id=%s err=%v", userID, id, err)
		return models.Payment{}, apperrors.Store("update", err)
	}
	s.invalidate(ctx, userID)
	return out, nil
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if err := s.Store.Delete(ctx, userID, id); err != nil {
		s.Logger.Printf("[PAYMENTS][DELETE][ERR] user=%s id=%s err=%v", userID, id, err)
		return apperrors.Store("delete", err)
	}
	s.invalidate(ctx, userID)
	s.Logger.Printf("[PAYMENTS][DELETE][OK] user=%s id=%s", userID, id)
	return nil
}

// List returns the user's records filtered and sorted for display.
func (s *Service) List(ctx context.Context, userID string, f metrics.Filter, sortKey string) ([]models.Payment, error) {
	records, err := s.Store.List(ctx, userID)
	if err != nil {
		return nil, apperrors.Store("list", err)
	}
	return s.Calc.View(records, f, sortKey, s.Now())
}

func (s *Service) History(ctx context.Context, userID, id string) ([]models.HistoryEntry, error) {
	rec, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if rec.PaymentHistory == nil {
		return []models.HistoryEntry{}, nil
	}
	return rec.PaymentHistory, nil
}

func (s *Service) Stats(ctx context.Context, userID string) (metrics.Stats, error) {
	now := s.Now()
	if s.Cache != nil {
		if st, ok := s.Cache.Get(ctx, userID, now); ok {
			return st, nil
		}
	}

	records, err := s.Store.List(ctx, userID)
	if err != nil {
		return metrics.Stats{}, apperrors.Store("list", err)
	}
	st := s.Calc.Aggregate(records, now)
	if s.Cache != nil {
		s.Cache.Set(ctx, userID, now, st)
	}
	return st, nil
}

func (s *Service) SettleFull(ctx context.Context, userID, id string, st models.Settlement) (lifecycle.Result, error) {
	rec, err := s.Get(ctx, userID, id)
	if err != nil {
		return lifecycle.Result{}, err
	}
	res, err := s.Engine.SettleFull(rec, st)
	if err != nil {
		return lifecycle.Result{}, err
	}
	return s.persist(ctx, userID, rec.ID, "SETTLE_FULL", res)
}

func (s *Service) SettlePartial(ctx context.Context, userID, id string, amount decimal.Decimal, st models.Settlement) (lifecycle.Result, error) {
	rec, err := s.Get(ctx, userID, id)
	if err != nil {
		return lifecycle.Result{}, err
	}
	res, err := s.Engine.SettlePartial(rec, amount, st)
	if err != nil {
		return lifecycle.Result{}, err
	}
	return s.persist(ctx, userID, rec.ID, "SETTLE_PARTIAL", res)
}

func (s *Service) ScheduleInstallments(ctx context.Context, userID, id string, amount decimal.Decimal, count int, start time.Time, st models.Settlement) (lifecycle.Result, error) {
	rec, err := s.Get(ctx, userID, id)
	if err != nil {
		return lifecycle.Result{}, err
	}
	res, err := s.Engine.ScheduleInstallments(rec, amount, count, start, st)
	if err != nil {
		return lifecycle.Result{}, err
	}
	return s.persist(ctx, userID, rec.ID, "INSTALLMENTS", res)
}

// persist writes the updated record, then the spawned occurrence, then each
// installment. Nothing is rolled back; a failure reports how many new
// records were already written.
func (s *Service) persist(ctx context.Context, userID, id, action string, res lifecycle.Result) (lifecycle.Result, error) {
	defer s.invalidate(ctx, userID)

	if err := s.Store.Update(ctx, userID, id, res.Updated); err != nil {
		s.Logger.Printf("[PAYMENTS][%s][ERR] update id=%s err=%v", action, id, err)
		return lifecycle.Result{}, apperrors.Store("update", err)
	}

	created := 0
	if res.Spawned != nil {
		newID, err := s.Store.Create(ctx, userID, *res.Spawned)
		if err != nil {
			s.Logger.Printf("[PAYMENTS][%s][ERR] create next occurrence parent=%s err=%v", action, id, err)
			return res, &apperrors.StoreError{Op: "create recurrence", Err: err}
		}
		res.Spawned.ID = newID
		created++
	}

	for i := range res.Installments {
		newID, err := s.Store.Create(ctx, userID, res.Installments[i])
		if err != nil {
			s.Logger.Printf("[PAYMENTS][%s][ERR] create installment %d/%d parent=%s created=%d err=%v",
				action, i+1, len(res.Installments), id, created, err)
			return res, &apperrors.StoreError{Op: "create installment", Created: created, Err: err}
		}
		res.Installments[i].ID = newID
		created++
	}

	s.Logger.WithFields(logrus.Fields{
		"user":    userID,
		"id":      id,
		"status":  res.Updated.Status,
		"created": created,
	}).Infof("[PAYMENTS][%s][OK]", action)
	return res, nil
}
