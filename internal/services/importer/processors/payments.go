package processors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"finance_tracker/internal/models"
	"finance_tracker/internal/ports"
	importitems "finance_tracker/internal/repository/imports"
	"finance_tracker/internal/services/payments"
	"finance_tracker/internal/utils"

	"github.com/sirupsen/logrus"
)

// PaymentCreator is the part of the payments service the importer needs.
type PaymentCreator interface {
	Create(ctx context.Context, userID string, in payments.CreateInput) (models.Payment, error)
}

type PaymentsProcessor struct {
	Creator PaymentCreator
	Items   importitems.ItemLogger
	Logger  *logrus.Logger
}

func NewPaymentsProcessor(creator PaymentCreator, items importitems.ItemLogger, logger *logrus.Logger) *PaymentsProcessor {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &PaymentsProcessor{Creator: creator, Items: items, Logger: logger}
}

func (p *PaymentsProcessor) Type() string { return importitems.ModelPayments }

// ProcessBatch creates one payment per row. A bad row is recorded as failed
// and the batch moves on; only a missing user or creator aborts it.
func (p *PaymentsProcessor) ProcessBatch(ctx context.Context, batch []map[string]string) error {
	if p.Creator == nil {
		return errors.New("payments creator not available")
	}
	userID := ctxString(ctx, ports.CtxUserID)
	if userID == "" {
		return errors.New("import has no user")
	}
	importRecordID := ctxString(ctx, ports.CtxImportRecordID)

	p.Logger.Printf("[PROC][payments][START] rows=%d import_record_id=%s", len(batch), importRecordID)

	var created, failed int
	for _, m := range batch {
		in, err := rowToInput(m)
		if err != nil {
			failed++
			p.Items.Fail(ctx, importitems.LogParams{
				ImportRecordID: importRecordID,
				ModelType:      importitems.ModelPayments,
				Payload:        m,
				Errors:         err.Error(),
			})
			continue
		}

		rec, err := p.Creator.Create(ctx, userID, in)
		if err != nil {
			failed++
			p.Logger.Printf("[PROC][payments][ROW][ERR] title=%q err=%v", in.Title, err)
			p.Items.Fail(ctx, importitems.LogParams{
				ImportRecordID: importRecordID,
				ModelType:      importitems.ModelPayments,
				Payload:        m,
				Errors:         err.Error(),
			})
			continue
		}

		created++
		p.Items.Done(ctx, importitems.LogParams{
			ImportRecordID: importRecordID,
			ModelType:      importitems.ModelPayments,
			ModelID:        rec.ID,
			Payload:        m,
		})
	}

	p.Logger.Printf("[PROC][payments][DONE] created=%d failed=%d", created, failed)
	return nil
}

func rowToInput(m map[string]string) (payments.CreateInput, error) {
	v := func(key string) string { return strings.TrimSpace(m[key]) }

	title := v("title")
	if title == "" {
		return payments.CreateInput{}, errors.New("missing title")
	}
	amount, err := parseAmount(v("amount"))
	if err != nil {
		return payments.CreateInput{}, fmt.Errorf("invalid amount %q", v("amount"))
	}
	due := parseDateStrict(v("due_date"))
	if due == nil {
		return payments.CreateInput{}, fmt.Errorf("invalid due_date %q", v("due_date"))
	}

	in := payments.CreateInput{
		Title:         title,
		Amount:        amount,
		DueDate:       *due,
		Description:   v("description"),
		Category:      firstNonEmpty(v("category"), models.DefaultCategory),
		Priority:      v("priority"),
		Provider:      v("provider"),
		Tags:          utils.ParseTags(v("tags")),
		PaymentMethod: firstNonEmpty(v("payment_method"), models.DefaultPaymentMethod),
		ReminderDays:  parseIntOr(v("reminder_days"), models.DefaultReminderDays),
		IsDebt:        parseBool(v("is_debt")),
		IncludesTax:   parseBool(v("includes_tax")),
		Recurring:     parseBool(v("recurring")),
		RecurringType: v("recurring_type"),
	}

	if in.IsDebt {
		if in.OriginalAmount, err = parseDecimalPtr(v("original_amount")); err != nil {
			return payments.CreateInput{}, fmt.Errorf("invalid original_amount %q", v("original_amount"))
		}
		if in.InterestRate, err = parseDecimalPtr(v("interest_rate")); err != nil {
			return payments.CreateInput{}, fmt.Errorf("invalid interest_rate %q", v("interest_rate"))
		}
		if in.MinimumPayment, err = parseDecimalPtr(v("minimum_payment")); err != nil {
			return payments.CreateInput{}, fmt.Errorf("invalid minimum_payment %q", v("minimum_payment"))
		}
	}
	return in, nil
}

func ctxString(ctx context.Context, key any) string {
	if s, ok := ctx.Value(key).(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}
