package exporter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"finance_tracker/internal/models"
	"finance_tracker/internal/services/metrics"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

const (
	SheetName  = "Payments"
	LinkTTL    = 15 * time.Minute
	xlsxCTType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var header = []any{
	"Title", "Category", "Priority", "Status", "Due date",
	"Amount", "Total with tax", "Paid amount", "Total paid",
}

// Bucket is the slice of the S3 connection the exporter writes through.
type Bucket interface {
	PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	Location(key string) string
}

type Result struct {
	Path string    `json:"path"`
	URL  string    `json:"url"`
	Rows int       `json:"rows"`
	At   time.Time `json:"created_at"`
}

type Exporter struct {
	Bucket Bucket
	Calc   metrics.Calculator
	Logger *logrus.Logger
}

func New(bucket Bucket, calc metrics.Calculator, logger *logrus.Logger) *Exporter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Exporter{Bucket: bucket, Calc: calc, Logger: logger}
}

// Export writes records as one sheet and uploads it under the user's prefix.
func (e *Exporter) Export(ctx context.Context, userID string, records []models.Payment, now time.Time) (Result, error) {
	body, err := e.Build(records, now)
	if err != nil {
		return Result{}, fmt.Errorf("build xlsx: %w", err)
	}

	key := fmt.Sprintf("exports/%s/%d.xlsx", userID, now.UnixNano())
	if err := e.Bucket.PutObject(ctx, key, bytes.NewReader(body), int64(len(body)), xlsxCTType); err != nil {
		e.Logger.Printf("[EXPORT][ERR] put key=%s: %v", key, err)
		return Result{}, fmt.Errorf("upload export: %w", err)
	}

	link, err := e.Bucket.PresignGet(ctx, key, LinkTTL)
	if err != nil {
		e.Logger.Printf("[EXPORT][WARN] presign key=%s: %v", key, err)
	}

	e.Logger.Printf("[EXPORT][OK] user=%s rows=%d key=%s size=%d", userID, len(records), key, len(body))
	return Result{Path: e.Bucket.Location(key), URL: link, Rows: len(records), At: now}, nil
}

// Build renders records into an xlsx workbook.
func (e *Exporter) Build(records []models.Payment, now time.Time) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return nil, err
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return nil, err
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(SheetName, 1, 1, style)
	}

	for i, p := range records {
		paid := ""
		if p.PaidAmount != nil {
			paid = p.PaidAmount.StringFixed(2)
		}
		row := []any{
			p.Title,
			p.Category,
			string(p.Priority),
			string(e.Calc.StatusOf(p, now)),
			p.DueDate.Format("2006-01-02"),
			p.Amount.StringFixed(2),
			p.TotalAmount.StringFixed(2),
			paid,
			p.TotalPaid.StringFixed(2),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return nil, err
		}
	}
	_ = f.SetColWidth(SheetName, "A", "A", 32)

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
