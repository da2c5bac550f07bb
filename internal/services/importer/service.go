package importer

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"finance_tracker/internal/ports"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

type Request struct {
	Type           string
	FilePath       string
	BatchSize      int
	ImportRecordID string
	UserID         string
}

type Result struct {
	Source        string
	FilePath      string
	Format        string
	RowsProcessed int
	SHA256        string
	ContentType   string
	Bucket        string
	Key           string
	SizeBytes     int64
}

type Service struct {
	Opener     ports.FileOpener
	Processors map[string]ports.Processor
	DefaultBS  int
	Logger     *logrus.Logger
}

func NewService(opener ports.FileOpener, registry map[string]ports.Processor, defaultBatch int, logger *logrus.Logger) *Service {
	if defaultBatch <= 0 {
		defaultBatch = 1000
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{Opener: opener, Processors: registry, DefaultBS: defaultBatch, Logger: logger}
}

func (s *Service) Import(ctx context.Context, req Request) (Result, error) {
	t0 := time.Now()
	ctx = context.WithValue(ctx, ports.CtxImportRecordID, req.ImportRecordID)
	ctx = context.WithValue(ctx, ports.CtxUserID, req.UserID)
	s.Logger.Printf("[IMP][START] type=%q path=%q batch_size=%d import_record_id=%q user=%q",
		req.Type, req.FilePath, req.BatchSize, req.ImportRecordID, req.UserID)

	proc, ok := s.Processors[req.Type]
	if !ok {
		s.Logger.Printf("[IMP][ERR] no processor for type=%q", req.Type)
		return Result{}, errors.New("no processor for type: " + req.Type)
	}

	rc, meta, err := s.Opener.Open(ctx, req.FilePath)
	if err != nil {
		s.Logger.Printf("[IMP][ERR] open: %v", err)
		return Result{}, err
	}
	defer rc.Close()

	hasher := sha256.New()
	br := bufio.NewReader(io.TeeReader(rc, hasher))

	format := detectFormat(req.FilePath, meta.ContentType)
	if format == "" {
		format = sniffFormat(br)
	}
	s.Logger.Printf("[IMP] source=%s content_type=%q size=%d format=%s", meta.Source, meta.ContentType, meta.Size, format)

	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = s.DefaultBS
	}
	b := &batcher{proc: proc, size: batchSize, logger: s.Logger}

	var readErr error
	if format == FormatXLSX {
		readErr = s.streamXLSXFirstSheet(ctx, br, b)
	} else {
		readErr = s.streamCSV(ctx, br, b)
	}
	if readErr != nil {
		s.Logger.Printf("[IMP][ERR] read pipeline fmt=%s rows=%d: %v", format, b.total, readErr)
		return Result{RowsProcessed: b.total, Format: format}, readErr
	}

	// drain so the digest covers the whole file
	_, _ = io.Copy(io.Discard, br)
	sum := hex.EncodeToString(hasher.Sum(nil))
	s.Logger.Printf("[IMP][DONE] type=%q fmt=%s rows=%d batches=%d sha256=%s duration=%s",
		req.Type, format, b.total, b.batches, sum, time.Since(t0))

	return Result{
		Source:        meta.Source,
		FilePath:      req.FilePath,
		Format:        format,
		RowsProcessed: b.total,
		SHA256:        sum,
		ContentType:   meta.ContentType,
		Bucket:        meta.Bucket,
		Key:           meta.Key,
		SizeBytes:     meta.Size,
	}, nil
}

// batcher buffers rows and hands them to the processor in fixed-size batches.
type batcher struct {
	proc    ports.Processor
	size    int
	logger  *logrus.Logger
	header  []string
	batch   []map[string]string
	total   int
	batches int
}

func (b *batcher) add(ctx context.Context, cols []string) error {
	row := toMap(b.header, cols)
	if isBlank(row) {
		return nil
	}
	b.batch = append(b.batch, row)
	if len(b.batch) >= b.size {
		return b.flush(ctx)
	}
	return nil
}

func (b *batcher) flush(ctx context.Context) error {
	if len(b.batch) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	b.logger.Debugf("[IMP] send batch #%d size=%d total_so_far=%d", b.batches+1, len(b.batch), b.total)
	if err := b.proc.ProcessBatch(ctx, b.batch); err != nil {
		return fmt.Errorf("batch %d: %w", b.batches+1, err)
	}
	b.total += len(b.batch)
	b.batches++
	b.batch = make([]map[string]string, 0, b.size)
	return nil
}

func (s *Service) streamCSV(ctx context.Context, r io.Reader, b *batcher) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return err
	}
	b.header = normalizeHeader(header)
	s.Logger.Printf("[IMP][CSV] header=%v", b.header)

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.Logger.Printf("[IMP][CSV][WARN] read row err: %v", err)
			continue
		}
		if err := b.add(ctx, record); err != nil {
			return err
		}
	}
	return b.flush(ctx)
}

func (s *Service) streamXLSXFirstSheet(ctx context.Context, r io.Reader, b *batcher) error {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return errors.New("xlsx has no sheets")
	}
	sheet := sheets[0]

	rows, err := f.Rows(sheet)
	if err != nil {
		return err
	}
	defer rows.Close()

	if !rows.Next() {
		return rows.Error()
	}
	header, err := rows.Columns()
	if err != nil {
		return err
	}
	b.header = normalizeHeader(header)
	s.Logger.Printf("[IMP][XLSX] sheet=%q header=%v", sheet, b.header)

	for rows.Next() {
		cols, err := rows.Columns()
		if err != nil {
			s.Logger.Printf("[IMP][XLSX][WARN] read row err: %v", err)
			continue
		}
		if err := b.add(ctx, cols); err != nil {
			return err
		}
	}
	if err := rows.Error(); err != nil {
		return err
	}
	return b.flush(ctx)
}

func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\uFEFF")
		out[i] = strings.ToLower(strings.Join(strings.Fields(h), "_"))
	}
	return out
}

func toMap(header []string, row []string) map[string]string {
	m := make(map[string]string, len(header))
	for i, key := range header {
		if key == "" {
			continue
		}
		val := ""
		if i < len(row) {
			val = row[i]
		}
		m[key] = strings.TrimSpace(val)
	}
	return m
}

func isBlank(row map[string]string) bool {
	for _, v := range row {
		if v != "" {
			return false
		}
	}
	return true
}

func detectFormat(filePath, contentType string) string {
	p := filePath
	if u, err := url.Parse(filePath); err == nil && u != nil && u.Path != "" {
		p = u.Path
	}
	switch strings.ToLower(strings.TrimPrefix(path.Ext(p), ".")) {
	case "xlsx":
		return FormatXLSX
	case "csv":
		return FormatCSV
	}
	med, _, _ := mime.ParseMediaType(contentType)
	switch med {
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return FormatXLSX
	case "text/csv", "application/csv", "text/plain":
		return FormatCSV
	}
	return ""
}

// sniffFormat looks for the zip signature every xlsx file starts with.
func sniffFormat(br *bufio.Reader) string {
	head, _ := br.Peek(4)
	if string(head) == "PK\x03\x04" {
		return FormatXLSX
	}
	return FormatCSV
}
