package opener

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"finance_tracker/internal/ports"

	"github.com/sirupsen/logrus"
)

type HTTPOpener struct {
	Client *http.Client
	Logger *logrus.Logger
}

func NewHTTPOpener(cli *http.Client, logger *logrus.Logger) *HTTPOpener {
	if cli == nil {
		cli = &http.Client{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &HTTPOpener{Client: cli, Logger: logger}
}

func (h *HTTPOpener) Open(ctx context.Context, url string) (io.ReadCloser, ports.Meta, error) {
	h.Logger.Printf("[OPENER][HTTP][START] url=%q", url)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, ports.Meta{}, fmt.Errorf("build request: %w", err)
	}
	resp, err := h.Client.Do(req)
	if err != nil {
		h.Logger.Printf("[OPENER][HTTP][ERR] do request: %v", err)
		return nil, ports.Meta{}, err
	}

	ct := resp.Header.Get("Content-Type")
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		h.Logger.Printf("[OPENER][HTTP][ERR] status=%d content_type=%q", resp.StatusCode, ct)
		return nil, ports.Meta{}, fmt.Errorf("http status %d", resp.StatusCode)
	}

	size := resp.ContentLength
	if size < 0 {
		size = -1
	}
	h.Logger.Printf("[OPENER][HTTP][OK] content_type=%q size=%d", ct, size)
	return resp.Body, ports.Meta{
		Source:      "https",
		ContentType: ct,
		Size:        size,
	}, nil
}
