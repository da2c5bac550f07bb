package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"finance_tracker/internal/repository"

	"github.com/sirupsen/logrus"
)

type fakeRepo struct {
	tokens map[string]*repository.PersonalAccessToken
	seen   []string
}

func (f *fakeRepo) FindTokenByPlainToken(ctx context.Context, plainToken string) (*repository.PersonalAccessToken, error) {
	f.seen = append(f.seen, plainToken)
	if p, ok := f.tokens[plainToken]; ok {
		return p, nil
	}
	return nil, errors.New("token not found")
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func serve(t *testing.T, fr *fakeRepo, req *http.Request) (*httptest.ResponseRecorder, string) {
	t.Helper()
	got := ""
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uid, err := GetUserID(r.Context())
		if err == nil {
			got = uid
		}
		w.WriteHeader(http.StatusOK)
	})
	rr := httptest.NewRecorder()
	TokenMiddleware(fr, quietLogger())(handler).ServeHTTP(rr, req)
	return rr, got
}

func TestTokenMiddleware_setsUserID(t *testing.T) {
	fr := &fakeRepo{tokens: map[string]*repository.PersonalAccessToken{
		"1|mytoken": {ID: 1, UserID: 123},
	}}

	req := httptest.NewRequest(http.MethodGet, "/api/payments", nil)
	req.Header.Set("Authorization", "Bearer 1|mytoken")
	rr, got := serve(t, fr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", rr.Code)
	}
	if got != "123" {
		t.Fatalf("expected user id 123, got %q", got)
	}
}

func TestTokenMiddleware_fallsBackToQuery(t *testing.T) {
	fr := &fakeRepo{tokens: map[string]*repository.PersonalAccessToken{
		"good": {ID: 2, UserID: 7},
	}}

	req := httptest.NewRequest(http.MethodGet, "/api/stats?token=good", nil)
	req.Header.Set("Authorization", "Bearer stale")
	rr, got := serve(t, fr, req)

	if rr.Code != http.StatusOK || got != "7" {
		t.Fatalf("code=%d uid=%q", rr.Code, got)
	}
	if len(fr.seen) != 2 {
		t.Fatalf("expected header then query lookup, got %v", fr.seen)
	}
}

func TestTokenMiddleware_blockWhenMissing(t *testing.T) {
	fr := &fakeRepo{}
	req := httptest.NewRequest(http.MethodPost, "/api/payments", nil)
	rr, _ := serve(t, fr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 Unauthorized, got %d", rr.Code)
	}
	if len(fr.seen) != 0 {
		t.Fatalf("no lookup expected without a token")
	}
}

func TestTokenMiddleware_rejectsExpired(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	fr := &fakeRepo{tokens: map[string]*repository.PersonalAccessToken{
		"old": {ID: 3, UserID: 9, ExpiresAt: &past},
	}}
	req := httptest.NewRequest(http.MethodGet, "/api/payments", nil)
	req.Header.Set("Authorization", "Bearer old")
	rr, got := serve(t, fr, req)
	if rr.Code != http.StatusUnauthorized || got != "" {
		t.Fatalf("code=%d uid=%q", rr.Code, got)
	}
}

func TestTokenMiddleware_allowsOptions(t *testing.T) {
	fr := &fakeRepo{}
	reached := false
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/imports/upload", nil)
	rr := httptest.NewRecorder()
	TokenMiddleware(fr, quietLogger())(handler).ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 No Content, got %d", rr.Code)
	}
	if !reached {
		t.Fatalf("expected handler to be reached on OPTIONS")
	}
}
