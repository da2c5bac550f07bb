package opener

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestParseLocation(t *testing.T) {
	cases := []struct {
		in      string
		want    Location
		wantErr bool
	}{
		{"https://files.example.com/p.csv", Location{URL: "https://files.example.com/p.csv"}, false},
		{"s3://finance/imports/p.xlsx", Location{Bucket: "finance", Key: "imports/p.xlsx"}, false},
		{"imports/p.csv", Location{Bucket: "default", Key: "imports/p.csv"}, false},
		{"/imports/../p.csv", Location{Bucket: "default", Key: "p.csv"}, false},
		{"s3://finance/", Location{}, true},
		{"s3:///key", Location{}, true},
		{"  ", Location{}, true},
	}
	for _, tc := range cases {
		got, err := ParseLocation(tc.in, "default")
		if (err != nil) != tc.wantErr {
			t.Fatalf("%q: err=%v wantErr=%v", tc.in, err, tc.wantErr)
		}
		if got != tc.want {
			t.Fatalf("%q: got %+v want %+v", tc.in, got, tc.want)
		}
	}
	if _, err := ParseLocation("key.csv", ""); err == nil {
		t.Fatalf("bare key without default bucket should fail")
	}
}

func TestCompoundOpener_http(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.csv" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/csv")
		_, _ = io.WriteString(w, "title,amount\nLuz,10\n")
	}))
	defer srv.Close()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	op := NewCompoundOpener(NewHTTPOpener(srv.Client(), logger), nil, "")

	rc, meta, err := op.Open(context.Background(), srv.URL+"/p.csv")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "title,amount\nLuz,10\n" || meta.ContentType != "text/csv" || meta.Source != "https" {
		t.Fatalf("body=%q meta=%+v", body, meta)
	}

	if _, _, err := op.Open(context.Background(), srv.URL+"/missing.csv"); err == nil {
		t.Fatalf("expected error for 404")
	}
	if _, _, err := op.Open(context.Background(), "s3://bucket/key.csv"); err == nil {
		t.Fatalf("expected error without s3 opener")
	}
}
