package repository

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func TestSplitToken(t *testing.T) {
	sum := sha256.Sum256([]byte("s3cr3t"))
	want := hex.EncodeToString(sum[:])

	id, secret, hash := SplitToken(" 17|s3cr3t ")
	if id == nil || *id != 17 || secret != "s3cr3t" || hash != want {
		t.Fatalf("got id=%v secret=%q hash=%q", id, secret, hash)
	}

	id, secret, hash = SplitToken("s3cr3t")
	if id != nil || secret != "s3cr3t" || hash != want {
		t.Fatalf("bare token: id=%v secret=%q", id, secret)
	}

	id, secret, _ = SplitToken("abc|s3cr3t")
	if id != nil || secret != "s3cr3t" {
		t.Fatalf("non-numeric prefix: id=%v secret=%q", id, secret)
	}
}
