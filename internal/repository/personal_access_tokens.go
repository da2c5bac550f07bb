package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"

	"finance_tracker/internal/config/connections/postgres"

	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
)

var ErrTokenNotFound = errors.New("token not found")

type PersonalAccessToken struct {
	ID        int64
	TokenHash string
	UserID    int64
	Abilities string
	ExpiresAt *time.Time
}

const (
	tokenByIDQuery = `
        SELECT id, token, tokenable_id, abilities, expires_at
        FROM personal_access_tokens
        WHERE id = $1
          AND tokenable_type = $2
          AND (expires_at IS NULL OR expires_at > $3)
    `
	tokenByValueQuery = `
        SELECT id, token, tokenable_id, abilities, expires_at
        FROM personal_access_tokens
        WHERE tokenable_type = $1
          AND token IN ($2, $3)
          AND (expires_at IS NULL OR expires_at > $4)
        ORDER BY created_at DESC
        LIMIT 1
    `
	touchTokenQuery = `UPDATE personal_access_tokens SET last_used_at = $2 WHERE id = $1`
)

// PersonalAccessTokenRepository resolves API tokens issued by the identity
// service. Tokens are either "<id>|<secret>" or a bare secret; the table
// stores sha256(secret).
type PersonalAccessTokenRepository struct {
	pg            *postgres.Postgres
	tokenableType string
	logger        *logrus.Logger
}

func NewPersonalAccessTokenRepository(pg *postgres.Postgres, tokenableType string, logger *logrus.Logger) *PersonalAccessTokenRepository {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &PersonalAccessTokenRepository{pg: pg, tokenableType: tokenableType, logger: logger}
}

// SplitToken separates the optional numeric id prefix from the secret and
// returns the secret's sha256 hex digest.
func SplitToken(plain string) (id *int64, secret, hash string) {
	secret = strings.TrimSpace(plain)
	if idx := strings.Index(secret, "|"); idx > 0 {
		if n, err := strconv.ParseInt(secret[:idx], 10, 64); err == nil {
			id = &n
		}
		secret = secret[idx+1:]
	}
	sum := sha256.Sum256([]byte(secret))
	return id, secret, hex.EncodeToString(sum[:])
}

func (r *PersonalAccessTokenRepository) FindTokenByPlainToken(ctx context.Context, plainToken string) (*PersonalAccessToken, error) {
	if strings.TrimSpace(plainToken) == "" {
		return nil, errors.New("empty token")
	}
	if r.pg == nil || r.pg.Pool == nil {
		return nil, errors.New("postgres not available")
	}

	tokenID, secret, hash := SplitToken(plainToken)
	now := time.Now()

	var pat PersonalAccessToken
	scan := func(row pgx.Row) error {
		return row.Scan(&pat.ID, &pat.TokenHash, &pat.UserID, &pat.Abilities, &pat.ExpiresAt)
	}

	if tokenID != nil {
		err := scan(r.pg.Pool.QueryRow(ctx, tokenByIDQuery, *tokenID, r.tokenableType, now))
		switch {
		case err == nil && (pat.TokenHash == hash || pat.TokenHash == secret):
			r.touch(ctx, pat.ID)
			return &pat, nil
		case err == nil:
			r.logger.Printf("[TOKEN][WARN] secret mismatch for id=%d", pat.ID)
		case !errors.Is(err, pgx.ErrNoRows):
			r.logger.Printf("[TOKEN][ERR] query by id=%d: %v", *tokenID, err)
		}
	}

	err := scan(r.pg.Pool.QueryRow(ctx, tokenByValueQuery, r.tokenableType, hash, secret, now))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrTokenNotFound
	}
	if err != nil {
		r.logger.Printf("[TOKEN][ERR] fallback query: %v", err)
		return nil, err
	}

	r.touch(ctx, pat.ID)
	r.logger.Debugf("[TOKEN] found id=%d user=%d", pat.ID, pat.UserID)
	return &pat, nil
}

func (r *PersonalAccessTokenRepository) touch(ctx context.Context, id int64) {
	if _, err := r.pg.Pool.Exec(ctx, touchTokenQuery, id, time.Now()); err != nil {
		r.logger.Printf("[TOKEN][WARN] touch id=%d: %v", id, err)
	}
}
