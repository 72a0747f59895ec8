package shared

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// MaxIdempotencyKeyLength bounds client supplied Idempotency-Key headers.
const MaxIdempotencyKeyLength = 200

// ErrIdempotencyConflict indicates a replayed key.
var ErrIdempotencyConflict = errors.New("idempotent request already processed")

// IdempotencyStore records processed request keys per module. Inserts join the
// transaction carried by ctx when there is one.
type IdempotencyStore struct {
	pool *pgxpool.Pool
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{pool: pool}
}

// CheckAndInsert claims key for module, failing with ErrIdempotencyConflict on replay.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key, module string) error {
	if s == nil {
		return errors.New("idempotency store not initialised")
	}
	key, err := normalizeKey(key, module)
	if err != nil {
		return err
	}
	_, err = db.Conn(ctx, s.pool).Exec(ctx,
		`INSERT INTO idempotency_keys (key, module, created_at) VALUES ($1, $2, now())`, key, module)
	if db.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %s/%s", ErrIdempotencyConflict, module, key)
	}
	return err
}

// Cleanup removes keys older than the retention window and reports how many were deleted.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s == nil {
		return 0, nil
	}
	if olderThan <= 0 {
		return 0, fmt.Errorf("idempotency cleanup: retention must be positive, got %s", olderThan)
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < now() - make_interval(secs => $1)`, olderThan.Seconds())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func normalizeKey(key, module string) (string, error) {
	key = strings.TrimSpace(key)
	switch {
	case key == "":
		return "", errors.New("idempotency key required")
	case len(key) > MaxIdempotencyKeyLength:
		return "", fmt.Errorf("idempotency key longer than %d bytes", MaxIdempotencyKeyLength)
	case module == "":
		return "", errors.New("idempotency module required")
	}
	return key, nil
}
