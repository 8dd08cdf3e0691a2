package storage

import (
	"context"
	"errors"
	"time"

	"genix/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresQuotaStore keeps quota records in the user_quotas table
type PostgresQuotaStore struct {
	pool *pgxpool.Pool
}

var _ QuotaStore = (*PostgresQuotaStore)(nil)

// NewPostgresQuotaStore connects and prepares the schema
func NewPostgresQuotaStore(ctx context.Context, connStr string) (*PostgresQuotaStore, error) {
	pool, err := OpenPostgres(ctx, connStr)
	if err != nil {
		return nil, err
	}
	return &PostgresQuotaStore{pool: pool}, nil
}

func (s *PostgresQuotaStore) GetQuota(ctx context.Context, uid string) (*models.UserQuota, error) {
	return scanQuota(s.pool.QueryRow(ctx, GetQuery("quota.get_quota"), uid))
}

func (s *PostgresQuotaStore) SetQuota(ctx context.Context, q *models.UserQuota) error {
	_, err := s.pool.Exec(ctx, GetQuery("quota.upsert_quota"),
		q.UID,
		q.RemainingGenerations,
		q.TotalGenerations,
		q.LastGeneratedAt,
		q.Tokens,
		q.CreatedAt,
		q.UpdatedAt,
	)
	return err
}

func (s *PostgresQuotaStore) ConsumeGeneration(ctx context.Context, uid string, now time.Time) (*models.UserQuota, error) {
	return scanQuota(s.pool.QueryRow(ctx, GetQuery("quota.consume_generation"), uid, now.UnixMilli()))
}

func (s *PostgresQuotaStore) Close(context.Context) error {
	s.pool.Close()
	return nil
}

func scanQuota(row pgx.Row) (*models.UserQuota, error) {
	var q models.UserQuota
	err := row.Scan(
		&q.UID,
		&q.RemainingGenerations,
		&q.TotalGenerations,
		&q.LastGeneratedAt,
		&q.Tokens,
		&q.CreatedAt,
		&q.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrQuotaNotFound
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}
