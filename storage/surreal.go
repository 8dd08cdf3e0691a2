package storage

import (
	"context"
	"fmt"
	"time"

	"genix/config"
	"genix/models"
	"genix/util"

	"github.com/sirupsen/logrus"
	"github.com/surrealdb/surrealdb.go"
)

const (
	surrealGetQuota = `SELECT * FROM type::thing('users', $uid);`
	surrealSetQuota = `UPSERT type::thing('users', $uid) CONTENT $quota;`
	surrealConsume  = `UPDATE type::thing('users', $uid) SET
		remainingGenerations -= 1,
		totalGenerations += 1,
		lastGeneratedAt = $now,
		updatedAt = $now;`
)

// SurrealQuotaStore keeps quota records as users/{uid} documents
type SurrealQuotaStore struct {
	db *surrealdb.DB
}

var _ QuotaStore = (*SurrealQuotaStore)(nil)

// NewSurrealQuotaStore connects, signs in and selects the namespace and database
func NewSurrealQuotaStore(ctx context.Context, conf config.SurrealConfig) (*SurrealQuotaStore, error) {
	db, err := surrealdb.New(conf.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create surrealdb client: %w", err)
	}

	if _, err = db.SignIn(ctx, map[string]any{
		"user": conf.User,
		"pass": conf.Pass,
	}); err != nil {
		return nil, fmt.Errorf("failed to signin to surrealdb: %w", err)
	}

	if err = db.Use(ctx, conf.Namespace, conf.Database); err != nil {
		return nil, fmt.Errorf("failed to use surrealdb namespace/database: %w", err)
	}

	util.LogInfo("Connected to SurrealDB", logrus.Fields{"url": conf.URL, "namespace": conf.Namespace})
	return &SurrealQuotaStore{db: db}, nil
}

func (s *SurrealQuotaStore) GetQuota(ctx context.Context, uid string) (*models.UserQuota, error) {
	return s.queryOne(ctx, surrealGetQuota, map[string]any{"uid": uid})
}

func (s *SurrealQuotaStore) SetQuota(ctx context.Context, q *models.UserQuota) error {
	_, err := s.queryOne(ctx, surrealSetQuota, map[string]any{
		"uid":   q.UID,
		"quota": quotaDocument(q),
	})
	return err
}

func (s *SurrealQuotaStore) ConsumeGeneration(ctx context.Context, uid string, now time.Time) (*models.UserQuota, error) {
	return s.queryOne(ctx, surrealConsume, map[string]any{
		"uid": uid,
		"now": now.UnixMilli(),
	})
}

func (s *SurrealQuotaStore) Close(ctx context.Context) error {
	return s.db.Close(ctx)
}

// queryOne runs a single statement and returns the first record of its result
func (s *SurrealQuotaStore) queryOne(ctx context.Context, sql string, vars map[string]any) (*models.UserQuota, error) {
	res, err := surrealdb.Query[[]models.UserQuota](ctx, s.db, sql, vars)
	if err != nil {
		return nil, err
	}
	if res == nil || len(*res) == 0 {
		return nil, ErrQuotaNotFound
	}

	rows := (*res)[len(*res)-1].Result
	if len(rows) == 0 {
		return nil, ErrQuotaNotFound
	}
	return &rows[0], nil
}

func quotaDocument(q *models.UserQuota) map[string]any {
	return map[string]any{
		"uid":                  q.UID,
		"remainingGenerations": q.RemainingGenerations,
		"totalGenerations":     q.TotalGenerations,
		"lastGeneratedAt":      q.LastGeneratedAt,
		"tokens":               q.Tokens,
		"createdAt":            q.CreatedAt,
		"updatedAt":            q.UpdatedAt,
	}
}
