package svc

import (
	"context"
	"errors"
	"time"

	"genix/models"
	"genix/storage"
	"genix/util"

	"github.com/sirupsen/logrus"
)

// DefaultFreeGenerations is the allowance a first-time user starts with
const DefaultFreeGenerations = 5

// QuotaService tracks per-user generation counts. The allowance is informational
// and never blocks generation.
type QuotaService struct {
	store     storage.QuotaStore
	allowance int
	now       func() time.Time
}

// NewQuotaService creates a QuotaService. A non-positive allowance falls back to the default.
func NewQuotaService(store storage.QuotaStore, allowance int) *QuotaService {
	if allowance <= 0 {
		allowance = DefaultFreeGenerations
	}
	return &QuotaService{store: store, allowance: allowance, now: time.Now}
}

// Get returns the user's record, creating it with the free allowance on first use
func (s *QuotaService) Get(ctx context.Context, uid string) (*models.UserQuota, error) {
	q, err := s.store.GetQuota(ctx, uid)
	if err == nil {
		return q, nil
	}
	if !errors.Is(err, storage.ErrQuotaNotFound) {
		return nil, util.HandleError(util.NewError("failed to load quota").WithCause(err).WithField("uid", uid))
	}

	q = models.NewUserQuota(uid, s.allowance, s.now())
	if err := s.store.SetQuota(ctx, q); err != nil {
		return nil, util.HandleError(util.NewError("failed to initialize quota").WithCause(err).WithField("uid", uid))
	}
	util.LogInfo("Initialized quota for new user", logrus.Fields{"uid": uid, "remaining": q.RemainingGenerations})
	return q, nil
}

// Consume records one generation for uid. Failures are logged and reported as nil.
func (s *QuotaService) Consume(ctx context.Context, uid string) *models.UserQuota {
	if uid == "" {
		return nil
	}
	if _, err := s.Get(ctx, uid); err != nil {
		return nil
	}

	q, err := s.store.ConsumeGeneration(ctx, uid, s.now())
	if err != nil {
		util.LogWarning("Failed to record generation against quota", logrus.Fields{"uid": uid, "error": err})
		return nil
	}
	util.LogDebug("Recorded generation", logrus.Fields{"uid": uid, "remaining": q.RemainingGenerations})
	return q
}
