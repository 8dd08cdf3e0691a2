// Package storage defines interfaces for the data layer abstraction
package storage

import (
	"context"
	"errors"
	"time"

	"genix/models"
)

// ErrQuotaNotFound is returned when no record exists for a uid
var ErrQuotaNotFound = errors.New("quota record not found")

// QuotaStore abstracts the per-user generation record
type QuotaStore interface {
	// GetQuota returns ErrQuotaNotFound when the user has no record yet
	GetQuota(ctx context.Context, uid string) (*models.UserQuota, error)
	// SetQuota creates or replaces the record
	SetQuota(ctx context.Context, quota *models.UserQuota) error
	// ConsumeGeneration decrements remaining and increments total in one step
	ConsumeGeneration(ctx context.Context, uid string, now time.Time) (*models.UserQuota, error)
	Close(ctx context.Context) error
}
