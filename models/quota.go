package models

import "time"

// UserQuota is the per-user generation allowance record, keyed by identity provider uid.
// Timestamps are unix milliseconds; LastGeneratedAt is 0 until the first generation.
type UserQuota struct {
	UID                  string `json:"uid"`
	RemainingGenerations int    `json:"remainingGenerations"`
	TotalGenerations     int    `json:"totalGenerations"`
	LastGeneratedAt      int64  `json:"lastGeneratedAt"`
	Tokens               int    `json:"tokens"`
	CreatedAt            int64  `json:"createdAt"`
	UpdatedAt            int64  `json:"updatedAt"`
}

// NewUserQuota returns the record a first-time user starts with
func NewUserQuota(uid string, allowance int, now time.Time) *UserQuota {
	ts := now.UnixMilli()
	return &UserQuota{
		UID:                  uid,
		RemainingGenerations: allowance,
		CreatedAt:            ts,
		UpdatedAt:            ts,
	}
}

// Consume records one generation. Remaining may go negative; the allowance is informational.
func (q *UserQuota) Consume(now time.Time) {
	ts := now.UnixMilli()
	q.RemainingGenerations--
	q.TotalGenerations++
	q.LastGeneratedAt = ts
	q.UpdatedAt = ts
}
