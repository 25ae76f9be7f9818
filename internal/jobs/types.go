package jobs

import (
	"context"
	"time"
)

type JobType string

const (
	// JobTypeSyncAccounts pulls balances and transactions for one bank
	// connection.
	JobTypeSyncAccounts JobType = "sync_accounts"
)

type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// SyncAccountsJob asks the sync worker to refresh one connection. Delivery is
// at-least-once; the handler relies on idempotent reconciliation keys.
type SyncAccountsJob struct {
	JobID        string     `json:"job_id"`
	ConnectionID uint       `json:"connection_id"`
	UserID       uint       `json:"user_id"`
	Status       JobStatus  `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Error        string     `json:"error,omitempty"`
	RetryCount   int        `json:"retry_count"`
	MaxRetries   int        `json:"max_retries"`
}

// Publisher enqueues sync work. Implementations may be in-memory or backed by
// an external broker.
type Publisher interface {
	PublishSyncAccounts(ctx context.Context, job *SyncAccountsJob) error
	Close() error
}

// Consumer drains the queue, invoking the handler per job.
type Consumer interface {
	Start(ctx context.Context, handler JobHandler) error
	Stop(ctx context.Context) error
}

// JobHandler processes one job; a returned error triggers a retry until
// MaxRetries is exhausted.
type JobHandler func(ctx context.Context, job *SyncAccountsJob) error
