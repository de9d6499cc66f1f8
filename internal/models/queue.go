package models

import (
	"encoding/json"
	"time"
)

// OpKind identifies the deferred mutation a queue entry replays.
type OpKind string

const (
	OpCreateWorkout  OpKind = "CREATE_WORKOUT"
	OpUpdateWorkout  OpKind = "UPDATE_WORKOUT"
	OpDeleteWorkout  OpKind = "DELETE_WORKOUT"
	OpCreateTemplate OpKind = "CREATE_TEMPLATE"
	OpUpdateTemplate OpKind = "UPDATE_TEMPLATE"
	OpDeleteTemplate OpKind = "DELETE_TEMPLATE"
)

// OpStatus is the lifecycle state of a queue entry.
type OpStatus string

const (
	// OpPending entries are replayed by automatic drains.
	OpPending OpStatus = "pending"
	// OpFailed entries exhausted their retry budget and wait for a manual
	// retry or an explicit clear. They are never auto-discarded.
	OpFailed OpStatus = "failed"
)

// QueuedOperation is one deferred mutation. Seq is assigned by the store and
// fixes replay order; entries for the same RecordID must replay in Seq order.
type QueuedOperation struct {
	ID         string          `json:"id"`
	Seq        int64           `json:"seq"`
	Kind       OpKind          `json:"kind"`
	RecordID   string          `json:"record_id"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	UserID     string          `json:"user_id,omitempty"`
	Status     OpStatus        `json:"status"`
	RetryCount int             `json:"retry_count"`
	LastError  string          `json:"last_error,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// IsTemplateOp reports whether the operation targets a template record.
func (q *QueuedOperation) IsTemplateOp() bool {
	switch q.Kind {
	case OpCreateTemplate, OpUpdateTemplate, OpDeleteTemplate:
		return true
	}
	return false
}
