package pipeline

import (
	"context"
	"time"
)

// CorrectionDiff compares a rejected local attempt with the cloud receipt that
// replaced it
type CorrectionDiff struct {
	ID              string    `json:"id"`
	ReceiptID       string    `json:"receipt_id"`
	UserID          string    `json:"user_id"`
	UserCity        string    `json:"user_city,omitempty"`
	FallbackReason  string    `json:"fallback_reason"`
	Issues          []string  `json:"issues,omitempty"`
	LocalConfidence float64   `json:"local_confidence"`
	LocalMerchant   string    `json:"local_merchant"`
	CloudMerchant   string    `json:"cloud_merchant"`
	LocalItemCount  int       `json:"local_item_count"`
	CloudItemCount  int       `json:"cloud_item_count"`
	LocalTotal      *float64  `json:"local_total,omitempty"`
	CloudTotal      float64   `json:"cloud_total"`
	CreatedAt       time.Time `json:"created_at"`
}

// DiffRecorder stores correction diffs for later tuning
type DiffRecorder interface {
	RecordDiff(ctx context.Context, diff *CorrectionDiff) error
}
