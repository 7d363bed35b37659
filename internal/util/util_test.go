package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSafeFileName(t *testing.T) {
	assert.Equal(t, "balance_inquiry", SafeFileName("Balance Inquiry"))
	assert.Equal(t, "fraud_dispute_2", SafeFileName("  Fraud Dispute #2 "))
	assert.Equal(t, "unnamed", SafeFileName("!!!"))
}

func TestTimestamp(t *testing.T) {
	ts := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)
	assert.Equal(t, "20250314_150926", Timestamp(ts))
}
