package wal

import (
	"testing"

	"github.com/google/uuid"
)

func mustNewTxnID(t *testing.T) uuid.UUID {
	t.Helper()
	return uuid.New()
}
