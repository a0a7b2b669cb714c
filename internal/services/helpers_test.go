package services

import (
	"testing"

	"gorm.io/gorm"

	"github.com/fluentora/fluentora-backend/internal/data/repos/testutil"
	"github.com/fluentora/fluentora-backend/internal/logger"
)

// testutilHandles bundles the per-test transaction and logger for service
// tests that hit postgres. Tests are skipped without TEST_POSTGRES_DSN.
type testutilHandles struct {
	tx  *gorm.DB
	log *logger.Logger
}

func newTestutilHandles(t *testing.T) *testutilHandles {
	t.Helper()
	db := testutil.DB(t)
	return &testutilHandles{
		tx:  testutil.Tx(t, db),
		log: testutil.Logger(t),
	}
}
