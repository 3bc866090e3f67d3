package orchestrator

import (
	"testing"

	"go.uber.org/goleak"
)

// TestMain verifies Backup's errgroup fan-out (MultipleFiles && !Compress)
// leaves no goroutines running past the subtests that exercise it.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
