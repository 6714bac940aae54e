package state

import (
	"time"

	"go.uber.org/zap"

	"epdf/progress"
)

// newLocalEnv creates a new LocalEnv instance with default values, logging
// is disabled until configuration is loaded.
func newLocalEnv() *LocalEnv {
	return &LocalEnv{
		Log:      zap.NewNop(),
		Progress: progress.Discard,
		start:    time.Now(),
	}
}
