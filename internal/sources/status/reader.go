package status

import (
	"context"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/MrSnakeDoc/presence/internal/logger"
	"github.com/MrSnakeDoc/presence/internal/metrics"
)

const (
	// DefaultReadAttempts bounds the reads of one cycle.
	DefaultReadAttempts = 3
	// DefaultReadDelay is the pause between two read attempts.
	DefaultReadDelay = 100 * time.Millisecond
)

// Reader reads the status report written by the producer process.
//
// The producer rewrites the file in place, so a read can observe an empty
// or truncated file. Empty reads and I/O errors are retried a bounded number
// of times; a missing file is reported at once.
type Reader struct {
	filePath string
	attempts int
	delay    time.Duration
	logger   logger.Logger

	lastContent string
}

// NewReader creates a reader for filePath.
func NewReader(filePath string, attempts int, delay time.Duration, log logger.Logger) *Reader {
	if attempts < 1 {
		attempts = DefaultReadAttempts
	}
	if delay < 0 {
		delay = 0
	}
	return &Reader{
		filePath: filePath,
		attempts: attempts,
		delay:    delay,
		logger:   log,
	}
}

// Path returns the report location.
func (r *Reader) Path() string { return r.filePath }

// Read returns the report content and whether it differs from the last
// successful read. The file is never modified.
func (r *Reader) Read(ctx context.Context) (string, bool, error) {
	var lastErr error

	for attempt := 1; attempt <= r.attempts; attempt++ {
		if attempt > 1 {
			metrics.SnapshotReadRetries.Inc()
			if err := sleep(ctx, r.delay); err != nil {
				return "", false, err
			}
		}

		data, err := os.ReadFile(r.filePath)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", false, errors.Wrapf(ErrSnapshotNotFound, "%s", r.filePath)
			}
			lastErr = errors.Wrapf(err, "read status report")
			r.logger.Debug("status report read failed",
				logger.String("file", r.filePath),
				logger.Int("attempt", attempt),
				logger.Error(err))
			continue
		}

		content := string(data)
		if strings.TrimSpace(content) == "" {
			lastErr = errors.Wrapf(ErrSnapshotEmpty, "%s", r.filePath)
			r.logger.Debug("status report empty, retrying",
				logger.String("file", r.filePath),
				logger.Int("attempt", attempt))
			continue
		}

		changed := content != r.lastContent
		r.lastContent = content
		return content, changed, nil
	}

	return "", false, lastErr
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
