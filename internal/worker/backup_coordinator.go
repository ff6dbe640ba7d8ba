// Package worker contains the background loops the server runs alongside
// the HTTP listener.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/hyperengineering/daybook/internal/backup"
)

// SnapshotSource produces a consistent copy of the database on disk.
// This interface allows testing with mock implementations.
type SnapshotSource interface {
	// Snapshot writes a backup file into dir and returns its path.
	Snapshot(ctx context.Context, dir string) (string, error)
}

// BackupCoordinator periodically snapshots the database and uploads the
// result to remote storage.
type BackupCoordinator struct {
	source   SnapshotSource
	uploader backup.Uploader
	interval time.Duration
	dir      string
}

// NewBackupCoordinator creates a coordinator that backs up the database
// every interval. The uploader parameter is optional; if nil, backups stay
// local only.
func NewBackupCoordinator(
	source SnapshotSource,
	uploader backup.Uploader,
	interval time.Duration,
	dir string,
) *BackupCoordinator {
	return &BackupCoordinator{
		source:   source,
		uploader: uploader,
		interval: interval,
		dir:      dir,
	}
}

// Run starts the coordinator loop.
func (c *BackupCoordinator) Run(ctx context.Context) {
	slog.Info("worker started",
		"component", "worker",
		"worker", "backup-coordinator",
		"action", "worker_started",
		"interval", c.interval.String(),
	)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Back up immediately on start
	c.runBackup(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("worker stopped",
				"component", "worker",
				"worker", "backup-coordinator",
				"action", "worker_stopped",
				"reason", "context_cancelled",
			)
			return
		case <-ticker.C:
			c.runBackup(ctx)
		}
	}
}

// runBackup snapshots the database and uploads the file if an uploader is
// configured. Upload failures are logged as warnings but are NOT fatal,
// the local backup file remains valid.
func (c *BackupCoordinator) runBackup(ctx context.Context) {
	path, err := c.source.Snapshot(ctx, c.dir)
	if err != nil {
		if ctx.Err() != nil {
			return // Graceful shutdown, don't log as error
		}
		slog.Warn("backup snapshot failed",
			"component", "worker",
			"worker", "backup-coordinator",
			"action", "backup_failed",
			"error", err,
		)
		return
	}

	slog.Info("backup written",
		"component", "worker",
		"worker", "backup-coordinator",
		"action", "backup_written",
		"path", path,
	)

	if c.uploader == nil {
		return
	}

	if err := c.uploader.Upload(ctx, path); err != nil {
		slog.Warn("backup upload to S3 failed",
			"component", "worker",
			"worker", "backup-coordinator",
			"action", "backup_upload_failed",
			"path", path,
			"error", err,
		)
		return
	}

	slog.Info("backup uploaded to S3",
		"component", "worker",
		"worker", "backup-coordinator",
		"action", "backup_uploaded",
		"path", path,
	)
}
