package ingest

import (
	"context"
)

// Watch blocks, ingesting every file the watcher reports, until ctx is
// done or the watcher fails to start.
func (i *Ingestor) Watch(ctx context.Context, cfg WatchConfig) error {
	evCh, errCh, err := StartWatcher(ctx, cfg, i.logger)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case path, ok := <-evCh:
			if !ok {
				return nil
			}
			if _, err := i.IngestPath(ctx, path); err != nil {
				i.logger.Warn("ingest.file_failed", "path", path, "error", err)
			}
		case err, ok := <-errCh:
			if ok && err != nil {
				i.logger.Warn("ingest.watch.degraded", "error", err)
			}
		}
	}
}
