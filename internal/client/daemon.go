package client

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/openmined/syftvault/internal/api"
	"github.com/openmined/syftvault/internal/client/sync"
	"golang.org/x/sync/errgroup"
)

// RunDaemon syncs on every interval tick and whenever the server announces a
// version past the local checkpoint. It returns when ctx is done or the
// replica history turns out to be inconsistent.
func (c *Client) RunDaemon(ctx context.Context) error {
	nudge := make(chan struct{}, 1)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		c.watchEvents(egCtx, nudge)
		return nil
	})
	eg.Go(func() error {
		return c.syncLoop(egCtx, nudge)
	})

	err := eg.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *Client) syncLoop(ctx context.Context, nudge <-chan struct{}) error {
	ticker := time.NewTicker(c.config.Sync.Interval)
	defer ticker.Stop()

	slog.Info("daemon started", "interval", c.config.Sync.Interval, "server", c.account.APIURL)
	for {
		if err := c.syncOnce(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			slog.Info("daemon stopped")
			return nil
		case <-ticker.C:
		case <-nudge:
			slog.Debug("daemon woken by server event")
		}
	}
}

// syncOnce only fails on errors the daemon cannot recover from by retrying later
func (c *Client) syncOnce(ctx context.Context) error {
	start := time.Now()
	err := c.engine.Sync(ctx, nil)

	var fatal *sync.FatalError
	switch {
	case err == nil:
		slog.Debug("daemon sync done", "took", time.Since(start))
	case errors.Is(err, sync.ErrSyncAlreadyRunning):
		slog.Debug("daemon sync skipped, session running")
	case ctx.Err() != nil:
		return nil
	case errors.As(err, &fatal):
		slog.Error("daemon sync aborted", "id", fatal.ID, "error", fatal.Err)
		return err
	default:
		slog.Warn("daemon sync failed, will retry", "error", err)
	}
	return nil
}

// watchEvents forwards update events newer than the checkpoint to nudge.
// The daemon keeps syncing on its timer when the events socket is unavailable.
func (c *Client) watchEvents(ctx context.Context, nudge chan<- struct{}) {
	if err := c.sdk.Events.Connect(ctx); err != nil {
		slog.Warn("daemon events unavailable, timer only", "error", err)
		return
	}
	defer c.sdk.Events.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-c.sdk.Events.Get():
			if !ok {
				return
			}
			if event == nil || event.Type != api.EventTypeUpdates {
				continue
			}
			lastSynced, err := c.store.GetLastSynced()
			if err == nil && event.Version <= lastSynced {
				continue
			}
			select {
			case nudge <- struct{}{}:
			default:
			}
		}
	}
}
