package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"cdmkn-go/internal/cdmkn"
	"cdmkn-go/internal/watch"
)

// PassRunner executes one scheduling pass. *watch.Scheduler implements it.
type PassRunner interface {
	RunPass(ctx context.Context, pass watch.Pass) (*watch.PassReport, error)
}

var _ PassRunner = (*watch.Scheduler)(nil)

// Status describes the marker as seen by another process.
type Status struct {
	Running bool
	PID     int
	// Alive is false when the marker names a process that no longer exists.
	Alive bool
}

// Controller runs the watch loop while it holds the liveness marker.
//
// Start checks the marker and then writes it. The two steps are not atomic
// across processes: two starts racing each other may both proceed.
type Controller struct {
	marker  *Marker
	runner  PassRunner
	trigger watch.Trigger
	logger  cdmkn.Logger
	pid     int
	notify  func(chan<- os.Signal)
}

func NewController(marker *Marker, runner PassRunner, trigger watch.Trigger, logger cdmkn.Logger) *Controller {
	if logger == nil {
		logger = cdmkn.NewNopLogger()
	}
	return &Controller{
		marker:  marker,
		runner:  runner,
		trigger: trigger,
		logger:  logger,
		pid:     os.Getpid(),
		notify: func(c chan<- os.Signal) {
			signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		},
	}
}

// Start claims the marker, installs the termination signal handler, runs
// bootstrap and then the watch loop until the marker disappears, ctx is
// cancelled or a termination signal arrives. Those are clean exits, even
// during bootstrap. Any other error is returned after the marker is removed.
func (c *Controller) Start(ctx context.Context, bootstrap func(context.Context) error) error {
	pid, running, err := c.marker.Read()
	if err != nil {
		return err
	}
	if running {
		return &AlreadyRunningError{PID: pid}
	}
	if err := c.marker.Write(c.pid); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	c.notify(sigCh)
	defer signal.Stop(sigCh)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		select {
		case sig := <-sigCh:
			c.logger.Info("received signal, stopping", "signal", sig)
			c.release()
			cancel()
		case <-gctx.Done():
		}
		return nil
	})
	g.Go(func() error {
		defer cancel()
		if bootstrap != nil {
			if err := bootstrap(gctx); err != nil {
				return fmt.Errorf("bootstrap failed: %w", err)
			}
		}
		if err := gctx.Err(); err != nil {
			return err
		}
		c.logger.Info("watcher started", "pid", c.pid, "marker", c.marker.Path())
		return c.loop(gctx)
	})

	err = g.Wait()
	c.release()
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Error("watcher stopped on fatal error", "error", err)
		return err
	}
	c.logger.Info("watcher stopped")
	return nil
}

func (c *Controller) loop(ctx context.Context) error {
	pass := watch.FullPass
	for {
		exists, err := c.marker.Exists()
		if err != nil {
			return err
		}
		if !exists {
			c.logger.Info("liveness marker removed")
			return nil
		}

		report, err := c.runner.RunPass(ctx, pass)
		if err != nil {
			return err
		}
		if report.Changes > 0 || report.Baselined > 0 || report.Skipped > 0 {
			c.logger.Info("pass complete",
				"full", report.Full,
				"files", report.Files,
				"baselined", report.Baselined,
				"changes", report.Changes,
				"skipped", report.Skipped,
				"duration", report.Duration)
		} else {
			c.logger.Debug("pass complete", "full", report.Full, "files", report.Files, "duration", report.Duration)
		}

		pass, err = c.trigger.Next(ctx, report)
		if err != nil {
			return err
		}
	}
}

// release removes the marker if it still names this process. A marker
// rewritten by a newer daemon is left alone.
func (c *Controller) release() {
	pid, ok, err := c.marker.Read()
	if err != nil || !ok || pid != c.pid {
		return
	}
	if err := c.marker.Remove(); err != nil {
		c.logger.Warn("failed to remove liveness marker", "error", err)
	}
}

// Stop removes the marker. The running daemon notices at the start of its
// next pass and exits; no signal is sent.
func (c *Controller) Stop() (int, error) {
	pid, ok, err := c.marker.Read()
	if !ok && err == nil {
		return 0, ErrNotRunning
	}
	if err := c.marker.Remove(); err != nil {
		return 0, err
	}
	return pid, nil
}

// Status reads the marker and checks whether its process is alive.
func (c *Controller) Status() (Status, error) {
	pid, ok, err := c.marker.Read()
	if err != nil {
		return Status{}, err
	}
	if !ok {
		return Status{}, nil
	}
	return Status{Running: true, PID: pid, Alive: processAlive(pid)}, nil
}
