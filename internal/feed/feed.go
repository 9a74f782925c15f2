// Package feed turns a newline-delimited stream of lifecycle event names into
// bus publications. Each line is "<event_type> [payload]"; blank lines and
// lines starting with '#' are skipped.
package feed

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/nxadm/tail"
	"github.com/sissm-go/pioverride/internal/lifecycle"
	"go.uber.org/zap"
)

// Run publishes every event read from r, one at a time, until r is exhausted
// or ctx is cancelled. It returns the number of events published.
func Run(ctx context.Context, r io.Reader, bus *lifecycle.Bus, logger *zap.Logger) (int, error) {
	d := newDispatcher(bus, logger)

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				scanErr <- ctx.Err()
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return d.published, ctx.Err()
		case line, ok := <-lines:
			if !ok {
				if err := <-scanErr; err != nil {
					return d.published, fmt.Errorf("read event feed: %w", err)
				}
				return d.published, nil
			}
			d.dispatch(ctx, line)
		}
	}
}

// FollowOptions controls how Follow tails a file.
type FollowOptions struct {
	// FromEnd skips lines already in the file when tailing starts.
	FromEnd bool
	// Poll watches the file by polling instead of inotify.
	Poll bool
}

// Follow tails path like "tail -F", publishing each new line until ctx is
// cancelled. Truncated or replaced files are reopened. The file must exist
// when Follow is called.
func Follow(ctx context.Context, path string, opts FollowOptions, bus *lifecycle.Bus, logger *zap.Logger) (int, error) {
	d := newDispatcher(bus, logger)

	cfg := tail.Config{
		Follow:        true,
		ReOpen:        true,
		MustExist:     true,
		Poll:          opts.Poll,
		CompleteLines: true,
		Logger:        zap.NewStdLog(d.logger),
	}
	if opts.FromEnd {
		cfg.Location = &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd}
	}

	t, err := tail.TailFile(path, cfg)
	if err != nil {
		return 0, fmt.Errorf("follow event feed: %w", err)
	}
	defer t.Cleanup()

	d.logger.Info("following event feed", zap.String("path", path), zap.Bool("from_end", opts.FromEnd))
	for {
		select {
		case <-ctx.Done():
			_ = t.Stop()
			return d.published, ctx.Err()
		case line, ok := <-t.Lines:
			if !ok {
				if err := t.Wait(); err != nil {
					return d.published, fmt.Errorf("follow event feed: %w", err)
				}
				return d.published, nil
			}
			if line.Err != nil {
				d.logger.Warn("event feed read error", zap.Error(line.Err))
				continue
			}
			d.dispatch(ctx, line.Text)
		}
	}
}

type dispatcher struct {
	bus       *lifecycle.Bus
	logger    *zap.Logger
	published int
}

func newDispatcher(bus *lifecycle.Bus, logger *zap.Logger) *dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &dispatcher{bus: bus, logger: logger.Named("feed")}
}

func (d *dispatcher) dispatch(ctx context.Context, line string) {
	event, ok := ParseLine(line)
	if !ok {
		if trimmed := strings.TrimSpace(line); trimmed != "" && !strings.HasPrefix(trimmed, "#") {
			d.logger.Warn("skipping unknown event", zap.String("line", trimmed))
		}
		return
	}
	d.logger.Debug("dispatching event",
		zap.String("type", string(event.Type)),
		zap.String("id", event.ID),
	)
	d.bus.Publish(ctx, event)
	d.published++
}

// ParseLine parses a single feed line. ok is false for blank lines, comments
// and unknown event types.
func ParseLine(line string) (lifecycle.Event, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return lifecycle.Event{}, false
	}
	name, payload, _ := strings.Cut(line, " ")
	eventType, err := lifecycle.ParseEventType(name)
	if err != nil {
		return lifecycle.Event{}, false
	}
	return lifecycle.NewEvent(eventType, strings.TrimSpace(payload)), true
}
