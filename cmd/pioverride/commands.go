package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/sissm-go/pioverride/internal/audit"
	"github.com/sissm-go/pioverride/internal/config"
	"github.com/sissm-go/pioverride/internal/feed"
	"github.com/sissm-go/pioverride/internal/health"
	"github.com/sissm-go/pioverride/internal/lifecycle"
	"github.com/sissm-go/pioverride/internal/pioverride"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRunCmd(configPath *string) *cobra.Command {
	var (
		feedPath string
		follow   bool
		poll     bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Apply overrides as lifecycle events arrive on the feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if follow && (feedPath == "" || feedPath == "-") {
				return errors.New("--follow needs a --feed file")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := setup(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			var hs *health.Server
			if a.cfg.Health.Enabled {
				lis, err := net.Listen("tcp", a.cfg.Health.Address)
				if err != nil {
					return fmt.Errorf("failed to listen for health checks: %w", err)
				}
				hs = health.NewServer(a.logger)
				go func() {
					if serveErr := hs.Serve(lis); serveErr != nil {
						a.logger.Error("health server error", zap.Error(serveErr))
					}
				}()
				defer hs.Stop()
				hs.SetReady(true)
			}

			if !a.installed {
				a.logger.Warn("plugin disabled in configuration; events will be ignored")
			}

			var n int
			if follow {
				n, err = feed.Follow(ctx, feedPath, feed.FollowOptions{FromEnd: true, Poll: poll}, a.bus, a.logger)
			} else {
				in, closeFeed, openErr := openFeed(feedPath, cmd.InOrStdin())
				if openErr != nil {
					return openErr
				}
				defer closeFeed()
				n, err = feed.Run(ctx, in, a.bus, a.logger)
			}
			a.logger.Info("event feed finished", zap.Int("events", n))
			if hs != nil {
				hs.SetReady(false)
			}
			if errors.Is(err, context.Canceled) {
				a.logger.Info("received shutdown signal")
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&feedPath, "feed", "-", "event feed file, or - for stdin")
	cmd.Flags().BoolVar(&follow, "follow", false, "keep reading the feed file as it grows, starting at its end")
	cmd.Flags().BoolVar(&poll, "poll", false, "with --follow, poll the file instead of using inotify")
	return cmd
}

func openFeed(path string, stdin io.Reader) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open event feed: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

func newFireCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "fire EVENT [EVENT...]",
		Short: "Publish lifecycle events once against the live server",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			events := make([]lifecycle.Event, 0, len(args))
			for _, arg := range args {
				eventType, err := lifecycle.ParseEventType(arg)
				if err != nil {
					return err
				}
				events = append(events, lifecycle.NewEvent(eventType, ""))
			}

			a, err := setup(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if !a.installed {
				return errors.New("plugin disabled in configuration (pioverride.pluginState = 0)")
			}
			for _, event := range events {
				a.bus.Publish(cmd.Context(), event)
			}
			return nil
		},
	}
}

func newRulesCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Print the override rule set loaded from configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			printRules(cmd.OutOrStdout(), pioverride.LoadRuleSet(cfg.Source()))
			return nil
		},
	}
}

func printRules(out io.Writer, rules pioverride.RuleSet) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "enabled\t%t\n", rules.Enabled)
	fmt.Fprintf(w, "apply every round\t%t\n", rules.ApplyEveryRound)
	fmt.Fprintf(w, "enemy count override\t%t\n", rules.EnemyCountOverride)
	fmt.Fprintf(w, "minimum enemies\t%d\n", rules.MinEnemies)
	fmt.Fprintf(w, "maximum enemies\t%d\n", rules.MaxEnemies)
	fmt.Fprintf(w, "counterattack multiplier\t%g\n", rules.CounterAttackMultiplier)
	for _, o := range rules.Overrides {
		switch {
		case o.Valid():
			fmt.Fprintf(w, "cvar[%d]\t%s = %s\n", o.Slot, o.Name, o.Value)
		case o.Raw != "":
			fmt.Fprintf(w, "cvar[%d]\t(ignored: %q)\n", o.Slot, o.Raw)
		}
	}
	_ = w.Flush()
}

func newHistoryCmd(configPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent property pushes from the audit log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if !cfg.Audit.Enabled {
				return audit.ErrDisabled
			}

			store, err := audit.Open(cmd.Context(), cfg.Audit.DSN)
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tEVENT\tPROPERTY\tVALUE\tERROR")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					e.At.Format("2006-01-02 15:04:05"), e.EventType, e.Property, e.Value, e.Error)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of entries to show")
	return cmd
}
