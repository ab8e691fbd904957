package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/ewangclarkson/news-aggregator-app/internal/app"
	"github.com/ewangclarkson/news-aggregator-app/internal/ingest"
	"github.com/ewangclarkson/news-aggregator-app/internal/logger"
	"github.com/ewangclarkson/news-aggregator-app/internal/queue"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, periodic ingestion and queue workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				defer logger.Log.Info("Application stopped")
				return a.Serve(ctx)
			})
		},
	}
}

func fetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Run one rate-gated ingestion sweep",
		Long:  "Runs all configured providers unless a sweep already ran within the configured interval.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				out, err := a.Gate.Run(ctx)
				if err != nil && !errors.Is(err, ingest.ErrSweepInProgress) {
					return err
				}
				writeOutput(cmd, out, func() { printOutcome(cmd.OutOrStdout(), out) })
				return nil
			})
		},
	}
}

func printOutcome(w io.Writer, out ingest.Outcome) {
	switch out.Status {
	case ingest.StatusSkipped:
		fmt.Fprintf(w, "Sweep skipped: %s", out.Reason)
		if out.LastRun != nil {
			fmt.Fprintf(w, " (last run %s)", humanize.Time(*out.LastRun))
		}
		fmt.Fprintln(w)
	case ingest.StatusBusy:
		fmt.Fprintln(w, "Sweep already in progress")
	case ingest.StatusRan:
		s := out.Summary
		fmt.Fprintf(w, "Sweep %s finished in %s: %d succeeded, %d failed\n",
			s.ID, s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond), s.Succeeded(), s.Failed())
		for _, r := range s.Results {
			status := "ok"
			if !r.OK() {
				status = "FAILED: " + r.Error
			}
			fmt.Fprintf(w, "  %-14s %s upserted  %s\n", r.Key, humanize.Comma(int64(r.Upserted)), status)
		}
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show when the last ingestion sweep started",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				last, found, err := a.Gate.LastRun(ctx)
				if err != nil {
					return err
				}

				type statusData struct {
					LastRun  *time.Time `json:"last_run"`
					Interval string     `json:"interval"`
					Due      bool       `json:"due"`
				}
				data := statusData{Interval: a.Gate.Interval().String(), Due: true}
				if found {
					data.LastRun = &last
					data.Due = time.Since(last) >= a.Gate.Interval()
				}

				writeOutput(cmd, data, func() {
					w := cmd.OutOrStdout()
					if !found {
						fmt.Fprintln(w, "No sweep has run yet.")
						return
					}
					fmt.Fprintf(w, "Last sweep: %s (%s)\n", last.Local().Format(time.RFC1123), humanize.Time(last))
					fmt.Fprintf(w, "Interval:   %s, next sweep due: %t\n", data.Interval, data.Due)
				})
				return nil
			})
		},
	}
}

func triggerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trigger",
		Short: "Ask running workers to perform a sweep via RabbitMQ",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.RabbitMQ.URL == "" {
				return errors.New("rabbitmq.url is not configured")
			}

			producer, err := queue.NewProducer(cfg.RabbitMQ.URL)
			if err != nil {
				return err
			}
			defer producer.Close()

			by, _ := cmd.Flags().GetString("by")
			t := queue.Trigger{RequestedBy: by, RequestedAt: time.Now().UTC()}
			if err := producer.PublishTrigger(cmd.Context(), cfg.RabbitMQ.TriggerQueue, t); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Trigger published to %s\n", cfg.RabbitMQ.TriggerQueue)
			return nil
		},
	}
	cmd.Flags().String("by", "cli", "Requester name recorded in the trigger message")
	return cmd
}
