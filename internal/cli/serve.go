package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/recallhq/recall/pkg/automation"
	"github.com/recallhq/recall/pkg/index"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the recall daemon",
	Long: `Run the recall daemon in the foreground: load the document
store, watch it for external edits, and run the automation scheduler
until interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	rt, err := bootstrap(ctx, true)
	if err != nil {
		return err
	}
	defer rt.close()
	log := rt.log.GetZerolog()

	var watcher *index.Watcher
	if rt.cfg.Watcher.Enabled {
		watcher, err = index.NewWatcher(rt.cfg.Storage.BaseDir, log, rt.index.MarkDirty)
		if err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		defer watcher.Stop()
	}

	var scheduler *automation.Scheduler
	if rt.cfg.Automation.Enabled {
		scheduler = automation.NewScheduler(automation.SchedulerConfig{
			Engine:   rt.engine,
			Interval: rt.cfg.Automation.Interval,
			Logger:   log,
		})
		if err := scheduler.Start(ctx); err != nil {
			return err
		}
		defer scheduler.Stop()
	}

	var metricsSrv *http.Server
	if rt.metrics != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", rt.metrics.Handler())
		metricsSrv = &http.Server{Addr: rt.cfg.Metrics.Addr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	log.Info().
		Str("base_dir", rt.cfg.Storage.BaseDir).
		Bool("watcher", watcher != nil).
		Bool("automation", scheduler != nil).
		Msg("recall daemon started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case <-ctx.Done():
	}
	return nil
}
