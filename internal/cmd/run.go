package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/apiclient"
	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/config"
	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/coordinator"
	"github.com/dmitry-ulyanichev/render-com-steam-id-processor/internal/steamapi"
)

var runOnce bool

var runCmd = &cobra.Command{
	Use:     "run",
	GroupID: GroupWorker,
	Short:   "Run the check worker",
	Long: `Run the worker loop: claim steam ids from the queue service, execute
the outstanding profile checks, and complete finished profiles back on
the queue.

Checks whose endpoint is cooling down are deferred and retried after
the periodic sweep. One worker per state directory is enforced with a
lock file; releases claims orphaned by a previous crash on startup.

Without a configured queue service the worker only drains profiles
already in the local queue (see 'sip enqueue').`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runOnce, "once", false, "Execute a single cycle and exit")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, stateDir, err := loadConfig()
	if err != nil {
		return err
	}

	logger, closeLog, err := workerLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	qc, err := newQueueClient(cfg, stateDir, logger)
	if err != nil {
		return err
	}
	if qc == nil {
		logger.Printf("Warning: queue service not configured, draining local queue only")
	}

	st := newStore(stateDir, logger, qc)
	ctrl := newController(cfg, stateDir, logger)

	runner := steamapi.NewExecutor(cfg.Steam.APIKey, steamapi.Criteria{
		MinSteamLevel: cfg.Steam.MinLevel,
		MinFriends:    cfg.Steam.MinFriends,
	})

	coordCfg := coordinator.Config{
		Store:         st,
		Cooldowns:     ctrl,
		Runner:        runner,
		Logger:        logger,
		PollInterval:  cfg.PollInterval(),
		SweepInterval: cfg.SweepInterval(),
		ClaimBatch:    cfg.Worker.ClaimBatch,
		LockPath:      config.LockFilePath(stateDir),
		PIDPath:       config.PIDFilePath(stateDir),
	}
	if qc != nil {
		coordCfg.Queue = qc
	}
	if cfg.LinksConfigured() {
		links := apiclient.New(cfg.Links.URL, cfg.Links.APIKey)
		coordCfg.Probe = links.Exists
	}

	coord, err := coordinator.New(coordCfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		sig := <-sigCh
		logger.Printf("Received %v, shutting down", sig)
		cancel()
	}()

	if runOnce {
		return coord.RunOnce(ctx)
	}
	return coord.Run(ctx)
}
