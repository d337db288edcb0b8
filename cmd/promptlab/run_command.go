package main

import (
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/ahrav/promptlab/infrastructure/llm"
	"github.com/ahrav/promptlab/infrastructure/middleware"
	"github.com/ahrav/promptlab/infrastructure/store"
	"github.com/ahrav/promptlab/internal/application"
	"github.com/ahrav/promptlab/internal/engine"
	"github.com/ahrav/promptlab/internal/logging"
)

func newRunCommand(devLog *bool) *cobra.Command {
	var (
		configPath  string
		force       bool
		retryFailed bool
		dryRun      bool
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a batch evaluation described by a YAML run file",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(*devLog)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			runCfg, err := application.LoadRunConfig(configPath)
			if err != nil {
				return err
			}
			if concurrency > 0 {
				runCfg.Concurrency = concurrency
			}
			policy, err := runCfg.EnginePolicy()
			if err != nil {
				return err
			}

			resultStore, err := store.Open(runCfg.StorePath)
			if err != nil {
				return err
			}
			defer func() { _ = resultStore.Close() }()

			params := engine.RunParams{
				Sections:    runCfg.Sections,
				Queries:     runCfg.Queries,
				Dimensions:  runCfg.DomainDimensions(),
				Policy:      policy,
				Force:       force,
				RetryFailed: retryFailed,
				MaxTokens:   runCfg.MaxTokens,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if dryRun {
				// Dry runs make no remote calls, so no credential is needed.
				orch := engine.NewOrchestrator(noopClient{}, resultStore, nil, nil, logger, nil)
				plan, err := orch.DryRun(ctx, params)
				if err != nil {
					return err
				}
				out, _ := json.MarshalIndent(plan, "", "  ")
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			}

			clientEnv, err := application.LoadClientEnv()
			if err != nil {
				return err
			}

			metrics := middleware.NewPrometheusMetrics(prometheus.DefaultRegisterer)

			chain := []llm.Middleware{
				llm.AuditMiddleware(logger),
				llm.MetricsMiddleware(metrics),
				llm.TimeoutMiddleware(time.Duration(clientEnv.RequestTimeoutSeconds) * time.Second),
			}
			if clientEnv.RateLimitPerSecond > 0 {
				chain = append(chain,
					llm.RateLimitMiddleware(rate.Limit(clientEnv.RateLimitPerSecond), 1))
			}

			client, err := llm.NewClient(clientEnv.Provider, llm.ClientConfig{
				APIKey:     clientEnv.APIKey,
				Model:      clientEnv.Model,
				BaseURL:    clientEnv.BaseURL,
				Middleware: chain,
			})
			if err != nil {
				return err
			}

			scheduler := engine.NewScheduler(engine.SchedulerConfig{
				MaxConcurrency: runCfg.Concurrency,
				MaxAttempts:    runCfg.MaxAttempts,
			}, logger)
			scorer := engine.NewScoringPipeline(client, logger)
			orch := engine.NewOrchestrator(client, resultStore, scorer, scheduler, logger, metrics)

			summary, err := orch.Run(ctx, params)
			fmt.Fprintln(cmd.OutOrStdout(), summary.String())
			return err
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML run file (required)")
	cmd.Flags().BoolVar(&force, "force", false, "Recompute units whose records already exist")
	cmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "Re-run previously failed units instead of expanding the policy")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would run without making remote calls")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Override the run file's concurrency bound")
	_ = cmd.MarkFlagRequired("config")

	return cmd
}
