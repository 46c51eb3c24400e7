package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mmdatafocus/match_backend/config"
	"github.com/mmdatafocus/match_backend/models"
	"github.com/mmdatafocus/match_backend/utils"
	"github.com/mmdatafocus/match_backend/workflow"
	"github.com/spf13/cobra"
)

var businessId string

func main() {
	rootCmd := &cobra.Command{
		Use:           "match-sweep",
		Short:         "Three-way match operator tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&businessId, "business", "b", "", "Limit to one business id (default: all businesses)")

	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(migrateCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func sweepCmd() *cobra.Command {
	var (
		purchaseOrderIds []int
		retryRunId       uint
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Match every pending PO with an invoice, or retry a previous run",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			ctx := env.ctx

			req := workflow.SweepRequest{
				BusinessId:       businessId,
				PurchaseOrderIds: purchaseOrderIds,
				TriggeredBy:      models.SweepTriggeredManual,
			}
			if retryRunId > 0 {
				req, err = env.sweeper.RetryRequest(ctx, retryRunId)
				if err != nil {
					return err
				}
			}

			summary, err := env.sweeper.Sweep(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(summary)
		},
	}
	cmd.Flags().IntSliceVar(&purchaseOrderIds, "po", nil, "Only these purchase order ids")
	cmd.Flags().UintVar(&retryRunId, "retry", 0, "Re-process the errored POs of this sweep run")
	return cmd
}

func runCmd() *cobra.Command {
	var purchaseOrderId int
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Match a single purchase order and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			if purchaseOrderId <= 0 {
				return fmt.Errorf("--po is required")
			}
			env, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			result, err := env.sweeper.Matcher.RunPurchaseOrderMatch(env.ctx, purchaseOrderId, nil)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}
	cmd.Flags().IntVar(&purchaseOrderId, "po", 0, "Purchase order id")
	return cmd
}

func exportCmd() *cobra.Command {
	var (
		runId  uint
		out    string
		bucket string
		toGCS  bool
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the XLSX report of a sweep run to a file or a GCS bucket",
		RunE: func(cmd *cobra.Command, args []string) error {
			if runId == 0 {
				return fmt.Errorf("--run is required")
			}
			env, err := connect(cmd.Context())
			if err != nil {
				return err
			}
			location, err := exportSweepRun(env.ctx, env.store, runId, out, toGCS, bucket)
			if err != nil {
				return err
			}
			fmt.Println(location)
			return nil
		},
	}
	cmd.Flags().UintVar(&runId, "run", 0, "Sweep run id")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default match-sweep-<run>.xlsx)")
	cmd.Flags().BoolVar(&toGCS, "gcs", false, "Upload to Google Cloud Storage instead of a local file")
	cmd.Flags().StringVar(&bucket, "bucket", "", "GCS bucket (default MATCH_REPORT_BUCKET or GCS_BUCKET)")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the match tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.ConnectDatabase(); err != nil {
				return err
			}
			return models.MigrateTable(config.GetDB())
		},
	}
}

type cliEnv struct {
	ctx     context.Context
	store   *models.MatchStore
	sweeper *workflow.Sweeper
}

func connect(ctx context.Context) (*cliEnv, error) {
	logger := config.GetLogger()
	policies, err := config.LoadMatchPolicySet()
	if err != nil {
		return nil, err
	}
	if err := config.ConnectDatabase(); err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if os.Getenv("REDIS_ADDRESS") != "" {
		config.ConnectRedisWithRetry(ctx)
	}

	if businessId != "" {
		ctx = utils.SetBusinessIdInContext(ctx, businessId)
	} else {
		ctx = utils.WithoutTenantScope(ctx)
	}

	store := models.NewMatchStore(config.GetDB())
	store.RecordHistory = config.MatchResultHistoryEnabled()
	locker := workflow.NewRedisPurchaseOrderLocker(config.GetRedisLock(), logger)
	publisher := workflow.NewPubSubSummaryPublisher(config.MatchSummaryTopic())
	matcher := workflow.NewMatcher(store, policies, locker, publisher, logger)
	sweeper := workflow.NewSweeper(matcher, store, config.NewDefaultMatchSweepConfig(), logger)

	return &cliEnv{ctx: ctx, store: store, sweeper: sweeper}, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
