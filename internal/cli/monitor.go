package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ZeroSumQuant/cake/internal/bus"
	"github.com/ZeroSumQuant/cake/internal/config"
	"github.com/ZeroSumQuant/cake/internal/controller"
	"github.com/ZeroSumQuant/cake/internal/escalation"
	"github.com/ZeroSumQuant/cake/internal/operator"
	"github.com/ZeroSumQuant/cake/internal/source"
	"github.com/ZeroSumQuant/cake/internal/watchdog"
)

var (
	monitorFile  string
	monitorKafka bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Watch an agent transcript and intervene on repeated failures",
	Long: `Runs the supervisory loop: transcript lines are scanned for error
signatures, repeated failures are remembered in RecallDB, and interventions
(or, past the threshold, escalation notices) are produced.

By default the transcript is read from stdin. Use --file to follow an
append-only transcript log, or --kafka to consume the configured topic.`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().StringVarP(&monitorFile, "file", "f", "", "Follow this transcript file instead of stdin")
	monitorCmd.Flags().BoolVar(&monitorKafka, "kafka", false, "Consume the configured Kafka transcript topic")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open recall db: %w", err)
	}
	defer store.Close()

	errRules, err := errorRuleSet(cfg)
	if err != nil {
		return err
	}

	src, err := pickSource(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := bus.NewEventBus(cfg.Watchdog.LineBuffer)
	wd := watchdog.New(errRules, b, cfg.Watchdog.DetectionBudget())
	op := operator.New(nil, nil)
	dec := escalation.NewDecider(
		cfg.Escalation.RepeatThreshold,
		cfg.Escalation.MaxAutoRetries,
		cfg.Escalation.StallAfter,
		nil,
	)
	ctrl := controller.New(b, store, op, dec, cfg.Recall.TTL())

	var notifier escalation.Notifier = escalation.LogNotifier{}
	if cfg.Notify.Slack.Enabled {
		notifier = escalation.NewSlackNotifier(cfg.Notify.Slack.Token, cfg.Notify.Slack.Channel)
	}
	delivery := escalation.NewDeliveryWorker(store, notifier, cfg.Escalation.DeliveryRetries)
	b.SubscribeNotices(func(n *bus.EscalationNotice) {
		delivery.Enqueue(ctx, n)
	})

	if err := src.Start(ctx); err != nil {
		return fmt.Errorf("start transcript source: %w", err)
	}

	// Interventions go to stdout so a wrapping harness can feed them back
	// to the agent.
	go func() {
		for msg := range b.Interventions() {
			fmt.Println(msg.Content)
		}
	}()

	purgeDone := make(chan struct{})
	defer close(purgeDone)
	go store.RunPurge(cfg.Recall.PurgeInterval, purgeDone)
	go delivery.Run(ctx)
	go func() {
		if err := wd.Run(ctx, src.Lines()); err != nil && ctx.Err() == nil {
			slog.Error("Watchdog exited", "error", err)
		}
		stop() // transcript ended; wind the session down
	}()

	slog.Info("cake monitor running",
		"ttl", cfg.Recall.TTL(),
		"repeat_threshold", cfg.Escalation.RepeatThreshold,
		"detection_budget", cfg.Watchdog.DetectionBudget())

	if err := ctrl.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}

func pickSource(cfg *config.Config) (source.Source, error) {
	switch {
	case monitorKafka || (monitorFile == "" && cfg.Sources.Kafka.Enabled):
		k := cfg.Sources.Kafka
		return source.NewKafkaSource(k.Brokers, k.Topic, k.ConsumerGroup, cfg.Watchdog.LineBuffer), nil
	case monitorFile != "":
		return source.NewFileSource(monitorFile, cfg.Watchdog.LineBuffer), nil
	case cfg.Sources.File.Enabled && cfg.Sources.File.Path != "":
		return source.NewFileSource(cfg.Sources.File.Path, cfg.Watchdog.LineBuffer), nil
	default:
		return source.NewReaderSource(os.Stdin, cfg.Watchdog.LineBuffer), nil
	}
}
