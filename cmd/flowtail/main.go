// flowtail muestra el log de flujo de mensajes y sigue lo que se va añadiendo.
// Con -since y CLICKHOUSE_ADDR configurado imprime además el recuento por topic.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/davicafu/deliverylab/internal/config"
	"github.com/davicafu/deliverylab/internal/infra/analytics/clickhouse"
	"github.com/davicafu/deliverylab/internal/infra/flowlog"
	"github.com/davicafu/deliverylab/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	path := flag.String("file", cfg.FlowLogPath, "flow log file")
	interval := flag.Duration("interval", 500*time.Millisecond, "poll interval while following")
	since := flag.Duration("since", 0, "print per-topic counts from ClickHouse for this window and exit")
	flag.Parse()

	logger.Init(cfg.LogLevel)
	log := logger.Logger()
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *since > 0 {
		if err := printCounts(ctx, cfg, *since, log); err != nil {
			log.Fatal("❌ Could not read flow analytics", zap.Error(err))
		}
		return
	}

	fmt.Printf("📜 Following %s (Ctrl+C to stop)\n\n", *path)
	if err := flowlog.Follow(ctx, *path, *interval, os.Stdout); err != nil {
		log.Fatal("❌ Could not follow flow log", zap.String("file", *path), zap.Error(err))
	}
}

func printCounts(ctx context.Context, cfg *config.Config, window time.Duration, log *zap.Logger) error {
	if cfg.ClickHouseAddr == "" {
		return fmt.Errorf("CLICKHOUSE_ADDR is not set")
	}
	repo, err := clickhouse.NewFlowAnalyticsRepo(cfg.ClickHouseAddr, cfg.ClickHouseDB, log)
	if err != nil {
		return err
	}
	defer repo.Close()

	counts, err := repo.CountByTopic(ctx, time.Now().Add(-window))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TOPIC\tKIND\tMESSAGES")
	for _, c := range counts {
		fmt.Fprintf(w, "%s\t%s\t%d\n", c.Topic, c.Kind, c.Count)
	}
	return w.Flush()
}
