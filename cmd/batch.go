package main

import (
	"bufio"
	"context"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/company-lookup/internal/model"
	"github.com/sells-group/company-lookup/internal/resolver"
)

var batchLimit int

var batchCmd = &cobra.Command{
	Use:   "batch <queries file>",
	Short: "Look up companies from a file, one name per line",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		queries, err := readQueries(args[0])
		if err != nil {
			return err
		}

		svc, st, err := initService(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		return processBatch(ctx, svc, queries, batchLimit, cfg.Batch.MaxConcurrent)
	},
}

// readQueries loads one query per line, skipping blanks and # comments.
func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "open queries file")
	}
	defer f.Close()

	var queries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		queries = append(queries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrap(err, "read queries file")
	}
	return queries, nil
}

// processBatch applies limit, then resolves queries concurrently.
// Individual failures are counted, not fatal.
func processBatch(ctx context.Context, svc *resolver.Service, queries []string, limit, concurrency int) error {
	if len(queries) == 0 {
		zap.L().Info("no queries to process")
		return nil
	}

	if limit > 0 && len(queries) > limit {
		queries = queries[:limit]
	}

	zap.L().Info("processing batch",
		zap.Int("queries", len(queries)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var cached, enriched, failed atomic.Int64

	for _, query := range queries {
		g.Go(func() error {
			log := zap.L().With(zap.String("query", query))

			result, err := svc.Lookup(gctx, query, "")
			if err != nil {
				failed.Add(1)
				log.Error("lookup failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			switch result.Source {
			case model.SourceCache:
				cached.Add(1)
			case model.SourceEnriched:
				enriched.Add(1)
			default:
				failed.Add(1)
				log.Warn("lookup degraded", zap.String("reason", result.Reason))
				return nil
			}

			log.Info("lookup complete",
				zap.String("source", string(result.Source)),
				zap.Int("employees", len(result.Employees)),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("cached", cached.Load()),
		zap.Int64("enriched", enriched.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return nil
}

func init() {
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max queries to process (0 = all)")
	rootCmd.AddCommand(batchCmd)
}
