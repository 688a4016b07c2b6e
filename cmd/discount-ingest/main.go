// Command discount-ingest loads bulk promotional discount codes from
// gzip-compressed dump files. A code is accepted only when enough independent
// dumps agree on it; membership across dumps is checked with per-file bloom
// filters to keep memory bounded on dumps with hundreds of millions of lines.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/digigoods/internal/repository"
)

const (
	bloomCapacity = 120_000_000
	bloomFPR      = 0.001
	progressEvery = 10_000_000
	minCodeLen    = 8
	maxCodeLen    = 10
)

type ingestConfig struct {
	dataDir     string
	databaseURL string
	dumps       int
	minSources  int
	validDays   int
}

// codePromotion describes the discount granted for a known promotional code.
type codePromotion struct {
	percentage string
	uses       int
}

var codePromotions = map[string]codePromotion{
	"FIFTYOFF": {percentage: "50", uses: 100},
	"SIXTYOFF": {percentage: "60", uses: 50},
	"GNULINUX": {percentage: "15", uses: 10_000},
	"HAPPYHRS": {percentage: "18", uses: 5_000},
}

var defaultPromotion = codePromotion{
	percentage: "10",
	uses:       1_000,
}

func main() {
	var cfg ingestConfig

	flag.StringVar(&cfg.dataDir, "data-dir", "data", "directory containing promobaseN.gz files")
	flag.StringVar(&cfg.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&cfg.dumps, "dumps", 3, "number of promobaseN.gz dump files")
	flag.IntVar(&cfg.minSources, "min-sources", 2, "dumps a code must appear in to be accepted")
	flag.IntVar(&cfg.validDays, "valid-days", 30, "validity window in days for ingested codes")
	flag.Parse()

	if cfg.databaseURL == "" {
		cfg.databaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if cfg.minSources < 2 || cfg.minSources > cfg.dumps {
		slog.Error("min-sources must be between 2 and the dump count",
			slog.Int("min_sources", cfg.minSources),
			slog.Int("dumps", cfg.dumps),
		)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		slog.Error("discount ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("discount ingest completed successfully")
}

func run(ctx context.Context, cfg ingestConfig) error {
	files := make([]string, cfg.dumps)
	for i := range files {
		files[i] = filepath.Join(cfg.dataDir, fmt.Sprintf("promobase%d.gz", i+1))
		if _, err := os.Stat(files[i]); err != nil {
			return errors.Wrapf(err, "check file %s", files[i])
		}
	}

	slog.Info("pass 1: building bloom filters", slog.Int("dumps", cfg.dumps))

	filters, err := buildFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: cross-checking codes", slog.Int("min_sources", cfg.minSources))

	validCodes, err := crossCheck(ctx, files, filters, cfg.minSources)
	if err != nil {
		return errors.Wrap(err, "cross-check codes")
	}

	slog.Info("valid codes found", slog.Int("count", len(validCodes)))

	if len(validCodes) == 0 {
		slog.Info("no valid codes to insert")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, cfg.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writeDiscounts(ctx, pool, validCodes, cfg.validDays); err != nil {
		return errors.Wrap(err, "write discounts to database")
	}

	return nil
}

// buildFilters streams every dump once and fills one bloom filter per dump,
// concurrently.
func buildFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		filters[i] = filter

		g.Go(func() error {
			var count uint64
			err := eachCode(ctx, path, func(code string) {
				filter.AddString(code)
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 1 progress", slog.Int("dump", i+1), slog.Uint64("codes", count))
				}
			})
			if err != nil {
				return errors.Wrapf(err, "fill filter for dump %d", i+1)
			}
			slog.Info("pass 1 complete", slog.Int("dump", i+1), slog.Uint64("codes", count))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// crossCheck re-streams every dump and tests each code against the other
// dumps' filters, keeping codes that appear in at least minSources dumps.
// Each dump contributes one bit to a per-code source mask; the masks merge
// after all scans finish.
func crossCheck(ctx context.Context, files []string, filters []*bloom.BloomFilter, minSources int) ([]string, error) {
	masks := make([]map[string]uint, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			found := make(map[string]uint)
			var count uint64

			err := eachCode(ctx, path, func(code string) {
				count++
				if count%progressEvery == 0 {
					slog.Info("pass 2 progress", slog.Int("dump", i+1), slog.Uint64("codes", count))
				}
				for j, f := range filters {
					if j != i && f.TestString(code) {
						found[code] |= 1 << uint(i)
						break
					}
				}
			})
			if err != nil {
				return errors.Wrapf(err, "scan dump %d", i+1)
			}

			slog.Info("pass 2 complete",
				slog.Int("dump", i+1),
				slog.Uint64("codes", count),
				slog.Int("candidates", len(found)),
			)
			masks[i] = found
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]uint)
	for _, m := range masks {
		for code, mask := range m {
			merged[code] |= mask
		}
	}

	var valid []string
	for code, mask := range merged {
		// Every dump holding the code sets its own bit once any other dump's
		// filter confirms it, so the popcount is the source count.
		if bits.OnesCount(mask) >= minSources {
			valid = append(valid, code)
		}
	}
	return valid, nil
}

// eachCode streams a gzip-compressed dump line by line, invoking fn for every
// line whose length is within the accepted code range.
func eachCode(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if code := scanner.Text(); len(code) >= minCodeLen && len(code) <= maxCodeLen {
			fn(code)
		}
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}

const upsertDiscountSQL = `
INSERT INTO discounts (code, percentage, kind, valid_from, valid_until, remaining_uses)
VALUES ($1, $2, 'GENERAL', $3::date, $4::date, $5)
ON CONFLICT (code) DO UPDATE SET
	percentage = EXCLUDED.percentage,
	valid_until = EXCLUDED.valid_until,
	remaining_uses = EXCLUDED.remaining_uses
`

// writeDiscounts upserts all valid codes as general discounts with a
// validity window starting today.
func writeDiscounts(ctx context.Context, pool *pgxpool.Pool, codes []string, validDays int) error {
	slog.Info("writing discounts to database", slog.Int("count", len(codes)))

	from := time.Now().UTC().Format("2006-01-02")
	until := time.Now().UTC().AddDate(0, 0, validDays).Format("2006-01-02")

	for i, code := range codes {
		promo, ok := codePromotions[code]
		if !ok {
			promo = defaultPromotion
		}

		pct, err := decimal.NewFromString(promo.percentage)
		if err != nil {
			return errors.Wrapf(err, "parse percentage for code %s", code)
		}

		if _, err := pool.Exec(ctx, upsertDiscountSQL, code, pct, from, until, promo.uses); err != nil {
			return errors.Wrapf(err, "upsert discount %s", code)
		}

		if (i+1)%100 == 0 || i+1 == len(codes) {
			slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(codes)))
		}
	}

	return nil
}
