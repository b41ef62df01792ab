// Command menu-ingest imports the menu catalog from gzipped terminal
// export files. Each POS terminal dumps its full menu as one
// menuexportN.gz; an item code is trusted only when at least two exports
// agree on it, which filters out codes a single terminal invented or
// corrupted.
//
// The run is two passes over the files: pass 1 builds one bloom filter of
// item codes per file, pass 2 re-streams each file and keeps lines whose
// code tests positive in another file's filter. Both passes stream the
// files concurrently.
package main

import (
	"bufio"
	"context"
	"flag"
	"log/slog"
	"math/bits"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/masalabox/cafe-pos/internal/domain/menu"
	"github.com/masalabox/cafe-pos/internal/repository"
)

const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.0001
	maxFiles      = 32 // file membership is tracked in a uint bitmask
	progressEvery = 100_000
)

// exportLine is one parsed menu export record:
//
//	code|name|price_rupees|flags
//
// where flags may contain "parcel".
type exportLine struct {
	code     string
	name     string
	price    string
	isParcel bool
}

func parseExportLine(s string) (exportLine, bool) {
	parts := strings.Split(s, "|")
	if len(parts) < 3 {
		return exportLine{}, false
	}
	l := exportLine{
		code:  strings.TrimSpace(parts[0]),
		name:  strings.TrimSpace(parts[1]),
		price: strings.TrimSpace(parts[2]),
	}
	if l.code == "" || l.name == "" || l.price == "" {
		return exportLine{}, false
	}
	if len(parts) > 3 {
		l.isParcel = strings.Contains(parts[3], "parcel")
	}
	return l, true
}

// fileResult holds candidate items found in a single file during pass 2.
type fileResult struct {
	seen  map[string]uint // code -> bitmask of files it was seen in
	items map[string]exportLine
}

func main() {
	var (
		dataDir     string
		databaseURL string
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing menuexportN.gz files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("menu ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("menu ingest completed successfully")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files, err := filepath.Glob(filepath.Join(dataDir, "menuexport*.gz"))
	if err != nil {
		return errors.Wrap(err, "list export files")
	}
	if len(files) < 2 {
		return errors.Errorf("need at least 2 export files to cross-check, found %d", len(files))
	}
	if len(files) > maxFiles {
		return errors.Errorf("too many export files: %d (max %d)", len(files), maxFiles)
	}

	// Pass 1: one bloom filter of item codes per file.
	slog.Info("pass 1: building bloom filters", slog.Int("files", len(files)))

	filters, err := buildBloomFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	// Pass 2: keep items whose code appears in 2+ files.
	slog.Info("pass 2: cross-checking item codes")

	items, err := findTrustedItems(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "cross-check items")
	}

	slog.Info("trusted items found", slog.Int("count", len(items)))

	if len(items) == 0 {
		slog.Info("no items to insert")
		return nil
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	return writeItems(ctx, repository.NewMenuRepository(pool), items)
}

// buildBloomFilters creates one bloom filter per file, concurrently.
func buildBloomFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(buildFilterForFile(ctx, i, f, filters))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return filters, nil
}

func buildFilterForFile(ctx context.Context, idx int, path string, filters []*bloom.BloomFilter) func() error {
	return func() error {
		filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
		var count uint64

		if err := streamGzFile(ctx, path, func(line string) {
			l, ok := parseExportLine(line)
			if !ok {
				return
			}
			filter.AddString(l.code)
			count++
			if count%progressEvery == 0 {
				slog.Info("pass 1 progress", slog.Int("file", idx+1), slog.Uint64("lines", count))
			}
		}); err != nil {
			return errors.Wrapf(err, "build filter for file %d", idx+1)
		}

		slog.Info("pass 1 complete", slog.Int("file", idx+1), slog.Uint64("total_lines", count))

		filters[idx] = filter
		return nil
	}
}

// findTrustedItems re-streams each file and checks codes against OTHER
// files' bloom filters. An item is trusted if its code appears in 2 or
// more files; field values come from the lowest-numbered file that carries
// the code.
func findTrustedItems(ctx context.Context, files []string, filters []*bloom.BloomFilter) (map[string]exportLine, error) {
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(findCandidatesInFile(ctx, i, f, filters, results))
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge bitmasks from all files.
	merged := make(map[string]uint)
	for _, r := range results {
		for code, mask := range r.seen {
			merged[code] |= mask
		}
	}

	trusted := make(map[string]exportLine)
	for code, mask := range merged {
		if bits.OnesCount(mask) < 2 {
			continue
		}
		for _, r := range results {
			if l, ok := r.items[code]; ok {
				trusted[code] = l
				break
			}
		}
	}

	return trusted, nil
}

func findCandidatesInFile(
	ctx context.Context,
	idx int,
	path string,
	filters []*bloom.BloomFilter,
	results []fileResult,
) func() error {
	return func() error {
		seen := make(map[string]uint)
		items := make(map[string]exportLine)
		fileBit := uint(1) << uint(idx)
		var count uint64

		if err := streamGzFile(ctx, path, func(line string) {
			l, ok := parseExportLine(line)
			if !ok {
				return
			}

			count++
			if count%progressEvery == 0 {
				slog.Info("pass 2 progress", slog.Int("file", idx+1), slog.Uint64("lines", count))
			}

			// Does this code appear in any OTHER file's bloom filter?
			for j, f := range filters {
				if j == idx {
					continue
				}
				if f.TestString(l.code) {
					seen[l.code] |= fileBit
					if _, dup := items[l.code]; !dup {
						items[l.code] = l
					}
					break
				}
			}
		}); err != nil {
			return errors.Wrapf(err, "scan file %d for candidates", idx+1)
		}

		slog.Info("pass 2 complete",
			slog.Int("file", idx+1),
			slog.Uint64("total_lines", count),
			slog.Int("candidates", len(seen)),
		)

		results[idx] = fileResult{seen: seen, items: items}
		return nil
	}
}

// streamGzFile opens a gzip-compressed file and calls fn for each line.
func streamGzFile(ctx context.Context, path string, fn func(line string)) error {
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
		fn(scanner.Text())
	}

	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}

	return nil
}

// writeItems upserts all trusted items into the catalog.
func writeItems(ctx context.Context, repo *repository.MenuRepository, items map[string]exportLine) error {
	slog.Info("writing menu items to database", slog.Int("count", len(items)))

	written := 0
	for code, l := range items {
		price, err := decimal.NewFromString(l.price)
		if err != nil {
			return errors.Wrapf(err, "parse price for item %s", code)
		}
		paise := price.Shift(2)
		if !paise.IsInteger() || paise.IsNegative() {
			return errors.Errorf("item %s: price %s is not a valid rupee amount", code, l.price)
		}

		if err := repo.Upsert(ctx, menu.Item{
			ID:        code,
			Name:      l.name,
			UnitPrice: paise.IntPart(),
			IsParcel:  l.isParcel,
			Available: true,
		}); err != nil {
			return errors.Wrapf(err, "upsert menu item %s", code)
		}

		written++
		if written%100 == 0 || written == len(items) {
			slog.Info("write progress", slog.Int("written", written), slog.Int("total", len(items)))
		}
	}

	return nil
}
