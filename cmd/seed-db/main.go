// Command seed-db loads the menu catalog into PostgreSQL from a JSON
// file. Prices in the file are rupee decimals; they are converted to
// integer paise before storage.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/masalabox/cafe-pos/internal/domain/menu"
	"github.com/masalabox/cafe-pos/internal/repository"
)

type menuItemJSON struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"` // rupees, e.g. "120.50"
	IsParcel  bool            `json:"isParcel"`
	Available *bool           `json:"available"` // nil means available
}

func main() {
	var (
		databaseURL string
		menuFile    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&menuFile, "menu-file", "db/seed/menu.json", "path to menu JSON file")
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

	if err := run(ctx, databaseURL, menuFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, menuFile string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	return seedMenu(ctx, repository.NewMenuRepository(pool), menuFile)
}

func seedMenu(ctx context.Context, repo *repository.MenuRepository, menuFile string) error {
	slog.Info("reading menu file", slog.String("path", menuFile))

	data, err := os.ReadFile(menuFile)
	if err != nil {
		return errors.Wrap(err, "read menu file")
	}

	var items []menuItemJSON
	if err := json.Unmarshal(data, &items); err != nil {
		return errors.Wrap(err, "parse menu JSON")
	}

	slog.Info("upserting menu items", slog.Int("count", len(items)))

	for _, raw := range items {
		paise, err := rupeesToPaise(raw.Price)
		if err != nil {
			return errors.Wrapf(err, "item %s", raw.ID)
		}

		available := true
		if raw.Available != nil {
			available = *raw.Available
		}

		if err := repo.Upsert(ctx, menu.Item{
			ID:        raw.ID,
			Name:      raw.Name,
			UnitPrice: paise,
			IsParcel:  raw.IsParcel,
			Available: available,
		}); err != nil {
			return errors.Wrapf(err, "upsert menu item %s", raw.ID)
		}

		slog.Info("upserted menu item",
			slog.String("id", raw.ID),
			slog.String("name", raw.Name),
			slog.Int64("unit_price_paise", paise),
		)
	}

	return nil
}

// rupeesToPaise converts an exact rupee amount to paise. Prices with
// fractions of a paisa are rejected rather than rounded.
func rupeesToPaise(rupees decimal.Decimal) (int64, error) {
	paise := rupees.Shift(2)
	if !paise.IsInteger() {
		return 0, errors.Errorf("price %s has sub-paisa precision", rupees)
	}
	if paise.IsNegative() {
		return 0, errors.Errorf("price %s is negative", rupees)
	}
	return paise.IntPart(), nil
}
