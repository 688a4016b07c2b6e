// Command seed-db loads the seed fixture (users, products, discounts) into
// the database and registers an access token for the first seeded user.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/digigoods/internal/repository"
)

type seedFile struct {
	Users     []seedUser     `json:"users"`
	Products  []seedProduct  `json:"products"`
	Discounts []seedDiscount `json:"discounts"`
}

type seedUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type seedProduct struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

type seedDiscount struct {
	Code               string          `json:"code"`
	Percentage         decimal.Decimal `json:"percentage"`
	Kind               string          `json:"kind"`
	ValidFrom          string          `json:"valid_from"`
	ValidUntil         string          `json:"valid_until"`
	RemainingUses      int             `json:"remaining_uses"`
	ApplicableProducts []int64         `json:"applicable_products"`
}

func main() {
	var (
		databaseURL string
		seedPath    string
		token       string
		tokenPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "seed-file", "db/seed/seed.json", "path to seed JSON file")
	flag.StringVar(&token, "token", "", "access token to register for the first seeded user (or DIGI_SEED_TOKEN env)")
	flag.StringVar(&tokenPepper, "token-pepper", "", "HMAC pepper for token hashing (or DIGI_TOKEN_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if token == "" {
		token = os.Getenv("DIGI_SEED_TOKEN")
	}
	if tokenPepper == "" {
		tokenPepper = os.Getenv("DIGI_TOKEN_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedPath, token, tokenPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedPath, token, pepper string) error {
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

	data, err := os.ReadFile(seedPath)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}

	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Wrap(err, "parse seed file")
	}

	if err := seedUsers(ctx, pool, seed.Users); err != nil {
		return errors.Wrap(err, "seed users")
	}
	if err := seedProducts(ctx, pool, seed.Products); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedDiscounts(ctx, pool, seed.Discounts); err != nil {
		return errors.Wrap(err, "seed discounts")
	}

	if token != "" && len(seed.Users) > 0 {
		if err := registerToken(ctx, pool, seed.Users[0].ID, token, pepper); err != nil {
			return errors.Wrap(err, "register token")
		}
	}

	return nil
}

func seedUsers(ctx context.Context, pool *pgxpool.Pool, users []seedUser) error {
	for _, u := range users {
		_, err := pool.Exec(ctx,
			`INSERT INTO users (id, username) VALUES ($1, $2)
			 ON CONFLICT (id) DO UPDATE SET username = EXCLUDED.username`,
			u.ID, u.Username,
		)
		if err != nil {
			return errors.Wrapf(err, "user %q", u.Username)
		}
	}
	slog.Info("seeded users", slog.Int("count", len(users)))
	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, products []seedProduct) error {
	for _, p := range products {
		_, err := pool.Exec(ctx,
			`INSERT INTO products (id, name, price, stock) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price, stock = EXCLUDED.stock`,
			p.ID, p.Name, p.Price, p.Stock,
		)
		if err != nil {
			return errors.Wrapf(err, "product %q", p.Name)
		}
	}
	slog.Info("seeded products", slog.Int("count", len(products)))
	return nil
}

func seedDiscounts(ctx context.Context, pool *pgxpool.Pool, discounts []seedDiscount) error {
	for _, d := range discounts {
		_, err := pool.Exec(ctx,
			`INSERT INTO discounts (code, percentage, kind, valid_from, valid_until, remaining_uses)
			 VALUES ($1, $2, $3, $4::date, $5::date, $6)
			 ON CONFLICT (code) DO UPDATE SET percentage = EXCLUDED.percentage, kind = EXCLUDED.kind,
				valid_from = EXCLUDED.valid_from, valid_until = EXCLUDED.valid_until,
				remaining_uses = EXCLUDED.remaining_uses`,
			d.Code, d.Percentage, d.Kind, d.ValidFrom, d.ValidUntil, d.RemainingUses,
		)
		if err != nil {
			return errors.Wrapf(err, "discount %q", d.Code)
		}

		for _, pid := range d.ApplicableProducts {
			_, err := pool.Exec(ctx,
				`INSERT INTO discount_products (discount_code, product_id) VALUES ($1, $2)
				 ON CONFLICT DO NOTHING`,
				d.Code, pid,
			)
			if err != nil {
				return errors.Wrapf(err, "discount %q product %d", d.Code, pid)
			}
		}
	}
	slog.Info("seeded discounts", slog.Int("count", len(discounts)))
	return nil
}

func registerToken(ctx context.Context, pool *pgxpool.Pool, userID int64, token, pepper string) error {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(token))
	hash := hex.EncodeToString(mac.Sum(nil))

	_, err := pool.Exec(ctx,
		`INSERT INTO access_tokens (user_id, token_hash, name) VALUES ($1, $2, 'seed')
		 ON CONFLICT (token_hash) DO NOTHING`,
		userID, hash,
	)
	if err != nil {
		return err
	}

	slog.Info("registered access token", slog.Int64("user_id", userID))
	return nil
}
