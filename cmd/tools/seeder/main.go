// Seeder loads a development data set: an admin account, a small
// catalog with live promotions, and a welcome voucher. It is safe to
// run against an empty database after migrations.
package main

import (
	"context"
	"errors"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/jackc/pgx/v5"

	"github.com/tienda-labs/backend-tienda/internal/app"
	"github.com/tienda-labs/backend-tienda/internal/config"
	"github.com/tienda-labs/backend-tienda/internal/obs"
	"github.com/tienda-labs/backend-tienda/internal/promo"
	"github.com/tienda-labs/backend-tienda/internal/store"
	"github.com/tienda-labs/backend-tienda/internal/voucher"
)

func main() {
	cfg := config.MustLoad()
	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("service", "tienda-seeder").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.RunMigrations(cfg.DatabaseURL); err != nil {
		logger.Fatal().Err(err).Msg("run migrations")
	}

	pool, err := app.NewPool(ctx, cfg, "tienda-seeder")
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer pool.Close()

	st := store.New(pool)

	adminEmail := "admin@tienda.example"
	if _, err := st.GetUserByEmail(ctx, adminEmail); errors.Is(err, pgx.ErrNoRows) {
		hash, err := argon2id.CreateHash("cambiame-ya-123", argon2id.DefaultParams)
		if err != nil {
			logger.Fatal().Err(err).Msg("hash admin password")
		}
		if _, err := st.CreateUser(ctx, adminEmail, hash, "Administrador", "admin"); err != nil {
			logger.Fatal().Err(err).Msg("create admin user")
		}
		logger.Info().Str("email", adminEmail).Msg("admin user created")
	} else if err != nil {
		logger.Fatal().Err(err).Msg("look up admin user")
	}

	twoForOne, err := st.CreatePromotion(ctx, store.UpsertPromotionParams{
		Name:       "2x1 camisetas",
		Kind:       string(promo.KindBuyNPayM),
		BuySize:    2,
		PaidPerSet: 1,
		Active:     true,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("create 2x1 promotion")
	}
	fixedPrice, err := st.CreatePromotion(ctx, store.UpsertPromotionParams{
		Name:           "Jeans a 30000",
		Kind:           string(promo.KindFixedPrice),
		FixedUnitPrice: 30000,
		Active:         true,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("create fixed price promotion")
	}

	products := []store.UpsertProductParams{
		{Slug: "camiseta-basica", Title: "Camiseta básica", Description: "Algodón peinado, corte clásico.", Price: 10000, Stock: 120, Category: "camisetas", Published: true, PromotionID: twoForOne},
		{Slug: "jean-recto", Title: "Jean recto", Description: "Denim rígido de 14 oz.", Price: 40000, Stock: 60, Category: "jeans", Published: true, PromotionID: fixedPrice},
		{Slug: "zapatillas-urbanas", Title: "Zapatillas urbanas", Description: "Suela de goma vulcanizada.", Price: 55000, Stock: 35, Category: "zapatillas", Published: true},
		{Slug: "gorra-logo", Title: "Gorra con logo", Description: "Ajuste trasero regulable.", Price: 8000, Stock: 200, Category: "gorras", Published: true},
	}
	for _, p := range products {
		if _, err := st.CreateProduct(ctx, p); err != nil {
			logger.Fatal().Err(err).Str("slug", p.Slug).Msg("create product")
		}
	}

	// 10% off on orders above 20000, capped at 15000. Value is basis points.
	if _, err := st.CreateVoucher(ctx, store.UpsertVoucherParams{
		Code:        "BIENVENIDA10",
		Kind:        voucher.KindPercent,
		Value:       1000,
		MinSubtotal: 20000,
		MaxDiscount: 15000,
		Active:      true,
	}); err != nil {
		logger.Fatal().Err(err).Msg("create welcome voucher")
	}

	logger.Info().Int("products", len(products)).Msg("seed complete")
}
