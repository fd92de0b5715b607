package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-jasa/internal/auth"
	"github.com/noah-isme/backend-jasa/internal/obs"
)

// Fixed identifiers so repeated runs upsert the same rows.
var (
	adminUserID   = uuid.MustParse("00000000-0000-4000-8000-000000000001")
	studioUserID  = uuid.MustParse("00000000-0000-4000-8000-000000000002")
	freelanceUser = uuid.MustParse("00000000-0000-4000-8000-000000000003")
	designCat     = uuid.MustParse("10000000-0000-4000-8000-000000000001")
)

type seedService struct {
	Title string
	Price int64
}

type seedSeller struct {
	UserID         uuid.UUID
	Name           string
	BusinessNumber string
	Services       []seedService
}

func main() {
	_ = godotenv.Load()
	logger := obs.NewLogger("console", "info")

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer conn.Close(context.Background())

	err = pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
		if err := seedCompany(ctx, tx); err != nil {
			return fmt.Errorf("company info: %w", err)
		}
		if _, err := tx.Exec(ctx, `INSERT INTO admins (user_id) VALUES ($1) ON CONFLICT DO NOTHING`, adminUserID); err != nil {
			return fmt.Errorf("admin: %w", err)
		}
		for _, s := range sellers() {
			if err := seedSellerWithServices(ctx, tx, s); err != nil {
				return fmt.Errorf("seller %s: %w", s.Name, err)
			}
		}
		return nil
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("seed")
	}
	logger.Info().Str("category_id", designCat.String()).Msg("seeding completed")

	printDevTokens(logger)
}

func sellers() []seedSeller {
	return []seedSeller{
		{
			UserID:         studioUserID,
			Name:           "Studio Haneul",
			BusinessNumber: "123-45-67890",
			Services: []seedService{
				{Title: "Logo design", Price: 150_000},
				{Title: "Brand identity package", Price: 900_000},
				{Title: "Business card design", Price: 50_000},
			},
		},
		{
			UserID: freelanceUser,
			Name:   "Minji Freelance",
			Services: []seedService{
				{Title: "Instagram feed templates", Price: 80_000},
				{Title: "Detail page design", Price: 300_000},
			},
		},
	}
}

func seedCompany(ctx context.Context, tx pgx.Tx) error {
	var exists bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM company_info WHERE is_active)`).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return nil
	}
	_, err := tx.Exec(ctx, `
INSERT INTO company_info (business_number, company_name, ceo_name, address, business_type, business_item, email)
VALUES ('220-81-00000', 'Jasa Market Inc.', 'Kim Jasa', 'Seoul, Gangnam-gu Teheran-ro 1', 'Service', 'Online advertising', 'tax@jasa.example')`)
	return err
}

func seedSellerWithServices(ctx context.Context, tx pgx.Tx, s seedSeller) error {
	var businessNumber, businessName, ceo *string
	if s.BusinessNumber != "" {
		businessNumber, businessName, ceo = &s.BusinessNumber, &s.Name, &s.Name
	}
	var sellerID uuid.UUID
	err := tx.QueryRow(ctx, `
INSERT INTO sellers (user_id, display_name, business_number, business_name, ceo_name, business_address, business_type, business_item)
VALUES ($1, $2, $3, $4, $5, 'Seoul', 'Service', 'Design')
ON CONFLICT (user_id) DO UPDATE SET display_name = EXCLUDED.display_name
RETURNING id`, s.UserID, s.Name, businessNumber, businessName, ceo).Scan(&sellerID)
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, svc := range s.Services {
		batch.Queue(`
INSERT INTO services (seller_id, category_id, title, price, status)
SELECT $1, $2, $3, $4, 'active'
WHERE NOT EXISTS (SELECT 1 FROM services WHERE seller_id = $1 AND title = $3)`,
			sellerID, designCat, svc.Title, svc.Price)
	}
	return tx.SendBatch(ctx, batch).Close()
}

// printDevTokens mints access tokens for local testing when JWT_SECRET is configured.
func printDevTokens(logger zerolog.Logger) {
	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		return
	}
	verifier, err := auth.NewVerifier(auth.VerifierConfig{
		Secret:   secret,
		Issuer:   strings.TrimSpace(os.Getenv("JWT_ISSUER")),
		Audience: strings.TrimSpace(os.Getenv("JWT_AUDIENCE")),
		Role:     envOr("JWT_ROLE", "authenticated"),
	})
	if err != nil {
		logger.Warn().Err(err).Msg("skip dev tokens")
		return
	}
	for name, id := range map[string]uuid.UUID{"admin": adminUserID, "studio": studioUserID, "freelance": freelanceUser} {
		token, err := verifier.Sign(id.String(), 24*time.Hour)
		if err != nil {
			logger.Warn().Err(err).Str("user", name).Msg("sign dev token")
			continue
		}
		fmt.Printf("%s\t%s\n", name, token)
	}
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
