// Package main provides a CLI tool for seeding the database with demo data
// and printing a development access token.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"stockflow/internal/app"
	"stockflow/internal/config"
	"stockflow/internal/core/types"
	"stockflow/internal/domain/auth"
	"stockflow/internal/domain/location"
	"stockflow/internal/domain/purchasing"
	"stockflow/internal/infrastructure/storage/postgres"
	"stockflow/pkg/logger"
)

func main() {
	envFile := flag.String("env", "", "path to .env file")
	tenantID := flag.String("tenant", "demo", "tenant to seed")
	userID := flag.String("user", "seed-admin", "user id placed in the printed token")
	flag.Parse()

	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
		Service:     "stockflow-seed",
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalw("failed to load config", "error", err)
	}
	if cfg.Storage.Driver != config.DriverPostgres {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	ctx := context.Background()

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(cfg.Storage.DatabaseURL))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	repos, err := app.Postgres(pool, app.Options{IdempotencyTTL: cfg.Idempotency.TTL})
	if err != nil {
		log.Fatalw("failed to initialize repositories", "error", err)
	}
	services := app.NewServices(repos, app.Options{})

	if err := seedDemoData(ctx, services, *tenantID, log); err != nil {
		log.Fatalw("failed to seed demo data", "error", err)
	}

	jwtConfig := auth.DefaultJWTConfig(cfg.Auth.JWTSecret)
	jwtConfig.Issuer = cfg.Auth.JWTIssuer
	token, expiresAt, err := auth.NewJWTService(jwtConfig).GenerateAccessToken(*userID, *tenantID, "", nil)
	if err != nil {
		log.Fatalw("failed to issue token", "error", err)
	}

	log.Info("seeding completed successfully")
	fmt.Printf("\nAccess token for tenant %q (expires %s):\n%s\n", *tenantID, expiresAt.Format("2006-01-02 15:04:05"), token)
}

type seedMaterial struct {
	name    string
	ordered int64
}

var demoMaterials = []seedMaterial{
	{name: "Portland Cement 42.5", ordered: 120},
	{name: "Rebar 12mm", ordered: 800},
	{name: "Plywood 18mm", ordered: 60},
}

func seedDemoData(ctx context.Context, services *app.Services, tenantID string, log *logger.Logger) error {
	for _, l := range []struct {
		name string
		typ  location.Type
	}{
		{"Central Warehouse", location.TypeWarehouse},
		{"North Site", location.TypeSite},
		{"Truck 07", location.TypeVehicle},
	} {
		loc, err := services.Locations.Create(ctx, tenantID, l.name, l.typ)
		if err != nil {
			return fmt.Errorf("create location %s: %w", l.name, err)
		}
		log.Infow("created location", "id", loc.ID, "name", loc.Name)
	}

	lines := make([]purchasing.Line, 0, len(demoMaterials))
	for _, sm := range demoMaterials {
		m, err := services.Purchasing.CreateMaterial(ctx, purchasing.Material{TenantID: tenantID, Name: sm.name})
		if err != nil {
			return fmt.Errorf("create material %s: %w", sm.name, err)
		}
		log.Infow("created material", "id", m.ID, "name", m.Name)
		lines = append(lines, purchasing.Line{
			MaterialID:      m.ID,
			MaterialName:    m.Name,
			OrderedQuantity: types.NewQuantity(sm.ordered),
		})
	}

	view, err := services.Purchasing.CreateOrder(ctx, purchasing.PurchaseOrder{
		TenantID: tenantID,
		PONumber: "PO-DEMO-0001",
		Status:   purchasing.OrderApproved,
	}, lines)
	if err != nil {
		return fmt.Errorf("create purchase order: %w", err)
	}
	log.Infow("created purchase order", "id", view.Order.ID, "po_number", view.Order.PONumber, "lines", len(view.Lines))
	return nil
}
