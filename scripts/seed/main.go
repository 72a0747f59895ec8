package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/auth"
	"github.com/odyssey-erp/odyssey-ledger/internal/hr/leave"
	"github.com/odyssey-erp/odyssey-ledger/internal/inventory"
	"github.com/odyssey-erp/odyssey-ledger/internal/masterdata"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
)

func main() {
	ctx := context.Background()
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := db.Migrate(cfg.PGDSN, "up"); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	pool, err := db.New(ctx, cfg.PGDSN, db.PoolOptions{MaxConns: 4})
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()
	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		log.Fatalf("connect redis: %v", err)
	}
	defer redisClient.Close() //nolint:errcheck

	services := app.NewServices(cfg, pool, redisClient, observability.NewMetrics(), app.NewLogger(cfg))
	org := uuid.New()
	if raw := os.Getenv("SEED_ORG_ID"); raw != "" {
		if org, err = uuid.Parse(raw); err != nil {
			log.Fatalf("SEED_ORG_ID: %v", err)
		}
	}

	fmt.Println("→ Seeding master data...")
	products, warehouse, err := seedMasterData(ctx, services.MasterData, org)
	if err != nil {
		log.Fatalf("seed master data: %v", err)
	}

	fmt.Println("→ Seeding opening stock...")
	if err := seedStock(ctx, services.Inventory, org, warehouse, products); err != nil {
		log.Fatalf("seed stock: %v", err)
	}

	fmt.Println("→ Seeding employees and leave types...")
	if err := seedHR(ctx, services.Leave, org); err != nil {
		log.Fatalf("seed hr: %v", err)
	}

	token, err := auth.NewTokens(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL).Issue(shared.Principal{
		UserID: uuid.New(),
		OrgID:  org,
		Role:   shared.RoleAdmin,
	})
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}

	fmt.Println("✓ Seed complete at", time.Now().Format(time.RFC3339))
	fmt.Println("  org:  ", org)
	fmt.Println("  token:", token)
}

func seedMasterData(ctx context.Context, md *masterdata.Service, org uuid.UUID) ([]masterdata.Product, uuid.UUID, error) {
	partners := []masterdata.CreatePartnerRequest{
		{Name: "Anadolu Gıda A.Ş.", Kind: "customer", Email: "orders@anadolu.example"},
		{Name: "Ege Tekstil Ltd.", Kind: "customer", TaxNumber: "1234567890"},
		{Name: "Marmara Lojistik", Kind: "both"},
	}
	for _, p := range partners {
		if _, err := md.CreatePartner(ctx, org, p); err != nil {
			return nil, uuid.Nil, err
		}
	}

	specs := []struct {
		sku, name, price, restock string
	}{
		{"WID-001", "Standard widget", "120.00", "25"},
		{"WID-002", "Heavy widget", "349.90", "10"},
		{"SRV-001", "Installation service", "750.00", "0"},
	}
	products := make([]masterdata.Product, 0, len(specs))
	for _, spec := range specs {
		product, err := md.CreateProduct(ctx, org, masterdata.CreateProductRequest{
			SKU:          spec.sku,
			Name:         spec.name,
			Price:        decimal.RequireFromString(spec.price),
			RestockLevel: decimal.RequireFromString(spec.restock),
		})
		if err != nil {
			return nil, uuid.Nil, err
		}
		products = append(products, product)
	}

	primary, err := md.CreateWarehouse(ctx, org, masterdata.CreateWarehouseRequest{Code: "IST", Name: "Istanbul main", IsDefault: true})
	if err != nil {
		return nil, uuid.Nil, err
	}
	if _, err := md.CreateWarehouse(ctx, org, masterdata.CreateWarehouseRequest{Code: "IZM", Name: "Izmir depot"}); err != nil {
		return nil, uuid.Nil, err
	}
	return products, primary.ID, nil
}

func seedStock(ctx context.Context, stock *inventory.Service, org, warehouse uuid.UUID, products []masterdata.Product) error {
	quantities := []string{"100", "8", ""}
	for i, product := range products {
		if quantities[i] == "" {
			continue
		}
		if _, err := stock.CreateMovement(ctx, org, inventory.MovementInput{
			ProductID:   product.ID,
			WarehouseID: warehouse,
			Direction:   inventory.DirectionIn,
			Quantity:    decimal.RequireFromString(quantities[i]),
			Reason:      "opening balance",
			DocumentNo:  "SEED",
		}); err != nil {
			return err
		}
	}
	return nil
}

func seedHR(ctx context.Context, svc *leave.Service, org uuid.UUID) error {
	noApproval := false
	types := []leave.LeaveTypeRequest{
		{Code: "ANNUAL", Name: "Annual leave", IsAnnual: true},
		{Code: "SICK", Name: "Sick leave"},
		{Code: "REMOTE", Name: "Remote day", RequiresApproval: &noApproval},
	}
	for _, t := range types {
		if _, err := svc.CreateType(ctx, org, t); err != nil {
			return err
		}
	}
	employees := []leave.CreateEmployeeRequest{
		{Code: "E-001", FullName: "Deniz Yılmaz"},
		{Code: "E-002", FullName: "Kerem Aksoy"},
	}
	for _, e := range employees {
		if _, err := svc.CreateEmployee(ctx, org, e); err != nil {
			return err
		}
	}
	return nil
}
