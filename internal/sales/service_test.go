package sales

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mercatohq/mercato-backend/internal/catalog"
	"github.com/mercatohq/mercato-backend/internal/inventory"
	"github.com/mercatohq/mercato-backend/pkg/enums"
	pkgerrors "github.com/mercatohq/mercato-backend/pkg/errors"
	"github.com/mercatohq/mercato-backend/pkg/outbox"
	"github.com/mercatohq/mercato-backend/pkg/pagination"
)

func setupSalesTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:sales_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	for _, ddl := range []string{
		`CREATE TABLE IF NOT EXISTS products (
  id TEXT PRIMARY KEY,
  sku TEXT NOT NULL UNIQUE,
  name TEXT NOT NULL,
  description TEXT,
  base_price NUMERIC NOT NULL,
  base_cost NUMERIC NOT NULL DEFAULT 0,
  discount_percent NUMERIC NOT NULL DEFAULT 0,
  images TEXT,
  is_active INTEGER NOT NULL DEFAULT 1,
  is_deleted INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS product_variants (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  signature TEXT NOT NULL,
  price_override NUMERIC,
  cost_override NUMERIC,
  stock INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  is_deleted INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS variant_attribute_values (
  variant_id TEXT NOT NULL,
  attribute_value_id TEXT NOT NULL,
  created_at DATETIME,
  PRIMARY KEY (variant_id, attribute_value_id)
);`,
		`CREATE TABLE IF NOT EXISTS attribute_values (
  id TEXT PRIMARY KEY,
  attribute_id TEXT NOT NULL,
  value TEXT NOT NULL,
  display_value TEXT NOT NULL,
  color_code TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS sales (
  id TEXT PRIMARY KEY,
  staff_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'completed',
  subtotal NUMERIC NOT NULL,
  total NUMERIC NOT NULL,
  voided_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS sale_items (
  id TEXT PRIMARY KEY,
  sale_id TEXT NOT NULL,
  variant_id TEXT NOT NULL,
  product_name TEXT NOT NULL,
  variant_name TEXT NOT NULL,
  unit_price NUMERIC NOT NULL,
  quantity INTEGER NOT NULL,
  line_total NUMERIC NOT NULL,
  created_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS stock_movements (
  id TEXT PRIMARY KEY,
  variant_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  reason TEXT NOT NULL,
  reference_id TEXT NOT NULL,
  created_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
	} {
		require.NoError(t, db.Exec(ddl).Error)
	}
	return db
}

type gormTxRunner struct {
	db *gorm.DB
}

func (g gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return g.db.WithContext(ctx).Transaction(fn)
}

func newSaleService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(
		NewRepository(db),
		gormTxRunner{db: db},
		catalog.NewRepository(db),
		inventory.NewLedger(),
		outbox.NewService(outbox.NewRepository(db), nil),
		nil,
	)
	require.NoError(t, err)
	return svc
}

func seedSaleVariant(t *testing.T, db *gorm.DB, name, price string, stock int) uuid.UUID {
	t.Helper()
	productID := uuid.New()
	require.NoError(t, db.Exec(
		`INSERT INTO products (id, sku, name, base_price, base_cost, discount_percent, is_active, is_deleted)
		 VALUES (?, ?, ?, ?, 0, 0, 1, 0)`,
		productID, "SKU-"+uuid.NewString()[:8], name, price,
	).Error)
	variantID := uuid.New()
	require.NoError(t, db.Exec(
		`INSERT INTO product_variants (id, product_id, signature, stock, is_active, is_deleted)
		 VALUES (?, ?, ?, ?, 1, 0)`,
		variantID, productID, variantID.String(), stock,
	).Error)
	return variantID
}

func saleVariantStock(t *testing.T, db *gorm.DB, variantID uuid.UUID) int {
	t.Helper()
	var stock int
	require.NoError(t, db.Table("product_variants").
		Select("stock").Where("id = ?", variantID).Scan(&stock).Error)
	return stock
}

func TestCreateSaleCompletesAndDecrements(t *testing.T) {
	t.Parallel()

	db := setupSalesTestDB(t)
	svc := newSaleService(t, db)
	ctx := context.Background()

	variantID := seedSaleVariant(t, db, "Espresso Beans", "14.00", 10)
	sale, err := svc.CreateSale(ctx, CreateSaleInput{
		StaffID: uuid.New(),
		Lines:   []LineInput{{VariantID: variantID, Quantity: 3, UnitPrice: decimal.NewFromFloat(12.50)}},
	})
	require.NoError(t, err)

	assert.Equal(t, enums.SaleStatusCompleted, sale.Status)
	require.Len(t, sale.Items, 1)
	assert.True(t, sale.Items[0].UnitPrice.Equal(decimal.NewFromFloat(12.50)), "snapshot keeps the register price")
	assert.True(t, sale.Subtotal.Equal(decimal.NewFromFloat(37.50)), "subtotal %s", sale.Subtotal)
	assert.Equal(t, 7, saleVariantStock(t, db, variantID))

	var eventType string
	require.NoError(t, db.Table("outbox_events").
		Select("event_type").Where("aggregate_id = ?", sale.ID).Scan(&eventType).Error)
	assert.Equal(t, "sale_completed", eventType)
}

func TestCreateSaleValidation(t *testing.T) {
	t.Parallel()

	db := setupSalesTestDB(t)
	svc := newSaleService(t, db)
	ctx := context.Background()

	_, err := svc.CreateSale(ctx, CreateSaleInput{StaffID: uuid.New()})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	variantID := seedSaleVariant(t, db, "Espresso Beans", "14.00", 10)
	_, err = svc.CreateSale(ctx, CreateSaleInput{
		Lines: []LineInput{{VariantID: variantID, Quantity: 1, UnitPrice: decimal.NewFromInt(14)}},
	})
	require.Error(t, err)
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code(), "staff id is required")
}

func TestCreateSaleInsufficientStockRollsBack(t *testing.T) {
	t.Parallel()

	db := setupSalesTestDB(t)
	svc := newSaleService(t, db)
	ctx := context.Background()

	variantID := seedSaleVariant(t, db, "Espresso Beans", "14.00", 2)
	_, err := svc.CreateSale(ctx, CreateSaleInput{
		StaffID: uuid.New(),
		Lines:   []LineInput{{VariantID: variantID, Quantity: 3, UnitPrice: decimal.NewFromInt(14)}},
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())

	var saleCount int64
	require.NoError(t, db.Table("sales").Count(&saleCount).Error)
	assert.Zero(t, saleCount)
	assert.Equal(t, 2, saleVariantStock(t, db, variantID))
}

func TestVoidSaleRestoresStockExactlyOnce(t *testing.T) {
	t.Parallel()

	db := setupSalesTestDB(t)
	svc := newSaleService(t, db)
	ctx := context.Background()

	variantID := seedSaleVariant(t, db, "Espresso Beans", "14.00", 10)
	sale, err := svc.CreateSale(ctx, CreateSaleInput{
		StaffID: uuid.New(),
		Lines:   []LineInput{{VariantID: variantID, Quantity: 3, UnitPrice: decimal.NewFromInt(14)}},
	})
	require.NoError(t, err)
	require.Equal(t, 7, saleVariantStock(t, db, variantID))

	voided, err := svc.VoidSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SaleStatusVoided, voided.Status)
	assert.NotNil(t, voided.VoidedAt)
	assert.Equal(t, 10, saleVariantStock(t, db, variantID))

	// voiding again is an idempotency error and must not restore again
	_, err = svc.VoidSale(ctx, sale.ID)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeAlreadyVoided, typed.Code())
	assert.Equal(t, 10, saleVariantStock(t, db, variantID))

	var movements []int
	require.NoError(t, db.Table("stock_movements").
		Where("reference_id = ?", sale.ID).
		Pluck("quantity", &movements).Error)
	assert.ElementsMatch(t, []int{-3, 3}, movements)
}

func TestListSalesNewestFirst(t *testing.T) {
	t.Parallel()

	db := setupSalesTestDB(t)
	svc := newSaleService(t, db)
	ctx := context.Background()

	variantID := seedSaleVariant(t, db, "Espresso Beans", "14.00", 50)
	staffID := uuid.New()
	for i := 0; i < 3; i++ {
		_, err := svc.CreateSale(ctx, CreateSaleInput{
			StaffID: staffID,
			Lines:   []LineInput{{VariantID: variantID, Quantity: 1, UnitPrice: decimal.NewFromInt(14)}},
		})
		require.NoError(t, err)
	}

	listed, err := svc.ListSales(ctx, staffID, pagination.Params{Limit: 10})
	require.NoError(t, err)
	require.Len(t, listed, 3)
	for i := 1; i < len(listed); i++ {
		assert.False(t, listed[i].CreatedAt.After(listed[i-1].CreatedAt))
	}

	other, err := svc.ListSales(ctx, uuid.New(), pagination.Params{})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestVoidUnknownSale(t *testing.T) {
	t.Parallel()

	svc := newSaleService(t, setupSalesTestDB(t))
	_, err := svc.VoidSale(context.Background(), uuid.New())
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
}
