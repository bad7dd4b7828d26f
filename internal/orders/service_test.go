package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mercatohq/mercato-backend/internal/cart"
	"github.com/mercatohq/mercato-backend/internal/catalog"
	"github.com/mercatohq/mercato-backend/internal/inventory"
	"github.com/mercatohq/mercato-backend/pkg/enums"
	pkgerrors "github.com/mercatohq/mercato-backend/pkg/errors"
	"github.com/mercatohq/mercato-backend/pkg/outbox"
	"github.com/mercatohq/mercato-backend/pkg/pagination"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
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
		`CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  subtotal NUMERIC NOT NULL,
  total NUMERIC NOT NULL,
  cancelled_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
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
		`CREATE TABLE IF NOT EXISTS carts (
  id TEXT PRIMARY KEY,
  session_token TEXT UNIQUE,
  customer_id TEXT UNIQUE,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS cart_items (
  id TEXT PRIMARY KEY,
  cart_id TEXT NOT NULL,
  variant_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  product_name TEXT NOT NULL,
  variant_name TEXT NOT NULL,
  image_url TEXT,
  unit_price NUMERIC NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
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

func newOrderService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(
		NewRepository(db),
		gormTxRunner{db: db},
		catalog.NewRepository(db),
		cart.NewRepository(db),
		inventory.NewLedger(),
		outbox.NewService(outbox.NewRepository(db), nil),
		nil,
	)
	require.NoError(t, err)
	return svc
}

func seedOrderVariant(t *testing.T, db *gorm.DB, name, price string, stock int) uuid.UUID {
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

func variantStockValue(t *testing.T, db *gorm.DB, variantID uuid.UUID) int {
	t.Helper()
	var stock int
	require.NoError(t, db.Table("product_variants").
		Select("stock").Where("id = ?", variantID).Scan(&stock).Error)
	return stock
}

func countRows(t *testing.T, db *gorm.DB, table string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, db.Table(table).Count(&count).Error)
	return count
}

func TestCreateOrderSnapshotsSubmittedPrice(t *testing.T) {
	t.Parallel()

	db := setupOrdersTestDB(t)
	svc := newOrderService(t, db)
	ctx := context.Background()

	// catalog price is 25.00 but the buyer was shown 19.99
	variantID := seedOrderVariant(t, db, "Canvas Tote", "25.00", 5)
	submitted := decimal.NewFromFloat(19.99)

	order, err := svc.CreateOrder(ctx, CreateOrderInput{
		CustomerID: uuid.New(),
		Lines:      []LineInput{{VariantID: variantID, Quantity: 2, UnitPrice: submitted}},
	})
	require.NoError(t, err)

	assert.Equal(t, enums.OrderStatusPending, order.Status)
	require.Len(t, order.Items, 1)
	assert.True(t, order.Items[0].UnitPrice.Equal(submitted), "snapshot keeps the submitted price")
	assert.True(t, order.Subtotal.Equal(decimal.NewFromFloat(39.98)), "subtotal %s", order.Subtotal)
	assert.Equal(t, "Canvas Tote", order.Items[0].ProductName)

	assert.Equal(t, 3, variantStockValue(t, db, variantID))

	// one decrement movement referencing the order, one outbox event
	var movementQty int
	require.NoError(t, db.Table("stock_movements").
		Select("quantity").Where("reference_id = ?", order.ID).Scan(&movementQty).Error)
	assert.Equal(t, -2, movementQty)

	var eventType string
	require.NoError(t, db.Table("outbox_events").
		Select("event_type").Where("aggregate_id = ?", order.ID).Scan(&eventType).Error)
	assert.Equal(t, "order_created", eventType)
}

func TestCreateOrderRejectsEmptyAndMalformedLines(t *testing.T) {
	t.Parallel()

	db := setupOrdersTestDB(t)
	svc := newOrderService(t, db)
	ctx := context.Background()
	variantID := seedOrderVariant(t, db, "Canvas Tote", "25.00", 5)

	cases := []struct {
		name  string
		input CreateOrderInput
	}{
		{"empty lines", CreateOrderInput{CustomerID: uuid.New()}},
		{"zero quantity", CreateOrderInput{
			CustomerID: uuid.New(),
			Lines:      []LineInput{{VariantID: variantID, Quantity: 0, UnitPrice: decimal.NewFromInt(10)}},
		}},
		{"negative price", CreateOrderInput{
			CustomerID: uuid.New(),
			Lines:      []LineInput{{VariantID: variantID, Quantity: 1, UnitPrice: decimal.NewFromInt(-1)}},
		}},
		{"duplicate variant lines", CreateOrderInput{
			CustomerID: uuid.New(),
			Lines: []LineInput{
				{VariantID: variantID, Quantity: 1, UnitPrice: decimal.NewFromInt(10)},
				{VariantID: variantID, Quantity: 2, UnitPrice: decimal.NewFromInt(10)},
			},
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateOrder(ctx, tc.input)
			require.Error(t, err)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
		})
	}

	assert.Equal(t, 5, variantStockValue(t, db, variantID))
	assert.Zero(t, countRows(t, db, "orders"))
}

func TestCreateOrderInsufficientStockRollsBack(t *testing.T) {
	t.Parallel()

	db := setupOrdersTestDB(t)
	svc := newOrderService(t, db)
	ctx := context.Background()

	plentiful := seedOrderVariant(t, db, "Canvas Tote", "25.00", 10)
	scarce := seedOrderVariant(t, db, "Enamel Pin", "6.00", 1)

	_, err := svc.CreateOrder(ctx, CreateOrderInput{
		CustomerID: uuid.New(),
		Lines: []LineInput{
			{VariantID: plentiful, Quantity: 2, UnitPrice: decimal.NewFromInt(25)},
			{VariantID: scarce, Quantity: 3, UnitPrice: decimal.NewFromInt(6)},
		},
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())

	// nothing committed: no order, no movements, both stocks untouched
	assert.Zero(t, countRows(t, db, "orders"))
	assert.Zero(t, countRows(t, db, "order_items"))
	assert.Zero(t, countRows(t, db, "stock_movements"))
	assert.Zero(t, countRows(t, db, "outbox_events"))
	assert.Equal(t, 10, variantStockValue(t, db, plentiful))
	assert.Equal(t, 1, variantStockValue(t, db, scarce))
}

func TestCreateOrderClearsSourceCart(t *testing.T) {
	t.Parallel()

	db := setupOrdersTestDB(t)
	svc := newOrderService(t, db)
	ctx := context.Background()

	variantID := seedOrderVariant(t, db, "Canvas Tote", "25.00", 5)
	customerID := uuid.New()
	cartID := seedCustomerCart(t, db, customerID, variantID)

	_, err := svc.CreateOrder(ctx, CreateOrderInput{
		CustomerID: customerID,
		CartID:     &cartID,
		Lines:      []LineInput{{VariantID: variantID, Quantity: 2, UnitPrice: decimal.NewFromInt(25)}},
	})
	require.NoError(t, err)

	var remaining int64
	require.NoError(t, db.Table("cart_items").Where("cart_id = ?", cartID).Count(&remaining).Error)
	assert.Zero(t, remaining, "checkout consumes the cart")
}

func seedCustomerCart(t *testing.T, db *gorm.DB, customerID, variantID uuid.UUID) uuid.UUID {
	t.Helper()
	cartID := uuid.New()
	require.NoError(t, db.Exec(`INSERT INTO carts (id, customer_id) VALUES (?, ?)`, cartID, customerID).Error)
	require.NoError(t, db.Exec(
		`INSERT INTO cart_items (id, cart_id, variant_id, quantity, product_name, variant_name, unit_price)
		 VALUES (?, ?, ?, 2, 'Canvas Tote', '', 25.00)`,
		uuid.New(), cartID, variantID,
	).Error)
	return cartID
}

func TestCreateOrderRefusesForeignCart(t *testing.T) {
	t.Parallel()

	db := setupOrdersTestDB(t)
	svc := newOrderService(t, db)
	ctx := context.Background()

	variantID := seedOrderVariant(t, db, "Canvas Tote", "25.00", 5)
	ownerID := uuid.New()
	ownerCart := seedCustomerCart(t, db, ownerID, variantID)

	// a different customer names the owner's cart id at checkout
	_, err := svc.CreateOrder(ctx, CreateOrderInput{
		CustomerID: uuid.New(),
		CartID:     &ownerCart,
		Lines:      []LineInput{{VariantID: variantID, Quantity: 1, UnitPrice: decimal.NewFromInt(25)}},
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeCartOwnership, typed.Code())

	// the whole transaction rolled back: cart intact, no order, stock untouched
	var remaining int64
	require.NoError(t, db.Table("cart_items").Where("cart_id = ?", ownerCart).Count(&remaining).Error)
	assert.EqualValues(t, 1, remaining)
	assert.Zero(t, countRows(t, db, "orders"))
	assert.Equal(t, 5, variantStockValue(t, db, variantID))
}

func TestCreateOrderRefusesAnonymousCart(t *testing.T) {
	t.Parallel()

	db := setupOrdersTestDB(t)
	svc := newOrderService(t, db)
	ctx := context.Background()

	variantID := seedOrderVariant(t, db, "Canvas Tote", "25.00", 5)
	cartID := uuid.New()
	require.NoError(t, db.Exec(`INSERT INTO carts (id, session_token) VALUES (?, ?)`, cartID, "tok-"+uuid.NewString()[:8]).Error)

	_, err := svc.CreateOrder(ctx, CreateOrderInput{
		CustomerID: uuid.New(),
		CartID:     &cartID,
		Lines:      []LineInput{{VariantID: variantID, Quantity: 1, UnitPrice: decimal.NewFromInt(25)}},
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeCartOwnership, typed.Code())
}

func TestCreateOrderRejectsUnsellableCatalogRows(t *testing.T) {
	t.Parallel()

	db := setupOrdersTestDB(t)
	svc := newOrderService(t, db)
	ctx := context.Background()

	inactive := seedOrderVariant(t, db, "Retired Tote", "25.00", 5)
	require.NoError(t, db.Exec(`UPDATE products SET is_active = 0`).Error)

	_, err := svc.CreateOrder(ctx, CreateOrderInput{
		CustomerID: uuid.New(),
		Lines:      []LineInput{{VariantID: inactive, Quantity: 1, UnitPrice: decimal.NewFromInt(25)}},
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Equal(t, 5, variantStockValue(t, db, inactive))
}

func TestAdvanceStatusForwardOnly(t *testing.T) {
	t.Parallel()

	db := setupOrdersTestDB(t)
	svc := newOrderService(t, db)
	ctx := context.Background()

	variantID := seedOrderVariant(t, db, "Canvas Tote", "25.00", 5)
	order, err := svc.CreateOrder(ctx, CreateOrderInput{
		CustomerID: uuid.New(),
		Lines:      []LineInput{{VariantID: variantID, Quantity: 1, UnitPrice: decimal.NewFromInt(25)}},
	})
	require.NoError(t, err)

	// skipping a step is refused
	_, err = svc.AdvanceStatus(ctx, order.ID, enums.OrderStatusShipped)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())

	for _, next := range []enums.OrderStatus{
		enums.OrderStatusProcessing,
		enums.OrderStatusShipped,
		enums.OrderStatusDelivered,
	} {
		order, err = svc.AdvanceStatus(ctx, order.ID, next)
		require.NoError(t, err)
		assert.Equal(t, next, order.Status)
	}

	// delivered is terminal
	_, err = svc.AdvanceStatus(ctx, order.ID, enums.OrderStatusDelivered)
	require.Error(t, err)
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestCancelOrderRestoresStockExactlyOnce(t *testing.T) {
	t.Parallel()

	db := setupOrdersTestDB(t)
	svc := newOrderService(t, db)
	ctx := context.Background()

	variantID := seedOrderVariant(t, db, "Canvas Tote", "25.00", 5)
	order, err := svc.CreateOrder(ctx, CreateOrderInput{
		CustomerID: uuid.New(),
		Lines:      []LineInput{{VariantID: variantID, Quantity: 2, UnitPrice: decimal.NewFromInt(25)}},
	})
	require.NoError(t, err)
	require.Equal(t, 3, variantStockValue(t, db, variantID))

	cancelled, err := svc.CancelOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.CancelledAt)
	assert.Equal(t, 5, variantStockValue(t, db, variantID))

	// repeat cancel is an idempotency error and must not restore again
	_, err = svc.CancelOrder(ctx, order.ID)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeAlreadyCancelled, typed.Code())
	assert.Equal(t, 5, variantStockValue(t, db, variantID))

	var movements []int
	require.NoError(t, db.Table("stock_movements").
		Where("reference_id = ?", order.ID).
		Pluck("quantity", &movements).Error)
	assert.ElementsMatch(t, []int{-2, 2}, movements)
}

func TestCancelShippedOrderRefused(t *testing.T) {
	t.Parallel()

	db := setupOrdersTestDB(t)
	svc := newOrderService(t, db)
	ctx := context.Background()

	variantID := seedOrderVariant(t, db, "Canvas Tote", "25.00", 5)
	order, err := svc.CreateOrder(ctx, CreateOrderInput{
		CustomerID: uuid.New(),
		Lines:      []LineInput{{VariantID: variantID, Quantity: 1, UnitPrice: decimal.NewFromInt(25)}},
	})
	require.NoError(t, err)

	_, err = svc.AdvanceStatus(ctx, order.ID, enums.OrderStatusProcessing)
	require.NoError(t, err)
	_, err = svc.AdvanceStatus(ctx, order.ID, enums.OrderStatusShipped)
	require.NoError(t, err)

	_, err = svc.CancelOrder(ctx, order.ID)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
	assert.Equal(t, 4, variantStockValue(t, db, variantID), "shipped stock stays reserved")
}

func TestListOrdersNewestFirst(t *testing.T) {
	t.Parallel()

	db := setupOrdersTestDB(t)
	svc := newOrderService(t, db)
	ctx := context.Background()

	variantID := seedOrderVariant(t, db, "Canvas Tote", "25.00", 50)
	customerID := uuid.New()
	for i := 0; i < 3; i++ {
		_, err := svc.CreateOrder(ctx, CreateOrderInput{
			CustomerID: customerID,
			Lines:      []LineInput{{VariantID: variantID, Quantity: 1, UnitPrice: decimal.NewFromInt(25)}},
		})
		require.NoError(t, err)
	}

	listed, err := svc.ListOrders(ctx, customerID, pagination.Params{Limit: 10})
	require.NoError(t, err)
	require.Len(t, listed, 3)
	for i := 1; i < len(listed); i++ {
		assert.False(t, listed[i].CreatedAt.After(listed[i-1].CreatedAt))
	}

	other, err := svc.ListOrders(ctx, uuid.New(), pagination.Params{})
	require.NoError(t, err)
	assert.Empty(t, other)
}
