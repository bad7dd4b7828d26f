package catalog

import (
	"context"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mercatohq/mercato-backend/internal/inventory"
	"github.com/mercatohq/mercato-backend/pkg/enums"
	pkgerrors "github.com/mercatohq/mercato-backend/pkg/errors"
)

func setupCatalogTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:catalog_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	for _, ddl := range []string{
		`CREATE TABLE IF NOT EXISTS attributes (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL UNIQUE,
  display_name TEXT NOT NULL,
  value_type TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
		`CREATE TABLE IF NOT EXISTS attribute_values (
  id TEXT PRIMARY KEY,
  attribute_id TEXT NOT NULL,
  value TEXT NOT NULL,
  display_value TEXT NOT NULL,
  color_code TEXT,
  created_at DATETIME,
  updated_at DATETIME,
  CONSTRAINT idx_attribute_value UNIQUE (attribute_id, value)
);`,
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
		`CREATE TABLE IF NOT EXISTS product_attributes (
  id TEXT PRIMARY KEY,
  product_id TEXT NOT NULL,
  attribute_id TEXT NOT NULL,
  value TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (product_id, attribute_id)
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
		`CREATE TABLE IF NOT EXISTS stock_movements (
  id TEXT PRIMARY KEY,
  variant_id TEXT NOT NULL,
  quantity INTEGER NOT NULL,
  reason TEXT NOT NULL,
  reference_id TEXT NOT NULL,
  created_at DATETIME
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

func newCatalogService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db), gormTxRunner{db: db}, inventory.NewLedger())
	require.NoError(t, err)
	return svc
}

func defineSizeAndColor(t *testing.T, svc Service) (size, color *AttributeDTO) {
	t.Helper()
	var err error
	size, err = svc.DefineAttribute(context.Background(), DefineAttributeInput{
		Name:      "size",
		ValueType: enums.AttributeValueTypeEnumerated,
		Values: []AttributeValueInput{
			{Value: "S"}, {Value: "M"}, {Value: "XL"},
		},
	})
	require.NoError(t, err)

	colorCode := "#ff0000"
	color, err = svc.DefineAttribute(context.Background(), DefineAttributeInput{
		Name:      "color",
		ValueType: enums.AttributeValueTypeColor,
		Values: []AttributeValueInput{
			{Value: "red", ColorCode: &colorCode}, {Value: "blue"},
		},
	})
	require.NoError(t, err)
	return size, color
}

func createTestProduct(t *testing.T, svc Service) *ProductDTO {
	t.Helper()
	product, err := svc.CreateProduct(context.Background(), CreateProductInput{
		SKU:       "TSHIRT-" + uuid.NewString()[:8],
		Name:      "Basic Tee",
		BasePrice: decimal.NewFromFloat(19.90),
		BaseCost:  decimal.NewFromFloat(6.50),
		IsActive:  true,
	})
	require.NoError(t, err)
	return product
}

func TestCreateProductWithStaticAttributes(t *testing.T) {
	t.Parallel()

	svc := newCatalogService(t, setupCatalogTestDB(t))
	material, err := svc.DefineAttribute(context.Background(), DefineAttributeInput{
		Name:      "material",
		ValueType: enums.AttributeValueTypeText,
	})
	require.NoError(t, err)

	product, err := svc.CreateProduct(context.Background(), CreateProductInput{
		SKU:              "HOODIE-" + uuid.NewString()[:8],
		Name:             "Heavyweight Hoodie",
		BasePrice:        decimal.NewFromFloat(49.00),
		IsActive:         true,
		StaticAttributes: []StaticAttributeInput{{AttributeID: material.ID, Value: "Cotton"}},
	})
	require.NoError(t, err)
	require.Len(t, product.StaticAttributes, 1)

	loaded, err := svc.GetProduct(context.Background(), product.ID)
	require.NoError(t, err)
	require.Len(t, loaded.StaticAttributes, 1)
	assert.Equal(t, material.ID, loaded.StaticAttributes[0].AttributeID)
	assert.Equal(t, "Cotton", loaded.StaticAttributes[0].Value)

	_, err = svc.CreateProduct(context.Background(), CreateProductInput{
		SKU:       "HOODIE-" + uuid.NewString()[:8],
		Name:      "Hoodie",
		BasePrice: decimal.NewFromFloat(10),
		IsActive:  true,
		StaticAttributes: []StaticAttributeInput{
			{AttributeID: material.ID, Value: "Cotton"},
			{AttributeID: material.ID, Value: "Wool"},
		},
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestSignatureOrderIndependence(t *testing.T) {
	t.Parallel()

	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}
	want := Signature(ids)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := append([]uuid.UUID(nil), ids...)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		if got := Signature(shuffled); got != want {
			t.Fatalf("signature changed with selection order: %q vs %q", got, want)
		}
	}
}

func TestDefineAttributeRejectsPayloadDuplicate(t *testing.T) {
	t.Parallel()

	svc := newCatalogService(t, setupCatalogTestDB(t))
	_, err := svc.DefineAttribute(context.Background(), DefineAttributeInput{
		Name:      "size",
		ValueType: enums.AttributeValueTypeEnumerated,
		Values:    []AttributeValueInput{{Value: "M"}, {Value: "M"}},
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeDuplicateValue, typed.Code())
}

func TestAddAttributeValueRejectsExisting(t *testing.T) {
	t.Parallel()

	svc := newCatalogService(t, setupCatalogTestDB(t))
	size, _ := defineSizeAndColor(t, svc)

	_, err := svc.AddAttributeValue(context.Background(), size.ID, AttributeValueInput{Value: "XL"})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeDuplicateValue, typed.Code())

	updated, err := svc.AddAttributeValue(context.Background(), size.ID, AttributeValueInput{Value: "XXL"})
	require.NoError(t, err)
	assert.Len(t, updated.Values, 4)
}

func TestCreateVariantComputesSignature(t *testing.T) {
	t.Parallel()

	svc := newCatalogService(t, setupCatalogTestDB(t))
	size, color := defineSizeAndColor(t, svc)
	product := createTestProduct(t, svc)

	ids := []uuid.UUID{size.Values[2].ID, color.Values[1].ID}
	variant, err := svc.CreateVariant(context.Background(), product.ID, CreateVariantInput{
		AttributeValueIDs: ids,
		InitialStock:      5,
	})
	require.NoError(t, err)
	assert.Equal(t, Signature(ids), variant.Signature)
	assert.Equal(t, 5, variant.Stock)
	assert.True(t, variant.EffectivePrice.Equal(decimal.NewFromFloat(19.90)))
	assert.Len(t, variant.AttributeValues, 2)
}

func TestCreateVariantDuplicateRejectedRegardlessOfOrder(t *testing.T) {
	t.Parallel()

	svc := newCatalogService(t, setupCatalogTestDB(t))
	size, color := defineSizeAndColor(t, svc)
	product := createTestProduct(t, svc)

	first := []uuid.UUID{size.Values[0].ID, color.Values[0].ID}
	_, err := svc.CreateVariant(context.Background(), product.ID, CreateVariantInput{AttributeValueIDs: first})
	require.NoError(t, err)

	// same combination, reversed selection order
	reversed := []uuid.UUID{color.Values[0].ID, size.Values[0].ID}
	_, err = svc.CreateVariant(context.Background(), product.ID, CreateVariantInput{AttributeValueIDs: reversed})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeDuplicateVariant, typed.Code())

	// a different combination still goes through
	_, err = svc.CreateVariant(context.Background(), product.ID, CreateVariantInput{
		AttributeValueIDs: []uuid.UUID{size.Values[1].ID, color.Values[0].ID},
	})
	require.NoError(t, err)
}

func TestCreateVariantRandomizedCombinations(t *testing.T) {
	t.Parallel()

	svc := newCatalogService(t, setupCatalogTestDB(t))
	size, color := defineSizeAndColor(t, svc)
	product := createTestProduct(t, svc)

	rng := rand.New(rand.NewSource(7))
	created := map[string]bool{}
	for i := 0; i < 12; i++ {
		ids := []uuid.UUID{
			size.Values[rng.Intn(len(size.Values))].ID,
			color.Values[rng.Intn(len(color.Values))].ID,
		}
		rng.Shuffle(len(ids), func(a, b int) { ids[a], ids[b] = ids[b], ids[a] })

		signature := Signature(ids)
		_, err := svc.CreateVariant(context.Background(), product.ID, CreateVariantInput{AttributeValueIDs: ids})
		if created[signature] {
			require.Error(t, err, "combination %s must collide", signature)
			typed := pkgerrors.As(err)
			require.NotNil(t, typed)
			assert.Equal(t, pkgerrors.CodeDuplicateVariant, typed.Code())
			continue
		}
		require.NoError(t, err)
		created[signature] = true
	}
}

func TestCreateVariantRejectsSameAttributeTwice(t *testing.T) {
	t.Parallel()

	svc := newCatalogService(t, setupCatalogTestDB(t))
	size, _ := defineSizeAndColor(t, svc)
	product := createTestProduct(t, svc)

	_, err := svc.CreateVariant(context.Background(), product.ID, CreateVariantInput{
		AttributeValueIDs: []uuid.UUID{size.Values[0].ID, size.Values[1].ID},
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestSignatureCollapsesRepeatedIDs(t *testing.T) {
	t.Parallel()

	a, b := uuid.New(), uuid.New()
	assert.Equal(t, Signature([]uuid.UUID{a, b}), Signature([]uuid.UUID{a, a, b}))
	assert.Equal(t, Signature([]uuid.UUID{a}), Signature([]uuid.UUID{a, a}))
}

func TestCreateVariantRejectsRepeatedValueID(t *testing.T) {
	t.Parallel()

	svc := newCatalogService(t, setupCatalogTestDB(t))
	size, _ := defineSizeAndColor(t, svc)
	product := createTestProduct(t, svc)

	single := []uuid.UUID{size.Values[0].ID}
	_, err := svc.CreateVariant(context.Background(), product.ID, CreateVariantInput{AttributeValueIDs: single})
	require.NoError(t, err)

	// repeating the id must not mint a fresh signature for the same combination
	repeated := []uuid.UUID{size.Values[0].ID, size.Values[0].ID}
	_, err = svc.CreateVariant(context.Background(), product.ID, CreateVariantInput{AttributeValueIDs: repeated})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
}

func TestDeletedVariantFreesSignature(t *testing.T) {
	t.Parallel()

	svc := newCatalogService(t, setupCatalogTestDB(t))
	size, color := defineSizeAndColor(t, svc)
	product := createTestProduct(t, svc)

	ids := []uuid.UUID{size.Values[0].ID, color.Values[0].ID}
	variant, err := svc.CreateVariant(context.Background(), product.ID, CreateVariantInput{AttributeValueIDs: ids})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteVariant(context.Background(), variant.ID))

	_, err = svc.CreateVariant(context.Background(), product.ID, CreateVariantInput{AttributeValueIDs: ids})
	require.NoError(t, err)
}

func TestAdjustStockGuardsNegative(t *testing.T) {
	t.Parallel()

	db := setupCatalogTestDB(t)
	svc := newCatalogService(t, db)
	size, color := defineSizeAndColor(t, svc)
	product := createTestProduct(t, svc)

	variant, err := svc.CreateVariant(context.Background(), product.ID, CreateVariantInput{
		AttributeValueIDs: []uuid.UUID{size.Values[0].ID, color.Values[0].ID},
		InitialStock:      3,
	})
	require.NoError(t, err)

	updated, err := svc.AdjustStock(context.Background(), variant.ID, -2)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Stock)

	_, err = svc.AdjustStock(context.Background(), variant.ID, -2)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeInsufficientStock, typed.Code())

	updated, err = svc.AdjustStock(context.Background(), variant.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Stock)
}

func TestAuditDuplicateVariantsKeepsReferenced(t *testing.T) {
	t.Parallel()

	db := setupCatalogTestDB(t)
	svc := newCatalogService(t, db)
	size, color := defineSizeAndColor(t, svc)
	product := createTestProduct(t, svc)

	ids := []uuid.UUID{size.Values[0].ID, color.Values[0].ID}
	signature := Signature(ids)

	// two colliding rows seeded directly, bypassing creation-time rejection
	legacyA := uuid.New()
	legacyB := uuid.New()
	for _, id := range []uuid.UUID{legacyA, legacyB} {
		require.NoError(t, db.Exec(
			`INSERT INTO product_variants (id, product_id, signature, stock, is_active, is_deleted, created_at, updated_at)
			 VALUES (?, ?, ?, 1, 1, 0, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
			id, product.ID, signature,
		).Error)
	}
	// only legacyB is referenced by an order line
	require.NoError(t, db.Exec(
		`INSERT INTO order_items (id, order_id, variant_id, product_name, variant_name, unit_price, quantity, line_total)
		 VALUES (?, ?, ?, 'Basic Tee', 'S / red', 19.90, 1, 19.90)`,
		uuid.New(), uuid.New(), legacyB,
	).Error)

	groups, err := svc.AuditDuplicateVariants(context.Background(), product.ID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, signature, groups[0].Signature)
	assert.Equal(t, legacyB, groups[0].KeepID)
	assert.Equal(t, []uuid.UUID{legacyA}, groups[0].Removable)
	assert.Empty(t, groups[0].Referenced)
}
