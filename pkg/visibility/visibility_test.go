package visibility

import (
	"testing"

	"github.com/mercatohq/mercato-backend/pkg/db/models"
	pkgerrors "github.com/mercatohq/mercato-backend/pkg/errors"
)

func TestEnsureProductSellable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		product *models.Product
		code    pkgerrors.Code
	}{
		{name: "nil product", product: nil, code: pkgerrors.CodeNotFound},
		{name: "deleted product", product: &models.Product{IsActive: true, IsDeleted: true}, code: pkgerrors.CodeNotFound},
		{name: "inactive product", product: &models.Product{IsActive: false}, code: pkgerrors.CodeValidation},
		{name: "sellable", product: &models.Product{IsActive: true}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := EnsureProductSellable(tc.product)
			if tc.code == "" {
				if err != nil {
					t.Fatalf("expected sellable, got %v", err)
				}
				return
			}
			typed := pkgerrors.As(err)
			if typed == nil || typed.Code() != tc.code {
				t.Fatalf("expected code %s, got %v", tc.code, err)
			}
		})
	}
}

func TestEnsureVariantSellable(t *testing.T) {
	t.Parallel()

	if err := EnsureVariantSellable(&models.ProductVariant{IsActive: true}); err != nil {
		t.Fatalf("expected sellable variant, got %v", err)
	}
	if err := EnsureVariantSellable(&models.ProductVariant{IsActive: true, IsDeleted: true}); pkgerrors.As(err) == nil {
		t.Fatal("expected error for deleted variant")
	}
	if err := EnsureVariantSellable(nil); pkgerrors.As(err) == nil {
		t.Fatal("expected error for nil variant")
	}
}
