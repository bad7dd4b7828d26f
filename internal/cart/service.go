package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mercatohq/mercato-backend/internal/catalog"
	"github.com/mercatohq/mercato-backend/pkg/db/models"
	pkgerrors "github.com/mercatohq/mercato-backend/pkg/errors"
	"github.com/mercatohq/mercato-backend/pkg/metrics"
	"github.com/mercatohq/mercato-backend/pkg/security"
	"github.com/mercatohq/mercato-backend/pkg/visibility"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type catalogReader interface {
	FindVariantByID(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error)
	FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindAttributeValues(ctx context.Context, ids []uuid.UUID) ([]models.AttributeValue, error)
}

type snapshotCache interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartSnapshotKey(cartID string) string
}

// ResolveHint carries the identity claims of an incoming request: an opaque
// session token, a customer id, or both (right after login).
type ResolveHint struct {
	SessionToken *string
	CustomerID   *uuid.UUID
}

// AddItemInput holds the payload to add a variant line.
type AddItemInput struct {
	VariantID uuid.UUID
	Quantity  int
}

// Service resolves cart identity and mutates cart contents.
type Service interface {
	ResolveCart(ctx context.Context, hint ResolveHint) (*Snapshot, error)
	AddItem(ctx context.Context, hint ResolveHint, input AddItemInput) (*Snapshot, error)
	UpdateItem(ctx context.Context, hint ResolveHint, variantID uuid.UUID, quantity int) (*Snapshot, error)
	RemoveItem(ctx context.Context, hint ResolveHint, variantID uuid.UUID) (*Snapshot, error)
}

type service struct {
	repo        *Repository
	tx          txRunner
	catalog     catalogReader
	cache       snapshotCache
	metrics     *metrics.CommerceMetrics
	tokenBytes  int
	snapshotTTL time.Duration
}

// NewService builds a cart service backed by the provided stack. Cache and
// metrics are optional.
func NewService(repo *Repository, tx txRunner, catalogRepo catalogReader, cache snapshotCache, m *metrics.CommerceMetrics, tokenBytes int, snapshotTTL time.Duration) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	return &service{
		repo:        repo,
		tx:          tx,
		catalog:     catalogRepo,
		cache:       cache,
		metrics:     m,
		tokenBytes:  tokenBytes,
		snapshotTTL: snapshotTTL,
	}, nil
}

// ResolveCart returns the single authoritative cart for the hint, creating
// one when absent. On the anonymous path a generated token is part of the
// snapshot: the caller must propagate it or the cart is orphaned.
func (s *service) ResolveCart(ctx context.Context, hint ResolveHint) (*Snapshot, error) {
	cart, err := s.resolve(ctx, hint)
	if err != nil {
		return nil, err
	}
	return s.snapshot(ctx, cart), nil
}

func (s *service) AddItem(ctx context.Context, hint ResolveHint, input AddItemInput) (*Snapshot, error) {
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	cart, err := s.resolve(ctx, hint)
	if err != nil {
		return nil, err
	}

	variant, product, err := s.loadSellableVariant(ctx, input.VariantID)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		existing, err := txRepo.FindItem(ctx, cart.ID, input.VariantID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
		}

		requested := input.Quantity
		if existing != nil {
			requested += existing.Quantity
		}
		quantity := clampToStock(requested, variant.Stock)
		if quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock,
				fmt.Sprintf("variant %s is out of stock", input.VariantID))
		}

		if existing != nil {
			return txRepo.UpdateItemQuantity(ctx, existing.ID, quantity)
		}
		item, err := s.newLine(ctx, cart.ID, product, variant, quantity)
		if err != nil {
			return err
		}
		return txRepo.CreateItem(ctx, item)
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add cart item")
	}
	return s.reload(ctx, cart.ID)
}

func (s *service) UpdateItem(ctx context.Context, hint ResolveHint, variantID uuid.UUID, quantity int) (*Snapshot, error) {
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}

	cart, err := s.resolve(ctx, hint)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		existing, err := txRepo.FindItem(ctx, cart.ID, variantID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
		}

		// quantity zero removes the line
		if quantity == 0 {
			return txRepo.DeleteItem(ctx, cart.ID, variantID)
		}

		variant, _, err := s.loadSellableVariant(ctx, variantID)
		if err != nil {
			return err
		}
		return txRepo.UpdateItemQuantity(ctx, existing.ID, clampToStock(quantity, variant.Stock))
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
	}
	return s.reload(ctx, cart.ID)
}

func (s *service) RemoveItem(ctx context.Context, hint ResolveHint, variantID uuid.UUID) (*Snapshot, error) {
	cart, err := s.resolve(ctx, hint)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteItem(ctx, cart.ID, variantID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
	}
	return s.reload(ctx, cart.ID)
}

func (s *service) resolve(ctx context.Context, hint ResolveHint) (*models.Cart, error) {
	if hint.CustomerID != nil {
		return s.resolveCustomer(ctx, *hint.CustomerID, hint.SessionToken)
	}
	return s.resolveAnonymous(ctx, hint.SessionToken)
}

// resolveCustomer finds or creates the customer cart and, when the request
// also carries a session token bound to an anonymous cart, merges that cart
// in exactly once. The anonymous cart is hard-deleted afterwards, which is
// what makes a repeat merge with the same identity pair a no-op.
func (s *service) resolveCustomer(ctx context.Context, customerID uuid.UUID, sessionToken *string) (*models.Cart, error) {
	var resolved *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)

		cart, err := txRepo.FindByCustomerID(ctx, customerID)
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load customer cart")
			}
			owner := customerID
			cart = &models.Cart{ID: uuid.New(), CustomerID: &owner}
			if err := txRepo.CreateCart(ctx, cart); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create customer cart")
			}
		}

		if sessionToken != nil && strings.TrimSpace(*sessionToken) != "" {
			if err := s.mergeSessionCart(ctx, txRepo, cart, *sessionToken, customerID); err != nil {
				return err
			}
		}

		resolved, err = txRepo.FindByID(ctx, cart.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload customer cart")
		}
		return nil
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve customer cart")
	}
	return resolved, nil
}

func (s *service) mergeSessionCart(ctx context.Context, txRepo *Repository, target *models.Cart, sessionToken string, customerID uuid.UUID) error {
	anon, err := txRepo.FindBySessionToken(ctx, sessionToken)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// already merged, expired, or never existed
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session cart")
	}

	// the schema forbids dual ownership, but a token mapping to someone
	// else's cart must fail closed rather than merge into the wrong owner
	if anon.CustomerID != nil && *anon.CustomerID != customerID {
		return pkgerrors.New(pkgerrors.CodeCartOwnership,
			"session cart belongs to a different customer")
	}
	if anon.ID == target.ID {
		return nil
	}

	merged := false
	for _, line := range anon.Items {
		existing, err := txRepo.FindItem(ctx, target.ID, line.VariantID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load target cart line")
		}
		if existing == nil {
			// unique line, carried over unchanged
			carried := models.CartItem{
				ID:          uuid.New(),
				CartID:      target.ID,
				VariantID:   line.VariantID,
				Quantity:    line.Quantity,
				ProductName: line.ProductName,
				VariantName: line.VariantName,
				ImageURL:    line.ImageURL,
				UnitPrice:   line.UnitPrice,
			}
			if err := txRepo.CreateItem(ctx, &carried); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "carry over cart line")
			}
			merged = true
			continue
		}

		variant, err := s.catalog.FindVariantByID(ctx, line.VariantID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant for merge")
		}
		// quantities add, clamped to available stock
		quantity := clampToStock(existing.Quantity+line.Quantity, variant.Stock)
		if quantity <= 0 {
			if err := txRepo.DeleteItem(ctx, target.ID, line.VariantID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "drop unmergeable line")
			}
			merged = true
			continue
		}
		if err := txRepo.UpdateItemQuantity(ctx, existing.ID, quantity); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merge cart line")
		}
		merged = true
	}

	if err := txRepo.DeleteCart(ctx, anon.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete session cart")
	}
	if merged {
		s.metrics.IncCartMerge()
	}
	if s.cache != nil {
		_ = s.cache.Del(ctx, s.cache.CartSnapshotKey(anon.ID.String()))
	}
	return nil
}

func (s *service) resolveAnonymous(ctx context.Context, sessionToken *string) (*models.Cart, error) {
	if sessionToken != nil && strings.TrimSpace(*sessionToken) != "" {
		cart, err := s.repo.FindBySessionToken(ctx, *sessionToken)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session cart")
		}
	}

	token, err := security.NewCartToken(s.tokenBytes)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate session token")
	}
	cart := &models.Cart{ID: uuid.New(), SessionToken: &token}
	if err := s.repo.CreateCart(ctx, cart); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create session cart")
	}
	return cart, nil
}

func (s *service) loadSellableVariant(ctx context.Context, variantID uuid.UUID) (*models.ProductVariant, *models.Product, error) {
	variant, err := s.catalog.FindVariantByID(ctx, variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
	}
	if err := visibility.EnsureVariantSellable(variant); err != nil {
		return nil, nil, err
	}
	product, err := s.catalog.FindProductByID(ctx, variant.ProductID)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	if err := visibility.EnsureProductSellable(product); err != nil {
		return nil, nil, err
	}
	return variant, product, nil
}

func (s *service) newLine(ctx context.Context, cartID uuid.UUID, product *models.Product, variant *models.ProductVariant, quantity int) (*models.CartItem, error) {
	name, err := s.variantDisplayName(ctx, variant)
	if err != nil {
		return nil, err
	}
	var imageURL *string
	if len(product.Images) > 0 {
		first := product.Images[0]
		imageURL = &first
	}
	return &models.CartItem{
		ID:          uuid.New(),
		CartID:      cartID,
		VariantID:   variant.ID,
		Quantity:    quantity,
		ProductName: product.Name,
		VariantName: name,
		ImageURL:    imageURL,
		UnitPrice:   catalog.EffectivePrice(product, variant),
	}, nil
}

func (s *service) variantDisplayName(ctx context.Context, variant *models.ProductVariant) (string, error) {
	ids := make([]uuid.UUID, 0, len(variant.AttributeValues))
	for _, junction := range variant.AttributeValues {
		ids = append(ids, junction.AttributeValueID)
	}
	if len(ids) == 0 {
		return "", nil
	}
	values, err := s.catalog.FindAttributeValues(ctx, ids)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load attribute values")
	}
	parts := make([]string, 0, len(values))
	for _, value := range values {
		parts = append(parts, value.DisplayValue)
	}
	sort.Strings(parts)
	return strings.Join(parts, " / "), nil
}

func (s *service) reload(ctx context.Context, cartID uuid.UUID) (*Snapshot, error) {
	cart, err := s.repo.FindByID(ctx, cartID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart")
	}
	return s.snapshot(ctx, cart), nil
}

func (s *service) snapshot(ctx context.Context, cart *models.Cart) *Snapshot {
	snapshot := toSnapshot(cart)
	if s.cache != nil {
		if payload, err := json.Marshal(snapshot); err == nil {
			_ = s.cache.Set(ctx, s.cache.CartSnapshotKey(cart.ID.String()), payload, s.snapshotTTL)
		}
	}
	return snapshot
}

func clampToStock(quantity, stock int) int {
	if quantity > stock {
		return stock
	}
	return quantity
}
