package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mercatohq/mercato-backend/internal/cart"
	"github.com/mercatohq/mercato-backend/internal/inventory"
	"github.com/mercatohq/mercato-backend/pkg/db/models"
	"github.com/mercatohq/mercato-backend/pkg/enums"
	pkgerrors "github.com/mercatohq/mercato-backend/pkg/errors"
	"github.com/mercatohq/mercato-backend/pkg/metrics"
	"github.com/mercatohq/mercato-backend/pkg/outbox"
	"github.com/mercatohq/mercato-backend/pkg/pagination"
	"github.com/mercatohq/mercato-backend/pkg/visibility"
)

const checkoutRetryAttempts = 3

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type catalogReader interface {
	FindVariantByID(ctx context.Context, id uuid.UUID) (*models.ProductVariant, error)
	FindProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindAttributeValues(ctx context.Context, ids []uuid.UUID) ([]models.AttributeValue, error)
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service runs the storefront order lifecycle.
type Service interface {
	CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderDTO, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*OrderDTO, error)
	ListOrders(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]OrderDTO, error)
	AdvanceStatus(ctx context.Context, id uuid.UUID, next enums.OrderStatus) (*OrderDTO, error)
	CancelOrder(ctx context.Context, id uuid.UUID) (*OrderDTO, error)
}

type service struct {
	repo    *Repository
	tx      txRunner
	catalog catalogReader
	carts   *cart.Repository
	ledger  inventory.Ledger
	events  eventEmitter
	metrics *metrics.CommerceMetrics
}

// NewService builds an order service. Events and metrics are optional.
func NewService(repo *Repository, tx txRunner, catalogRepo catalogReader, carts *cart.Repository, ledger inventory.Ledger, events eventEmitter, m *metrics.CommerceMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog reader required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		catalog: catalogRepo,
		carts:   carts,
		ledger:  ledger,
		events:  events,
		metrics: m,
	}, nil
}

// CreateOrder validates the submitted lines, then persists the order with its
// immutable snapshots and decrements stock inside one transaction. The price
// on each line is the submitted price, not a live catalog re-lookup.
func (s *service) CreateOrder(ctx context.Context, input CreateOrderInput) (*OrderDTO, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no lines")
	}

	items, decrements, subtotal, err := s.buildSnapshots(ctx, input.Lines)
	if err != nil {
		s.metrics.IncOrderCreated("rejected")
		return nil, err
	}

	order := &models.Order{
		ID:         uuid.New(),
		CustomerID: input.CustomerID,
		Status:     enums.OrderStatusPending,
		Subtotal:   subtotal,
		Total:      subtotal,
	}
	for i := range items {
		items[i].OrderID = order.ID
	}
	order.Items = items

	started := time.Now()
	err = inventory.RunWithRetry(ctx, checkoutRetryAttempts, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist order")
			}
			if err := s.ledger.Decrement(ctx, tx, decrements, enums.StockMovementReasonOrder, order.ID); err != nil {
				return err
			}
			if input.CartID != nil && s.carts != nil {
				if err := s.clearSourceCart(ctx, tx, *input.CartID, input.CustomerID); err != nil {
					return err
				}
			}
			return s.emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventOrderCreated,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Data:          toOrderDTO(order),
			})
		})
	})
	s.metrics.ObserveTxDuration("create_order", time.Since(started))
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			if typed.Code() == pkgerrors.CodeInsufficientStock {
				s.metrics.IncStockConflict("checkout")
			}
			s.metrics.IncOrderCreated("failed")
			return nil, typed
		}
		s.metrics.IncOrderCreated("failed")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}

	s.metrics.IncOrderCreated("success")
	return s.reload(ctx, order.ID)
}

func (s *service) GetOrder(ctx context.Context, id uuid.UUID) (*OrderDTO, error) {
	return s.reload(ctx, id)
}

func (s *service) ListOrders(ctx context.Context, customerID uuid.UUID, params pagination.Params) ([]OrderDTO, error) {
	rows, err := s.repo.ListByCustomer(ctx, customerID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	out := make([]OrderDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *toOrderDTO(&rows[i]))
	}
	return out, nil
}

// AdvanceStatus moves the order one step forward. Cancellation is not an
// advance: it goes through CancelOrder so the stock restore cannot be skipped.
func (s *service) AdvanceStatus(ctx context.Context, id uuid.UUID, next enums.OrderStatus) (*OrderDTO, error) {
	if !next.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order status %q", next))
	}
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guardAdvance(order.Status, next); err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.repo.WithTx(tx).TransitionStatus(ctx, id, order.Status, next)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance order")
		}
		if !moved {
			// a concurrent transition won; the guard no longer holds
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("order left status %s concurrently", order.Status))
		}
		return s.emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderAdvanced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   id,
			Data:          map[string]string{"from": order.Status.String(), "to": next.String()},
		})
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance order")
	}
	return s.reload(ctx, id)
}

// CancelOrder transitions a pending or processing order to cancelled and
// restores its stock in the same transaction. Repeating the call reports
// ALREADY_CANCELLED; shipped and delivered orders refuse with STATE_CONFLICT.
func (s *service) CancelOrder(ctx context.Context, id uuid.UUID) (*OrderDTO, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guardCancel(order.Status); err != nil {
		return nil, err
	}

	restores := make([]inventory.Line, 0, len(order.Items))
	for _, item := range order.Items {
		restores = append(restores, inventory.Line{VariantID: item.VariantID, Quantity: item.Quantity})
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.repo.WithTx(tx).TransitionStatus(ctx, id, order.Status, enums.OrderStatusCancelled)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if !moved {
			// the guard flip is what makes the restore at-most-once
			return pkgerrors.New(pkgerrors.CodeAlreadyCancelled, "order is already cancelled")
		}
		if err := s.ledger.Restore(ctx, tx, restores, enums.StockMovementReasonOrderCancel, id); err != nil {
			return err
		}
		return s.emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCancelled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   id,
			Data:          map[string]string{"from": order.Status.String()},
		})
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
	}
	return s.reload(ctx, id)
}

// clearSourceCart empties the checked-out cart after verifying it belongs to
// the ordering customer. A cart owned by anyone else fails closed.
func (s *service) clearSourceCart(ctx context.Context, tx *gorm.DB, cartID, customerID uuid.UUID) error {
	carts := s.carts.WithTx(tx)
	sourceCart, err := carts.FindByID(ctx, cartID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// already turned over; nothing to clear
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load source cart")
	}
	if sourceCart.CustomerID == nil || *sourceCart.CustomerID != customerID {
		return pkgerrors.New(pkgerrors.CodeCartOwnership, "cart belongs to a different owner")
	}
	if err := carts.ClearItems(ctx, cartID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear source cart")
	}
	return nil
}

// buildSnapshots validates every submitted line against the live catalog and
// returns the immutable item rows, the ledger decrement lines, and the
// subtotal computed from the submitted unit prices.
func (s *service) buildSnapshots(ctx context.Context, lines []LineInput) ([]models.OrderItem, []inventory.Line, decimal.Decimal, error) {
	items := make([]models.OrderItem, 0, len(lines))
	decrements := make([]inventory.Line, 0, len(lines))
	subtotal := decimal.Zero
	seen := make(map[uuid.UUID]struct{}, len(lines))

	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("quantity for variant %s must be positive", line.VariantID))
		}
		if line.UnitPrice.IsNegative() {
			return nil, nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("unit price for variant %s must not be negative", line.VariantID))
		}
		if _, dup := seen[line.VariantID]; dup {
			return nil, nil, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("variant %s appears on more than one line", line.VariantID))
		}
		seen[line.VariantID] = struct{}{}

		variant, product, err := s.loadSellableVariant(ctx, line.VariantID)
		if err != nil {
			return nil, nil, decimal.Zero, err
		}
		name, err := s.variantDisplayName(ctx, variant)
		if err != nil {
			return nil, nil, decimal.Zero, err
		}

		lineTotal := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		subtotal = subtotal.Add(lineTotal)
		items = append(items, models.OrderItem{
			ID:          uuid.New(),
			VariantID:   line.VariantID,
			ProductName: product.Name,
			VariantName: name,
			UnitPrice:   line.UnitPrice,
			Quantity:    line.Quantity,
			LineTotal:   lineTotal,
		})
		decrements = append(decrements, inventory.Line{VariantID: line.VariantID, Quantity: line.Quantity})
	}
	return items, decrements, subtotal, nil
}

func (s *service) loadSellableVariant(ctx context.Context, variantID uuid.UUID) (*models.ProductVariant, *models.Product, error) {
	variant, err := s.catalog.FindVariantByID(ctx, variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound,
				fmt.Sprintf("variant %s not found", variantID))
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

func (s *service) emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if s.events == nil {
		return nil
	}
	if err := s.events.Emit(ctx, tx, event); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue outbox event")
	}
	return nil
}

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) reload(ctx context.Context, id uuid.UUID) (*OrderDTO, error) {
	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return toOrderDTO(order), nil
}
