package sales

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

	"github.com/mercatohq/mercato-backend/internal/inventory"
	"github.com/mercatohq/mercato-backend/pkg/db/models"
	"github.com/mercatohq/mercato-backend/pkg/enums"
	pkgerrors "github.com/mercatohq/mercato-backend/pkg/errors"
	"github.com/mercatohq/mercato-backend/pkg/metrics"
	"github.com/mercatohq/mercato-backend/pkg/outbox"
	"github.com/mercatohq/mercato-backend/pkg/pagination"
	"github.com/mercatohq/mercato-backend/pkg/visibility"
)

const saleRetryAttempts = 3

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

// Service runs the point-of-sale lifecycle. A sale is born completed: the
// register only commits after the stock decrement succeeds.
type Service interface {
	CreateSale(ctx context.Context, input CreateSaleInput) (*SaleDTO, error)
	GetSale(ctx context.Context, id uuid.UUID) (*SaleDTO, error)
	ListSales(ctx context.Context, staffID uuid.UUID, params pagination.Params) ([]SaleDTO, error)
	VoidSale(ctx context.Context, id uuid.UUID) (*SaleDTO, error)
}

type service struct {
	repo    *Repository
	tx      txRunner
	catalog catalogReader
	ledger  inventory.Ledger
	events  eventEmitter
	metrics *metrics.CommerceMetrics
}

// NewService builds a sale service. Events and metrics are optional.
func NewService(repo *Repository, tx txRunner, catalogRepo catalogReader, ledger inventory.Ledger, events eventEmitter, m *metrics.CommerceMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("sale repository required")
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
		ledger:  ledger,
		events:  events,
		metrics: m,
	}, nil
}

func (s *service) CreateSale(ctx context.Context, input CreateSaleInput) (*SaleDTO, error) {
	if input.StaffID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "staff id is required")
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sale has no lines")
	}

	items, decrements, subtotal, err := s.buildSnapshots(ctx, input.Lines)
	if err != nil {
		return nil, err
	}

	sale := &models.Sale{
		ID:       uuid.New(),
		StaffID:  input.StaffID,
		Status:   enums.SaleStatusCompleted,
		Subtotal: subtotal,
		Total:    subtotal,
	}
	for i := range items {
		items[i].SaleID = sale.ID
	}
	sale.Items = items

	started := time.Now()
	err = inventory.RunWithRetry(ctx, saleRetryAttempts, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			if err := s.repo.WithTx(tx).Create(ctx, sale); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist sale")
			}
			if err := s.ledger.Decrement(ctx, tx, decrements, enums.StockMovementReasonSale, sale.ID); err != nil {
				return err
			}
			return s.emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventSaleCompleted,
				AggregateType: enums.AggregateSale,
				AggregateID:   sale.ID,
				Data:          toSaleDTO(sale),
			})
		})
	})
	s.metrics.ObserveTxDuration("create_sale", time.Since(started))
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			if typed.Code() == pkgerrors.CodeInsufficientStock {
				s.metrics.IncStockConflict("pos")
			}
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create sale")
	}

	s.metrics.IncSaleCreated()
	return s.reload(ctx, sale.ID)
}

func (s *service) GetSale(ctx context.Context, id uuid.UUID) (*SaleDTO, error) {
	return s.reload(ctx, id)
}

func (s *service) ListSales(ctx context.Context, staffID uuid.UUID, params pagination.Params) ([]SaleDTO, error) {
	rows, err := s.repo.ListByStaff(ctx, staffID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list sales")
	}
	out := make([]SaleDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *toSaleDTO(&rows[i]))
	}
	return out, nil
}

// VoidSale transitions a completed sale to voided and restores its stock in
// the same transaction. Voiding a voided sale reports ALREADY_VOIDED and
// leaves stock untouched.
func (s *service) VoidSale(ctx context.Context, id uuid.UUID) (*SaleDTO, error) {
	sale, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if sale.Status == enums.SaleStatusVoided {
		return nil, pkgerrors.New(pkgerrors.CodeAlreadyVoided, "sale is already voided")
	}

	restores := make([]inventory.Line, 0, len(sale.Items))
	for _, item := range sale.Items {
		restores = append(restores, inventory.Line{VariantID: item.VariantID, Quantity: item.Quantity})
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.repo.WithTx(tx).TransitionStatus(ctx, id, enums.SaleStatusCompleted, enums.SaleStatusVoided)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "void sale")
		}
		if !moved {
			// the guard flip is what makes the restore at-most-once
			return pkgerrors.New(pkgerrors.CodeAlreadyVoided, "sale is already voided")
		}
		if err := s.ledger.Restore(ctx, tx, restores, enums.StockMovementReasonSaleVoid, id); err != nil {
			return err
		}
		return s.emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSaleVoided,
			AggregateType: enums.AggregateSale,
			AggregateID:   id,
			Data:          map[string]string{"staffId": sale.StaffID.String()},
		})
	})
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "void sale")
	}
	return s.reload(ctx, id)
}

func (s *service) buildSnapshots(ctx context.Context, lines []LineInput) ([]models.SaleItem, []inventory.Line, decimal.Decimal, error) {
	items := make([]models.SaleItem, 0, len(lines))
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
		items = append(items, models.SaleItem{
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

func (s *service) load(ctx context.Context, id uuid.UUID) (*models.Sale, error) {
	sale, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load sale")
	}
	return sale, nil
}

func (s *service) reload(ctx context.Context, id uuid.UUID) (*SaleDTO, error) {
	sale, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return toSaleDTO(sale), nil
}
