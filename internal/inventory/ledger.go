package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/mercatohq/mercato-backend/pkg/db/models"
	"github.com/mercatohq/mercato-backend/pkg/enums"
	pkgerrors "github.com/mercatohq/mercato-backend/pkg/errors"
)

// Line is one variant quantity to decrement or restore.
type Line struct {
	VariantID uuid.UUID
	Quantity  int
}

// Ledger applies guarded stock mutations and records every committed change
// as an append-only stock movement row. All methods run inside the caller's
// transaction so the stock update and the movement commit together.
type Ledger struct{}

// NewLedger exposes the default ledger implementation.
func NewLedger() Ledger {
	return Ledger{}
}

// Decrement atomically subtracts each line's quantity, guarded so stock can
// never go negative. The first line whose guard rejects aborts the whole
// transaction with an insufficient-stock error naming the variant.
func (Ledger) Decrement(ctx context.Context, tx *gorm.DB, lines []Line, reason enums.StockMovementReason, referenceID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock decrement")
	}
	for _, line := range lines {
		if line.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "stock decrement quantity must be positive")
		}
		res := tx.WithContext(ctx).Exec(`
			UPDATE product_variants
			SET stock = stock - ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ? AND is_deleted = false AND stock >= ?
		`, line.Quantity, line.VariantID, line.Quantity)
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement stock")
		}
		if res.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeInsufficientStock,
				fmt.Sprintf("insufficient stock for variant %s", line.VariantID)).
				WithDetails(map[string]any{"variant_id": line.VariantID.String(), "requested": line.Quantity})
		}
		movement := models.StockMovement{
			ID:          uuid.New(),
			VariantID:   line.VariantID,
			Quantity:    -line.Quantity,
			Reason:      reason,
			ReferenceID: referenceID,
		}
		if err := tx.WithContext(ctx).Create(&movement).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record stock movement")
		}
	}
	return nil
}

// Restore adds each line's quantity back. Restores are unconditional: the
// guard only applies on the way down.
func (Ledger) Restore(ctx context.Context, tx *gorm.DB, lines []Line, reason enums.StockMovementReason, referenceID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock restore")
	}
	for _, line := range lines {
		if line.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "stock restore quantity must be positive")
		}
		res := tx.WithContext(ctx).Exec(`
			UPDATE product_variants
			SET stock = stock + ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, line.Quantity, line.VariantID)
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "restore stock")
		}
		if res.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeNotFound,
				fmt.Sprintf("variant %s not found for stock restore", line.VariantID))
		}
		movement := models.StockMovement{
			ID:          uuid.New(),
			VariantID:   line.VariantID,
			Quantity:    line.Quantity,
			Reason:      reason,
			ReferenceID: referenceID,
		}
		if err := tx.WithContext(ctx).Create(&movement).Error; err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record stock movement")
		}
	}
	return nil
}

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// IsTransient reports whether the error is a serialization or deadlock
// failure worth re-running the whole transaction for.
func IsTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
	}
	return false
}

// RunWithRetry re-runs fn while it fails with a transient database error,
// backing off between attempts. Domain errors pass through untouched.
func RunWithRetry(ctx context.Context, maxAttempts uint64, fn func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(maxAttempts, retry.NewFibonacci(25*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && IsTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
