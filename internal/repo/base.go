package repo

import (
	"context"

	"gorm.io/gorm"
)

// Base is the embedded core of the domain repositories: it owns the gorm
// handle and binds it to the request context per call.
type Base struct {
	db *gorm.DB
}

func NewBase(db *gorm.DB) Base {
	return Base{db: db}
}

// DB returns the handle scoped to ctx.
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}
