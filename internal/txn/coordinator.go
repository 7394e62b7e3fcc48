// Package txn wraps multi-record mutations in a single all-or-nothing unit
// and defers cache invalidation until after a successful commit, so a failed
// write never exposes a staleness window.
package txn

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/recetario/backend/internal/cache"
)

// Unit is the handle passed to the transactional function. Store writes go
// through Tx; cache keys registered with Invalidate are deleted only once
// the transaction commits.
type Unit struct {
	Tx   *gorm.DB
	keys []cache.Key
}

// Invalidate registers keys for post-commit deletion. Rendered variants are
// added automatically so response caches never outlive the entity caches.
func (u *Unit) Invalidate(keys ...cache.Key) {
	for _, k := range keys {
		u.keys = append(u.keys, k, k.Rendered())
	}
}

// Coordinator runs transactional units against the store and a cache.
type Coordinator struct {
	db    *gorm.DB
	cache cache.Cache
}

func New(db *gorm.DB, c cache.Cache) *Coordinator {
	return &Coordinator{db: db, cache: c}
}

// Run executes fn inside a transaction. On commit the registered keys are
// deleted before Run returns, so a caller that observed success never reads
// the pre-mutation value. On rollback nothing is invalidated.
func (c *Coordinator) Run(ctx context.Context, fn func(u *Unit) error) error {
	unit := &Unit{}
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		unit.Tx = tx
		return fn(unit)
	})
	if err != nil {
		return err
	}
	if len(unit.keys) > 0 {
		// Invalidation must complete before success is reported; otherwise a
		// caller could read the pre-mutation value right after the write.
		if err := c.cache.Delete(ctx, unit.keys...); err != nil {
			return fmt.Errorf("invalidate after commit: %w", err)
		}
	}
	return nil
}

// DB exposes the underlying handle for read paths that do not need a unit.
func (c *Coordinator) DB() *gorm.DB { return c.db }
