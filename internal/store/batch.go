package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Batch stages deletes and commits them in one transaction: either every
// staged document is removed or none is.
type Batch struct {
	db   *gorm.DB
	refs []Ref
}

func (b *Batch) Delete(ref Ref) {
	b.refs = append(b.refs, ref)
}

func (b *Batch) Len() int {
	return len(b.refs)
}

// Commit deletes every staged ref. Refs that no longer exist are not an error.
func (b *Batch) Commit(ctx context.Context) error {
	if len(b.refs) == 0 {
		return nil
	}

	targets := make([]interface{}, len(b.refs))
	for i, ref := range b.refs {
		m, err := modelFor(ref.Collection)
		if err != nil {
			return err
		}
		targets[i] = m
	}

	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, ref := range b.refs {
			if err := tx.Where(keyColumn(ref.Collection)+" = ?", ref.ID).Delete(targets[i]).Error; err != nil {
				return fmt.Errorf("delete %s: %w", ref, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("commit batch of %d: %w", len(b.refs), err)
	}
	return nil
}
