package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/alpha-framework/alpha/internal/apperr"
	"github.com/alpha-framework/alpha/internal/database"
	"github.com/alpha-framework/alpha/internal/models"
	"gorm.io/gorm"
)

type denumRepo struct {
	*Store[models.DEnum, *models.DEnum]
	items *Store[models.DEnumItem, *models.DEnumItem]
	db    *database.DB
}

// NewDEnumRepo creates a new dynamic enum repository
func NewDEnumRepo(db *database.DB) DEnumRepository {
	return &denumRepo{
		Store: NewStore[models.DEnum, *models.DEnum](db),
		items: NewStore[models.DEnumItem, *models.DEnumItem](db),
		db:    db,
	}
}

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("display_order")
}

// ByName loads an enum and its items in display order
func (r *denumRepo) ByName(ctx context.Context, name string) (*models.DEnum, error) {
	var denum models.DEnum
	err := conn(ctx, r.db).Preload("Items", orderedItems).Where("name = ?", name).First(&denum).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("denum %q: %w", name, apperr.ErrRecordNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &denum, nil
}

// Load fetches an enum by id together with its items
func (r *denumRepo) Load(ctx context.Context, id string) (*models.DEnum, error) {
	var denum models.DEnum
	err := conn(ctx, r.db).Preload("Items", orderedItems).First(&denum, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("denum %s: %w", id, apperr.ErrRecordNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &denum, nil
}

// ReplaceItems rewrites the option list. Items whose value survives keep
// their id so references to them stay valid; the enum's version is bumped.
func (r *denumRepo) ReplaceItems(ctx context.Context, denum *models.DEnum, values []string) error {
	return InTx(ctx, r.db, func(ctx context.Context) error {
		existing := make(map[string]*models.DEnumItem, len(denum.Items))
		for i := range denum.Items {
			existing[denum.Items[i].Value] = &denum.Items[i]
		}

		kept := make(map[string]bool, len(values))
		items := make([]models.DEnumItem, 0, len(values))
		for i, v := range values {
			if kept[v] {
				continue
			}
			kept[v] = true

			item, ok := existing[v]
			if !ok {
				item = &models.DEnumItem{DEnumID: denum.ID, Value: v}
			}
			item.DisplayOrder = i
			if err := r.items.Save(ctx, item); err != nil {
				return err
			}
			items = append(items, *item)
		}

		for v, item := range existing {
			if kept[v] {
				continue
			}
			if err := r.items.Delete(ctx, item); err != nil {
				return err
			}
		}

		if err := r.Save(ctx, denum); err != nil {
			return err
		}
		denum.Items = items
		return nil
	})
}

// Ensure returns the named enum, creating it with defaults when missing
func (r *denumRepo) Ensure(ctx context.Context, name string, defaults []string) (*models.DEnum, error) {
	denum, err := r.ByName(ctx, name)
	if err == nil {
		return denum, nil
	}
	if !errors.Is(err, apperr.ErrRecordNotFound) {
		return nil, err
	}

	denum = &models.DEnum{Name: name}
	err = InTx(ctx, r.db, func(ctx context.Context) error {
		if err := r.Save(ctx, denum); err != nil {
			return err
		}
		for i, v := range defaults {
			item := models.DEnumItem{DEnumID: denum.ID, Value: v, DisplayOrder: i}
			if err := r.items.Save(ctx, &item); err != nil {
				return err
			}
			denum.Items = append(denum.Items, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return denum, nil
}

// Delete removes the enum and its items
func (r *denumRepo) Delete(ctx context.Context, denum *models.DEnum) error {
	return InTx(ctx, r.db, func(ctx context.Context) error {
		if err := conn(ctx, r.db).Where("denum_id = ?", denum.ID).Delete(&models.DEnumItem{}).Error; err != nil {
			return err
		}
		return r.Store.Delete(ctx, denum)
	})
}
