package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alpha-framework/alpha/internal/apperr"
	"github.com/alpha-framework/alpha/internal/database"
	"github.com/alpha-framework/alpha/internal/models"
	"gorm.io/gorm"
)

// personRepo is the concrete implementation of PersonRepository
type personRepo struct {
	*Store[models.Person, *models.Person]
	db *database.DB
}

// NewPersonRepo creates a new person repository
func NewPersonRepo(db *database.DB) PersonRepository {
	return &personRepo{
		Store: NewStore[models.Person, *models.Person](db),
		db:    db,
	}
}

// LoadWithRights loads a person together with their rights groups
func (r *personRepo) LoadWithRights(ctx context.Context, id string) (*models.Person, error) {
	var person models.Person
	err := conn(ctx, r.db).Preload("Rights").First(&person, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("person %s: %w", id, apperr.ErrRecordNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &person, nil
}

// ByUsername retrieves a person and their rights by username
func (r *personRepo) ByUsername(ctx context.Context, username string) (*models.Person, error) {
	var person models.Person
	err := conn(ctx, r.db).Preload("Rights").Where("username = ?", username).First(&person).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("person %q: %w", username, apperr.ErrRecordNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &person, nil
}

// EmailExists checks if another person already uses the email (case-insensitive)
func (r *personRepo) EmailExists(ctx context.Context, email, excludeID string) (bool, error) {
	var n int64
	q := conn(ctx, r.db).Model(&models.Person{}).Where("LOWER(email) = ?", strings.ToLower(email))
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	err := q.Count(&n).Error
	return n > 0, err
}

// UsernameExists checks if the username is taken
func (r *personRepo) UsernameExists(ctx context.Context, username string) (bool, error) {
	n, err := r.Count(ctx, Where("username", username))
	return n > 0, err
}

// AssignRights adds the person to rights groups
func (r *personRepo) AssignRights(ctx context.Context, person *models.Person, rights ...*models.Rights) error {
	if len(rights) == 0 {
		return nil
	}
	if err := conn(ctx, r.db).Model(person).Association("Rights").Append(rights); err != nil {
		return fmt.Errorf("assign rights to %s: %w", person.Username, err)
	}
	return nil
}

// RevokeRights removes the person from rights groups
func (r *personRepo) RevokeRights(ctx context.Context, person *models.Person, rights ...*models.Rights) error {
	if len(rights) == 0 {
		return nil
	}
	if err := conn(ctx, r.db).Model(person).Association("Rights").Delete(rights); err != nil {
		return fmt.Errorf("revoke rights from %s: %w", person.Username, err)
	}
	return nil
}

// Delete removes the person's rights memberships before the person itself
func (r *personRepo) Delete(ctx context.Context, person *models.Person) error {
	return InTx(ctx, r.db, func(ctx context.Context) error {
		if err := conn(ctx, r.db).Model(person).Association("Rights").Clear(); err != nil {
			return err
		}
		return r.Store.Delete(ctx, person)
	})
}

type rightsRepo struct {
	*Store[models.Rights, *models.Rights]
	db *database.DB
}

// NewRightsRepo creates a new rights repository
func NewRightsRepo(db *database.DB) RightsRepository {
	return &rightsRepo{
		Store: NewStore[models.Rights, *models.Rights](db),
		db:    db,
	}
}

// ByName retrieves a rights group by name
func (r *rightsRepo) ByName(ctx context.Context, name string) (*models.Rights, error) {
	var rights models.Rights
	err := conn(ctx, r.db).Where("name = ?", name).First(&rights).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("rights %q: %w", name, apperr.ErrRecordNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &rights, nil
}

// Ensure returns the rights group, creating it when missing
func (r *rightsRepo) Ensure(ctx context.Context, name string) (*models.Rights, error) {
	rights, err := r.ByName(ctx, name)
	if err == nil {
		return rights, nil
	}
	if !errors.Is(err, apperr.ErrRecordNotFound) {
		return nil, err
	}

	rights = &models.Rights{Name: name}
	if err := r.Save(ctx, rights); err != nil {
		return nil, err
	}
	return rights, nil
}
