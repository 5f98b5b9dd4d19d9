package service

import (
	"context"
	"strings"
	"sync"

	"github.com/alpha-framework/alpha/internal/apperr"
	"github.com/alpha-framework/alpha/internal/models"
	"github.com/alpha-framework/alpha/internal/repository"
	"github.com/alpha-framework/alpha/internal/validation"
	"github.com/rs/zerolog"
)

// DefaultSections are the article sections created on first start.
var DefaultSections = []string{"News", "Tutorials", "Opinion"}

// denumService is the concrete implementation of DEnumService
type denumService struct {
	repo      repository.DEnumRepository
	validator *validation.Validator
	log       zerolog.Logger

	mu       sync.RWMutex
	sections []models.DEnumItem
	loaded   bool
}

// newDEnumService creates a new DEnumService
func newDEnumService(repos *repository.Repositories, validator *validation.Validator, log zerolog.Logger) *denumService {
	return &denumService{
		repo:      repos.DEnum,
		validator: validator,
		log:       log.With().Str("service", "denum").Logger(),
	}
}

// Get loads an enum with its items in display order.
func (s *denumService) Get(ctx context.Context, name string) (*models.DEnum, error) {
	return s.repo.ByName(ctx, name)
}

// Replace rewrites the options of an enum. version must be the version the
// caller read.
func (s *denumService) Replace(ctx context.Context, name string, version int, values []string) (*models.DEnum, error) {
	cleaned := make([]string, 0, len(values))
	for _, v := range values {
		cleaned = append(cleaned, strings.TrimSpace(v))
	}
	if errs := s.validator.ValidateDEnumValues(cleaned); len(errs) > 0 {
		return nil, apperr.NewValidation(models.DEnum{}.RecordType(), errs)
	}

	denum, err := s.repo.ByName(ctx, name)
	if err != nil {
		return nil, err
	}
	denum.Version = version
	if err := s.repo.ReplaceItems(ctx, denum, cleaned); err != nil {
		return nil, err
	}

	if name == models.SectionEnum {
		s.setSections(denum)
	}
	s.log.Info().Str("denum", name).Strs("values", cleaned).Msg("DEnum options replaced")
	return denum, nil
}

// EnsureDefaults creates the built-in enums when missing and primes the
// article section validator.
func (s *denumService) EnsureDefaults(ctx context.Context) error {
	denum, err := s.repo.Ensure(ctx, models.SectionEnum, DefaultSections)
	if err != nil {
		return err
	}
	s.setSections(denum)
	return nil
}

// Sections returns the article section options.
func (s *denumService) Sections(ctx context.Context) ([]models.DEnumItem, error) {
	s.mu.RLock()
	if s.loaded {
		items := s.sections
		s.mu.RUnlock()
		return items, nil
	}
	s.mu.RUnlock()

	denum, err := s.repo.ByName(ctx, models.SectionEnum)
	if err != nil {
		return nil, err
	}
	s.setSections(denum)
	return denum.Items, nil
}

func (s *denumService) setSections(denum *models.DEnum) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sections = denum.Items
	s.loaded = true
	s.validator.SetSections(denum)
}
