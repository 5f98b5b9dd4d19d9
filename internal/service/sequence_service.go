package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/alpha-framework/alpha/internal/apperr"
	"github.com/alpha-framework/alpha/internal/models"
	"github.com/alpha-framework/alpha/internal/repository"
	"github.com/alpha-framework/alpha/internal/validation"
)

type sequenceService struct {
	repo repository.SequenceRepository
}

func newSequenceService(repo repository.SequenceRepository) *sequenceService {
	return &sequenceService{repo: repo}
}

// Next increments the named counter. Prefixes are upper-cased.
func (s *sequenceService) Next(ctx context.Context, prefix string) (*models.Sequence, error) {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if !validation.IsSequencePrefix(prefix) {
		return nil, fmt.Errorf("sequence prefix %q: %w", prefix, apperr.ErrIllegalArgument)
	}
	return s.repo.Next(ctx, prefix)
}
