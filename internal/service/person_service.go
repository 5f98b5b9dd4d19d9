package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/alpha-framework/alpha/internal/apperr"
	"github.com/alpha-framework/alpha/internal/models"
	"github.com/alpha-framework/alpha/internal/repository"
	"github.com/alpha-framework/alpha/internal/security"
	"github.com/alpha-framework/alpha/internal/validation"
	"github.com/rs/zerolog"
)

// personService is the concrete implementation of PersonService
type personService struct {
	repos     *repository.Repositories
	validator *validation.Validator
	log       zerolog.Logger
}

// newPersonService creates a new PersonService
func newPersonService(repos *repository.Repositories, validator *validation.Validator, log zerolog.Logger) *personService {
	return &personService{
		repos:     repos,
		validator: validator,
		log:       log.With().Str("service", "person").Logger(),
	}
}

// Register creates an active person holding Standard rights.
func (s *personService) Register(ctx context.Context, req *RegisterRequest) (*models.Person, error) {
	person := &models.Person{
		Username:    strings.TrimSpace(req.Username),
		Email:       strings.ToLower(strings.TrimSpace(req.Email)),
		DisplayName: strings.TrimSpace(req.DisplayName),
		State:       models.PersonActive,
	}

	errs := s.validator.ValidatePerson(person)
	errs = append(errs, s.validator.ValidatePassword(req.Password)...)
	if len(errs) == 0 {
		taken, err := s.repos.Person.UsernameExists(ctx, person.Username)
		if err != nil {
			return nil, err
		}
		if taken {
			errs = append(errs, apperr.FieldError{Field: "username", Message: "username is already taken", Value: person.Username})
		}
		taken, err = s.repos.Person.EmailExists(ctx, person.Email, "")
		if err != nil {
			return nil, err
		}
		if taken {
			errs = append(errs, apperr.FieldError{Field: "email", Message: "email is already registered", Value: person.Email})
		}
	}
	if len(errs) > 0 {
		return nil, apperr.NewValidation(person.RecordType(), errs)
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	person.PasswordHash = hash

	err = s.repos.Transaction(ctx, func(ctx context.Context) error {
		if err := s.repos.Person.Save(ctx, person); err != nil {
			return err
		}
		standard, err := s.repos.Rights.Ensure(ctx, models.RightsStandard)
		if err != nil {
			return err
		}
		return s.repos.Person.AssignRights(ctx, person, standard)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("person_id", person.ID).Str("username", person.Username).Msg("Person registered")
	return person, nil
}

// Authenticate checks credentials. Unknown usernames, disabled people and
// wrong passwords all yield apperr.ErrUnauthorized.
func (s *personService) Authenticate(ctx context.Context, username, password string) (*models.Person, error) {
	person, err := s.repos.Person.ByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, apperr.ErrRecordNotFound) {
		return nil, fmt.Errorf("login %q: %w", username, apperr.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	if !person.Active() {
		return nil, fmt.Errorf("login %q: account disabled: %w", username, apperr.ErrUnauthorized)
	}
	if err := security.CheckPassword(person.PasswordHash, password); err != nil {
		s.log.Warn().Str("username", username).Msg("Failed login")
		return nil, err
	}
	return person, nil
}

// Get loads a person with their rights.
func (s *personService) Get(ctx context.Context, id string) (*models.Person, error) {
	return s.repos.Person.LoadWithRights(ctx, id)
}

// AssignRights adds the named rights groups, creating them when missing.
func (s *personService) AssignRights(ctx context.Context, personID string, names ...string) (*models.Person, error) {
	var person *models.Person
	err := s.repos.Transaction(ctx, func(ctx context.Context) error {
		var err error
		if person, err = s.repos.Person.LoadWithRights(ctx, personID); err != nil {
			return err
		}
		rights, err := s.ensureRights(ctx, names)
		if err != nil {
			return err
		}
		if err := s.repos.Person.AssignRights(ctx, person, rights...); err != nil {
			return err
		}
		person, err = s.repos.Person.LoadWithRights(ctx, personID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("person_id", personID).Strs("rights", names).Msg("Rights assigned")
	return person, nil
}

// RevokeRights removes the named rights groups from a person.
func (s *personService) RevokeRights(ctx context.Context, personID string, names ...string) (*models.Person, error) {
	var person *models.Person
	err := s.repos.Transaction(ctx, func(ctx context.Context) error {
		var err error
		if person, err = s.repos.Person.LoadWithRights(ctx, personID); err != nil {
			return err
		}
		var revoke []*models.Rights
		for _, name := range names {
			r, err := s.repos.Rights.ByName(ctx, name)
			if errors.Is(err, apperr.ErrRecordNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			revoke = append(revoke, r)
		}
		if err := s.repos.Person.RevokeRights(ctx, person, revoke...); err != nil {
			return err
		}
		person, err = s.repos.Person.LoadWithRights(ctx, personID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return person, nil
}

// Disable prevents a person from logging in.
func (s *personService) Disable(ctx context.Context, personID string, version int) (*models.Person, error) {
	person, err := s.repos.Person.LoadWithRights(ctx, personID)
	if err != nil {
		return nil, err
	}
	person.Version = version
	person.State = models.PersonDisabled
	if err := s.repos.Person.Save(ctx, person); err != nil {
		return nil, err
	}
	s.log.Info().Str("person_id", personID).Msg("Person disabled")
	return person, nil
}

// EnsureRights creates the built-in rights groups.
func (s *personService) EnsureRights(ctx context.Context) error {
	_, err := s.ensureRights(ctx, []string{models.RightsAdmin, models.RightsStandard})
	return err
}

func (s *personService) ensureRights(ctx context.Context, names []string) ([]*models.Rights, error) {
	rights := make([]*models.Rights, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if !validation.IsAlphaNum(name) {
			return nil, fmt.Errorf("rights name %q: %w", name, apperr.ErrIllegalArgument)
		}
		r, err := s.repos.Rights.Ensure(ctx, name)
		if err != nil {
			return nil, err
		}
		rights = append(rights, r)
	}
	return rights, nil
}
