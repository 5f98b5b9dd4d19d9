package validation

import (
	"fmt"
	"net/netip"
	"regexp"
	"strings"

	"github.com/alpha-framework/alpha/internal/apperr"
	"github.com/alpha-framework/alpha/internal/models"
	"github.com/google/uuid"
)

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	slugRegex     = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,32}$`)
	integerRegex  = regexp.MustCompile(`^[-+]?[0-9]+$`)
	doubleRegex   = regexp.MustCompile(`^[-+]?[0-9]*\.?[0-9]+([eE][-+]?[0-9]+)?$`)
	alphaRegex    = regexp.MustCompile(`^[a-zA-Z]+$`)
	alphaNumRegex = regexp.MustCompile(`^[a-zA-Z0-9]+$`)
	urlRegex      = regexp.MustCompile(`^https?://[a-zA-Z0-9.-]+(:[0-9]{1,5})?(/[^\s]*)?$`)
	sequenceRegex = regexp.MustCompile(`^[A-Z0-9]{1,32}-[0-9]+$`)
	prefixRegex   = regexp.MustCompile(`^[A-Z0-9]{1,32}$`)
	tagRegex      = regexp.MustCompile(`^[\p{Ll}\p{N}][\p{Ll}\p{N} ._+#-]{0,63}$`)
)

// Maximum field lengths, matching the column sizes
const (
	MaxTitleLength       = 255
	MaxDescriptionLength = 500
	MaxDisplayNameLength = 100
	MinPasswordLength    = 8
)

// IsEmail reports whether s looks like an email address
func IsEmail(s string) bool { return emailRegex.MatchString(s) }

// IsSlug reports whether s is kebab-case
func IsSlug(s string) bool { return slugRegex.MatchString(s) }

// IsUsername reports whether s is 3-32 letters, digits, '_', '.' or '-'
func IsUsername(s string) bool { return usernameRegex.MatchString(s) }

func IsInteger(s string) bool  { return integerRegex.MatchString(s) }
func IsDouble(s string) bool   { return doubleRegex.MatchString(s) }
func IsAlpha(s string) bool    { return alphaRegex.MatchString(s) }
func IsAlphaNum(s string) bool { return alphaNumRegex.MatchString(s) }
func IsURL(s string) bool      { return urlRegex.MatchString(s) }

// IsBoolean accepts the spellings HTML forms and query strings use
func IsBoolean(s string) bool {
	switch strings.ToLower(s) {
	case "true", "false", "1", "0", "on", "off":
		return true
	}
	return false
}

// IsIP reports whether s is an IPv4 or IPv6 address
func IsIP(s string) bool {
	_, err := netip.ParseAddr(s)
	return err == nil
}

// IsSequence reports whether s has the PREFIX-N form of a sequence value
func IsSequence(s string) bool { return sequenceRegex.MatchString(s) }

// IsSequencePrefix reports whether s can name a sequence
func IsSequencePrefix(s string) bool { return prefixRegex.MatchString(s) }

// IsTag reports whether s is a normalised tag
func IsTag(s string) bool { return tagRegex.MatchString(s) }

// NormalizeTags lower-cases, trims and de-duplicates tags, dropping empty ones.
// Order of first appearance is kept.
func NormalizeTags(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		for _, part := range strings.Split(r, ",") {
			tag := strings.ToLower(strings.TrimSpace(part))
			if tag == "" || seen[tag] {
				continue
			}
			seen[tag] = true
			out = append(out, tag)
		}
	}
	return out
}

// Validator checks records before they are saved. Options for DEnum-backed
// fields are supplied by the caller.
type Validator struct {
	sectionIDs map[string]bool
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{sectionIDs: make(map[string]bool)}
}

// SetSections sets the valid article section item ids
func (v *Validator) SetSections(denum *models.DEnum) {
	v.sectionIDs = make(map[string]bool, len(denum.Items))
	for _, item := range denum.Items {
		v.sectionIDs[item.ID] = true
	}
}

// ValidateArticle validates an article record
func (v *Validator) ValidateArticle(article *models.Article) []apperr.FieldError {
	var errors []apperr.FieldError

	// Validate title
	if strings.TrimSpace(article.Title) == "" {
		errors = append(errors, apperr.FieldError{Field: "title", Message: "title is required"})
	} else if len(article.Title) > MaxTitleLength {
		errors = append(errors, apperr.FieldError{Field: "title", Message: fmt.Sprintf("title exceeds %d characters", MaxTitleLength)})
	}

	// Validate slug
	if article.Slug == "" {
		errors = append(errors, apperr.FieldError{Field: "slug", Message: "slug is required"})
	} else if !IsSlug(article.Slug) {
		errors = append(errors, apperr.FieldError{Field: "slug", Message: "slug must be kebab-case (lowercase letters, numbers, hyphens)", Value: article.Slug})
	}

	if len(article.Description) > MaxDescriptionLength {
		errors = append(errors, apperr.FieldError{Field: "description", Message: fmt.Sprintf("description exceeds %d characters", MaxDescriptionLength)})
	}

	if article.SectionID != "" && len(v.sectionIDs) > 0 && !v.sectionIDs[article.SectionID] {
		errors = append(errors, apperr.FieldError{Field: "section_id", Message: "unknown section", Value: article.SectionID})
	}

	if article.HeaderImage != "" && !IsURL(article.HeaderImage) {
		errors = append(errors, apperr.FieldError{Field: "header_image", Message: "invalid URL", Value: article.HeaderImage})
	}

	// Published articles need content and a publication date
	if article.Published {
		if strings.TrimSpace(article.Content) == "" {
			errors = append(errors, apperr.FieldError{Field: "content", Message: "published articles must have content"})
		}
		if article.PublishedAt == nil {
			errors = append(errors, apperr.FieldError{Field: "published_at", Message: "published articles must have published_at"})
		}
	} else if article.PublishedAt != nil {
		errors = append(errors, apperr.FieldError{Field: "published_at", Message: "draft articles must not have published_at"})
	}

	for _, tag := range article.Tags {
		if !IsTag(tag) {
			errors = append(errors, apperr.FieldError{Field: "tags", Message: "invalid tag", Value: tag})
		}
	}

	return errors
}

// ValidateComment validates a comment record
func (v *Validator) ValidateComment(comment *models.ArticleComment) []apperr.FieldError {
	var errors []apperr.FieldError

	// Validate article_id (FK)
	if comment.ArticleID == "" {
		errors = append(errors, apperr.FieldError{Field: "article_id", Message: "article_id is required"})
	} else if !isValidUUID(comment.ArticleID) {
		errors = append(errors, apperr.FieldError{Field: "article_id", Message: "invalid UUID format", Value: comment.ArticleID})
	}

	if comment.PersonID != "" && !isValidUUID(comment.PersonID) {
		errors = append(errors, apperr.FieldError{Field: "person_id", Message: "invalid UUID format", Value: comment.PersonID})
	}

	// Validate content
	if strings.TrimSpace(comment.Content) == "" {
		errors = append(errors, apperr.FieldError{Field: "content", Message: "content is required"})
	} else {
		// Check word count
		wordCount := len(strings.Fields(comment.Content))
		if wordCount > models.MaxCommentWords {
			errors = append(errors, apperr.FieldError{
				Field:   "content",
				Message: fmt.Sprintf("content exceeds maximum of %d words (has %d)", models.MaxCommentWords, wordCount),
			})
		}
	}

	return errors
}

// ValidatePerson validates a person record
func (v *Validator) ValidatePerson(person *models.Person) []apperr.FieldError {
	var errors []apperr.FieldError

	if person.Username == "" {
		errors = append(errors, apperr.FieldError{Field: "username", Message: "username is required"})
	} else if !IsUsername(person.Username) {
		errors = append(errors, apperr.FieldError{Field: "username", Message: "username must be 3-32 letters, digits, '_', '.' or '-'", Value: person.Username})
	}

	// Validate email
	if person.Email == "" {
		errors = append(errors, apperr.FieldError{Field: "email", Message: "email is required"})
	} else if !IsEmail(person.Email) {
		errors = append(errors, apperr.FieldError{Field: "email", Message: "invalid email format", Value: person.Email})
	}

	if len(person.DisplayName) > MaxDisplayNameLength {
		errors = append(errors, apperr.FieldError{Field: "display_name", Message: fmt.Sprintf("display_name exceeds %d characters", MaxDisplayNameLength)})
	}

	switch person.State {
	case models.PersonActive, models.PersonDisabled:
	case "":
		errors = append(errors, apperr.FieldError{Field: "state", Message: "state is required"})
	default:
		errors = append(errors, apperr.FieldError{
			Field:   "state",
			Message: fmt.Sprintf("invalid state, must be one of: %s, %s", models.PersonActive, models.PersonDisabled),
			Value:   person.State,
		})
	}

	return errors
}

// ValidatePassword checks a clear-text password before hashing
func (v *Validator) ValidatePassword(password string) []apperr.FieldError {
	if len(password) < MinPasswordLength {
		return []apperr.FieldError{{Field: "password", Message: fmt.Sprintf("password must be at least %d characters", MinPasswordLength)}}
	}
	return nil
}

// ValidateTag validates a tag record
func (v *Validator) ValidateTag(tag *models.Tag) []apperr.FieldError {
	var errors []apperr.FieldError
	if tag.TaggedClass == "" {
		errors = append(errors, apperr.FieldError{Field: "tagged_class", Message: "tagged_class is required"})
	}
	if tag.TaggedID == "" {
		errors = append(errors, apperr.FieldError{Field: "tagged_id", Message: "tagged_id is required"})
	}
	if !IsTag(tag.Content) {
		errors = append(errors, apperr.FieldError{Field: "content", Message: "invalid tag", Value: tag.Content})
	}
	return errors
}

// ValidateDEnumValues validates the options of a dynamic enum
func (v *Validator) ValidateDEnumValues(values []string) []apperr.FieldError {
	var errors []apperr.FieldError
	if len(values) == 0 {
		return []apperr.FieldError{{Field: "items", Message: "at least one option is required"}}
	}
	seen := make(map[string]bool, len(values))
	for _, val := range values {
		switch {
		case strings.TrimSpace(val) == "":
			errors = append(errors, apperr.FieldError{Field: "items", Message: "options must not be blank"})
		case seen[val]:
			errors = append(errors, apperr.FieldError{Field: "items", Message: "duplicate option", Value: val})
		}
		seen[val] = true
	}
	return errors
}

// isValidUUID checks if a string is a valid UUID
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
