package repository

import (
	"context"
	"sort"

	"github.com/alpha-framework/alpha/internal/database"
	"github.com/alpha-framework/alpha/internal/models"
)

type tagRepo struct {
	*Store[models.Tag, *models.Tag]
	db *database.DB
}

// NewTagRepo creates a new tag repository
func NewTagRepo(db *database.DB) TagRepository {
	return &tagRepo{
		Store: NewStore[models.Tag, *models.Tag](db),
		db:    db,
	}
}

// ForRecord returns the tags attached to one record, alphabetically
func (r *tagRepo) ForRecord(ctx context.Context, class, id string) ([]*models.Tag, error) {
	return r.List(ctx, Page{Order: "content asc"}, Where("tagged_class", class), Where("tagged_id", id))
}

// Replace makes the record's tag set equal to contents. Contents are expected
// to be normalised already.
func (r *tagRepo) Replace(ctx context.Context, class, id string, contents []string) error {
	return InTx(ctx, r.db, func(ctx context.Context) error {
		current, err := r.ForRecord(ctx, class, id)
		if err != nil {
			return err
		}

		want := make(map[string]bool, len(contents))
		for _, c := range contents {
			want[c] = true
		}

		have := make(map[string]bool, len(current))
		for _, tag := range current {
			if !want[tag.Content] {
				if err := r.Delete(ctx, tag); err != nil {
					return err
				}
				continue
			}
			have[tag.Content] = true
		}

		for _, c := range contents {
			if have[c] {
				continue
			}
			have[c] = true
			if err := r.Save(ctx, &models.Tag{TaggedClass: class, TaggedID: id, Content: c}); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteForRecord removes every tag of a record
func (r *tagRepo) DeleteForRecord(ctx context.Context, class, id string) error {
	return conn(ctx, r.db).
		Where("tagged_class = ? AND tagged_id = ?", class, id).
		Delete(&models.Tag{}).Error
}

// Cloud returns the most used tags of a class with a 1..5 weight, sorted by content
func (r *tagRepo) Cloud(ctx context.Context, class string, limit int) ([]models.TagCount, error) {
	var counts []models.TagCount
	q := conn(ctx, r.db).Model(&models.Tag{}).
		Select("content, COUNT(*) AS count").
		Where("tagged_class = ?", class).
		Group("content").
		Order("count desc, content asc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(&counts).Error; err != nil {
		return nil, err
	}

	return weighTags(counts), nil
}

// weighTags assigns each tag a weight from 1 to 5 scaled between the least and
// most used tag, then sorts alphabetically.
func weighTags(counts []models.TagCount) []models.TagCount {
	if len(counts) == 0 {
		return counts
	}

	minC, maxC := counts[0].Count, counts[0].Count
	for _, c := range counts {
		if c.Count < minC {
			minC = c.Count
		}
		if c.Count > maxC {
			maxC = c.Count
		}
	}

	for i := range counts {
		if maxC == minC {
			counts[i].Weight = 3
			continue
		}
		counts[i].Weight = 1 + (counts[i].Count-minC)*4/(maxC-minC)
	}

	sort.Slice(counts, func(i, j int) bool { return counts[i].Content < counts[j].Content })
	return counts
}
