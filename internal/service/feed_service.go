package service

import (
	"context"
	"strings"
	"time"

	"github.com/alpha-framework/alpha/internal/config"
	"github.com/alpha-framework/alpha/internal/feed"
	"github.com/alpha-framework/alpha/internal/markdown"
	"github.com/alpha-framework/alpha/internal/models"
	"github.com/alpha-framework/alpha/internal/repository"
	"github.com/gorilla/feeds"
)

const excerptLength = 300

type feedService struct {
	repos *repository.Repositories
	md    *markdown.Renderer
	site  config.SiteConfig
}

func newFeedService(repos *repository.Repositories, md *markdown.Renderer, site config.SiteConfig) *feedService {
	return &feedService{repos: repos, md: md, site: site}
}

// Recent builds a feed of the most recently published articles.
func (s *feedService) Recent(ctx context.Context) (*feeds.Feed, error) {
	articles, err := s.repos.Article.ListPublished(ctx, repository.Page{Limit: s.site.FeedSize})
	if err != nil {
		return nil, err
	}

	base := strings.TrimRight(s.site.URL, "/")
	entries := make([]feed.Entry, 0, len(articles))
	for _, a := range articles {
		tags, err := s.repos.Tag.ForRecord(ctx, a.RecordType(), a.ID)
		if err != nil {
			return nil, err
		}
		categories := make([]string, 0, len(tags))
		for _, t := range tags {
			categories = append(categories, t.Content)
		}

		description := a.Description
		if description == "" {
			description = s.md.Excerpt(a.Content, excerptLength)
		}
		entries = append(entries, feed.Entry{
			ID:          base + "/articles/" + a.Slug,
			Title:       a.Title,
			Link:        base + "/articles/" + a.Slug,
			Description: description,
			Author:      a.Author,
			Published:   publishedAt(a),
			Updated:     a.UpdatedAt,
			Categories:  categories,
		})
	}

	return feed.Build(feed.Meta{
		Title:       s.site.Title,
		Link:        base + "/",
		Description: s.site.Description,
		Email:       s.site.AdminEmail,
	}, entries), nil
}

func publishedAt(a *models.Article) time.Time {
	if a.PublishedAt != nil {
		return *a.PublishedAt
	}
	return a.CreatedAt
}
