package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Hello World", "hello-world"},
		{"  Crème Brûlée: a recipe!  ", "creme-brulee-a-recipe"},
		{"Go 1.23 -- what's new?", "go-1-23-what-s-new"},
		{"***", ""},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			got := Slugify(tt.title)
			if got != tt.want {
				t.Errorf("Slugify(%q) = %q, want %q", tt.title, got, tt.want)
			}
			if got != "" && !IsSlug(got) {
				t.Errorf("Slugify(%q) = %q is not a valid slug", tt.title, got)
			}
		})
	}

	long := Slugify(strings.Repeat("ab ", 100))
	if len(long) > maxSlugLength || strings.HasSuffix(long, "-") {
		t.Errorf("long slug not trimmed correctly: %q", long)
	}
}

func TestUniqueSlug(t *testing.T) {
	used := map[string]bool{"hello": true, "hello-2": true}
	got, err := UniqueSlug("hello", func(s string) (bool, error) { return used[s], nil })
	if err != nil {
		t.Fatal(err)
	}
	if got != "hello-3" {
		t.Errorf("UniqueSlug() = %q, want hello-3", got)
	}

	boom := errors.New("db down")
	if _, err := UniqueSlug("x", func(string) (bool, error) { return false, boom }); !errors.Is(err, boom) {
		t.Errorf("expected lookup error, got %v", err)
	}

	got, _ = UniqueSlug("", func(string) (bool, error) { return false, nil })
	if got != "article" {
		t.Errorf("empty base should fall back to article, got %q", got)
	}
}
