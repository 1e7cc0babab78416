// Package seed produces the initial post collection: either generated
// mock posts or a YAML fixture file.
package seed

import (
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/ButyrinIA/postadmin/internal/models"
	"gopkg.in/yaml.v3"
)

const alphabet = "abcdefghijklmnopqrstuvwxyz"

// Generate returns n posts with ids n..1, newest first, random content,
// status and order in [1, 20].
func Generate(n int, rng *rand.Rand, now time.Time) []models.Post {
	posts := make([]models.Post, 0, n)
	for i := 0; i < n; i++ {
		id := int64(n - i)
		posts = append(posts, models.Post{
			ID:        id,
			Title:     fmt.Sprintf("post - %d", id),
			Content:   alphabet[randomInt(rng, 0, 8):randomInt(rng, 14, 25)],
			Status:    models.PostStatus(randomInt(rng, 0, 1)),
			Order:     randomInt(rng, 1, 20),
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return posts
}

type fixture struct {
	Posts []struct {
		ID      int64  `yaml:"id"`
		Title   string `yaml:"title"`
		Content string `yaml:"content"`
		Status  int    `yaml:"status"`
		Order   int    `yaml:"order"`
	} `yaml:"posts"`
}

// LoadFile reads posts from a YAML fixture:
//
//	posts:
//	  - {id: 2, title: "second", content: "...", status: 1, order: 3}
//	  - {id: 1, title: "first", content: "...", status: 0, order: 1}
func LoadFile(path string, now time.Time) ([]models.Post, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}

	var f fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	posts := make([]models.Post, 0, len(f.Posts))
	seen := make(map[int64]struct{}, len(f.Posts))
	for i, p := range f.Posts {
		if p.ID <= 0 {
			return nil, fmt.Errorf("seed post #%d: id must be positive", i)
		}
		if _, dup := seen[p.ID]; dup {
			return nil, fmt.Errorf("seed post #%d: duplicate id %d", i, p.ID)
		}
		seen[p.ID] = struct{}{}

		status := models.PostStatus(p.Status)
		if !status.Valid() {
			return nil, fmt.Errorf("seed post #%d: invalid status %d", i, p.Status)
		}
		order := p.Order
		if order < 1 {
			order = 1
		}
		posts = append(posts, models.Post{
			ID:        p.ID,
			Title:     p.Title,
			Content:   p.Content,
			Status:    status,
			Order:     order,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return posts, nil
}

func randomInt(rng *rand.Rand, lo, hi int) int {
	return rng.IntN(hi-lo+1) + lo
}
