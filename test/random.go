// Package test provides random fixture generators shared by tests.
package test

import (
	"fmt"
	"math/rand"
	"sync/atomic"

	"github.com/tessera-archive/go-tessera/archive/model"
)

var globalSeed atomic.Int64

var languages = []string{"en", "ml", "fr", "de", "la"}
var types = []string{"book", "map", "manuscript", "photograph", "newspaper"}
var collections = []string{"heritage", "maps", "periodicals"}

// RandomItems returns n random thumbnail-bearing items with unique IDs.
func RandomItems(n int) []model.Item {
	rng := rand.New(rand.NewSource(globalSeed.Add(1)))
	items := make([]model.Item, n)
	for i := range items {
		id := fmt.Sprintf("item-%d-%d", globalSeed.Load(), i)
		items[i] = model.Item{
			ID:           id,
			Title:        fmt.Sprintf("Artefact %s", id),
			Year:         1500 + rng.Intn(500),
			Language:     languages[rng.Intn(len(languages))],
			Type:         types[rng.Intn(len(types))],
			Collection:   collections[rng.Intn(len(collections))],
			ThumbnailURL: fmt.Sprintf("https://archive.example/thumbs/%s.jpg", id),
			SourceURL:    fmt.Sprintf("https://archive.example/items/%s", id),
		}
	}
	return items
}

// RandomItemsNoThumbnail returns n random items that cannot be rendered as
// cards, for exercising the thumbnail drop at the provider boundary.
func RandomItemsNoThumbnail(n int) []model.Item {
	items := RandomItems(n)
	for i := range items {
		items[i].ThumbnailURL = ""
	}
	return items
}
