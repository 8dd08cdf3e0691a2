// Package fallback holds the stock images substituted when generation fails
package fallback

import (
	"math/rand/v2"
	"strings"

	"github.com/samber/lo"
)

// Category groups fallback images by theme
type Category string

const (
	Emotions   Category = "emotions"
	Memes      Category = "memes"
	Characters Category = "characters"
)

const unsplashParams = "?w=800&auto=format&fit=crop"

func unsplash(id string) string {
	return "https://images.unsplash.com/" + id + unsplashParams
}

// PlaceholderURL is shown when no provider credential is configured
var PlaceholderURL = unsplash("photo-1541199249251-f713e6145474")

var categoryImages = map[Category][]string{
	Emotions: {
		unsplash("photo-1499557354967-2b2d8910bcca"),
		unsplash("photo-1537181534458-45dcee76ae90"),
		unsplash("photo-1584704135557-d8bf7ec1bf58"),
		unsplash("photo-1541199249251-f713e6145474"),
	},
	Memes: {
		unsplash("photo-1501386761578-eac5c94b800a"),
		unsplash("photo-1541562232579-512a21360020"),
		unsplash("photo-1618331833071-ce81bd50d300"),
		unsplash("photo-1598550480917-1c485268676e"),
	},
	Characters: {
		unsplash("photo-1578632767115-351597cf2477"),
		unsplash("photo-1551122089-4e3e72477432"),
		unsplash("photo-1600256697399-99034ab0738d"),
		unsplash("photo-1626891825444-57b3f81801ec"),
	},
}

// keywordRules are checked in order; the first category with a matching keyword wins
var keywordRules = []struct {
	category Category
	keywords []string
}{
	{Emotions, []string{"sad", "cry", "tear", "sadness", "crying", "tears"}},
	{Memes, []string{"meme", "wojak", "pepe", "memes", "funny"}},
	{Characters, []string{"character", "avatar", "persona", "figure"}},
}

// Pool selects fallback images. It holds no mutable state.
type Pool struct {
	images map[Category][]string
	all    []string
}

// NewPool returns the pool of built-in stock images
func NewPool() *Pool {
	return &Pool{
		images: categoryImages,
		all: lo.Flatten([][]string{
			categoryImages[Emotions],
			categoryImages[Memes],
			categoryImages[Characters],
		}),
	}
}

// All returns every image in the pool
func (p *Pool) All() []string {
	return p.all
}

// Images returns the images of one category, or nil for an unknown one
func (p *Pool) Images(c Category) []string {
	return p.images[c]
}

// Classify maps a prompt onto a category by case-insensitive keyword match
func Classify(prompt string) (Category, bool) {
	lower := strings.ToLower(prompt)
	for _, rule := range keywordRules {
		if lo.SomeBy(rule.keywords, func(k string) bool { return strings.Contains(lower, k) }) {
			return rule.category, true
		}
	}
	return "", false
}

// Select draws one image uniformly at random. A known category restricts the
// draw to that category, otherwise the prompt's keywords decide, and a prompt
// with no keywords draws from the whole pool. It never returns "".
func (p *Pool) Select(rng *rand.Rand, prompt string, category Category) string {
	candidates := p.images[category]
	if len(candidates) == 0 {
		if c, ok := Classify(prompt); ok {
			candidates = p.images[c]
		} else {
			candidates = p.all
		}
	}
	return candidates[rng.IntN(len(candidates))]
}
