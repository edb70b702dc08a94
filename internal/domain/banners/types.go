package banners

import (
	"context"
	"errors"
	"strings"
	"time"
)

// DefaultKey names the home page slot.
const DefaultKey = "home"

var ErrInvalidKey = errors.New("banner key cannot be empty")

type Item struct {
	URL      string `json:"url"`
	PublicID string `json:"publicId"`
	Link     string `json:"link"`
}

// Banner is a named slot holding an ordered list of images. It is always
// saved as a whole.
type Banner struct {
	Key       string    `json:"key"`
	Items     []Item    `json:"items"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Store interface {
	// Get returns an empty banner when the slot was never saved.
	Get(ctx context.Context, key string) (*Banner, error)
	// Save replaces the slot and returns its previous content.
	Save(ctx context.Context, b *Banner) (saved, previous *Banner, err error)
}

// Prepare trims the key and drops items without a URL.
func (b *Banner) Prepare() error {
	b.Key = strings.TrimSpace(b.Key)
	if b.Key == "" {
		return ErrInvalidKey
	}
	items := make([]Item, 0, len(b.Items))
	for _, it := range b.Items {
		it.URL = strings.TrimSpace(it.URL)
		it.Link = strings.TrimSpace(it.Link)
		if it.URL == "" {
			continue
		}
		items = append(items, it)
	}
	b.Items = items
	return nil
}

// RemovedPublicIDs lists image ids present in old but not in updated.
func RemovedPublicIDs(old, updated *Banner) []string {
	keep := map[string]bool{}
	for _, it := range updated.Items {
		keep[it.PublicID] = true
	}
	var removed []string
	for _, it := range old.Items {
		if it.PublicID != "" && !keep[it.PublicID] {
			removed = append(removed, it.PublicID)
			keep[it.PublicID] = true
		}
	}
	return removed
}
