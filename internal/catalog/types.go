package catalog

import (
	"context"
	"path"
	"strings"
)

// Item is a sellable track. AudioKey is the blob storage locator of the
// licensed file and must never be exposed to buyers.
type Item struct {
	ItemID     string   `dynamodbav:"item_id" yaml:"id" validate:"required"`
	Title      string   `dynamodbav:"title" yaml:"title" validate:"required"`
	ArtistName string   `dynamodbav:"artist_name" yaml:"artist" validate:"required"`
	Slug       string   `dynamodbav:"slug" yaml:"slug" validate:"required"`
	PriceCents int64    `dynamodbav:"price_cents" yaml:"price_cents" validate:"gt=0"`
	Active     bool     `dynamodbav:"active" yaml:"active"`
	AudioKey   string   `dynamodbav:"audio_key" yaml:"audio_key" validate:"required"`
	Tags       []string `dynamodbav:"tags,omitempty" yaml:"tags"`
}

// DownloadName is the filename suggested to buyers: the slug plus the stored file's extension.
func (i Item) DownloadName() string {
	ext := strings.ToLower(path.Ext(i.AudioKey))
	if ext == "" {
		ext = ".wav"
	}
	return i.Slug + ext
}

// Repository is implemented by every catalog storage backend.
type Repository interface {
	Reader
	Put(ctx context.Context, item Item) error
}
