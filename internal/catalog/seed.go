package catalog

import (
	"errors"
	"fmt"
	"io"

	validatorv10 "github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML layout accepted by `licensectl catalog seed`:
//
//	items:
//	  - id: midnight-drive
//	    title: Midnight Drive
//	    artist: Nova
//	    slug: midnight-drive
//	    price_cents: 99
//	    active: true
//	    audio_key: tracks/midnight-drive.wav
type SeedFile struct {
	Items []Item `yaml:"items"`
}

// ParseSeed decodes and validates a seed file. Ids and slugs must be unique
// within the file.
func ParseSeed(r io.Reader) ([]Item, error) {
	var f SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("seed file is empty")
		}
		return nil, fmt.Errorf("decode seed file: %w", err)
	}

	v := validatorv10.New()
	ids := map[string]bool{}
	slugs := map[string]bool{}
	for i, it := range f.Items {
		if err := v.Struct(it); err != nil {
			return nil, fmt.Errorf("item %d (%s): %w", i, it.ItemID, err)
		}
		if ids[it.ItemID] {
			return nil, fmt.Errorf("item %d: duplicate id %q", i, it.ItemID)
		}
		if slugs[it.Slug] {
			return nil, fmt.Errorf("item %d: duplicate slug %q", i, it.Slug)
		}
		ids[it.ItemID] = true
		slugs[it.Slug] = true
	}
	return f.Items, nil
}
