package main

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"

	"github.com/imrishuroy/go-license-orderflow/internal/catalog"
)

func catalogCmd(load loader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage sellable items",
	}
	cmd.AddCommand(catalogPutCmd(load))
	cmd.AddCommand(catalogSeedCmd(load))
	return cmd
}

func catalogPutCmd(load loader) *cobra.Command {
	var it catalog.Item
	var inactive bool

	cmd := &cobra.Command{
		Use:   "put",
		Short: "Create or replace one catalog item",
		Example: `  licensectl catalog put --id midnight-drive --title "Midnight Drive" \
    --artist Nova --slug midnight-drive --price-cents 99 --audio-key tracks/midnight-drive.wav`,
		RunE: func(cmd *cobra.Command, args []string) error {
			it.Active = !inactive
			if err := validator.New().Struct(it); err != nil {
				return fmt.Errorf("invalid item: %w", err)
			}

			cfg, err := load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			b, err := openStorage(ctx, cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			if err := b.Catalog.Put(ctx, it); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "saved %s (%d cents)\n", it.ItemID, it.PriceCents)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&it.ItemID, "id", "", "item id")
	f.StringVar(&it.Title, "title", "", "track title")
	f.StringVar(&it.ArtistName, "artist", "", "artist name")
	f.StringVar(&it.Slug, "slug", "", "slug used for the download filename")
	f.Int64Var(&it.PriceCents, "price-cents", 0, "price in cents")
	f.StringVar(&it.AudioKey, "audio-key", "", "blob storage key of the licensed file")
	f.StringSliceVar(&it.Tags, "tags", nil, "comma separated tags")
	f.BoolVar(&inactive, "inactive", false, "store the item as not for sale")
	for _, name := range []string{"id", "title", "artist", "slug", "price-cents", "audio-key"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func catalogSeedCmd(load loader) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Upsert every item of a YAML seed file",
		RunE: func(cmd *cobra.Command, args []string) error {
			fh, err := os.Open(path)
			if err != nil {
				return err
			}
			defer fh.Close()

			items, err := catalog.ParseSeed(fh)
			if err != nil {
				return err
			}

			cfg, err := load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			b, err := openStorage(ctx, cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			for _, it := range items {
				if err := b.Catalog.Put(ctx, it); err != nil {
					return fmt.Errorf("put %s: %w", it.ItemID, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d items\n", len(items))
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "file", "f", "catalog.yaml", "seed file")
	return cmd
}
