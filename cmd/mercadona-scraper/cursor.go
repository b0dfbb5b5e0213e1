package main

import (
	"fmt"

	"github.com/maltedev/mercadona-scraper/internal/config"
	"github.com/maltedev/mercadona-scraper/internal/scraper"
	"github.com/maltedev/mercadona-scraper/internal/storage"
	"github.com/spf13/cobra"
)

func newCursorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cursor",
		Short: "Print where the next run will resume",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			store, err := storage.NewRecordStore(cfg.Output.RecordsFile, cfg.Output.DelimiterRune())
			if err != nil {
				return err
			}

			cursor, err := scraper.ComputeResumeCursor(store)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !cursor.Active() {
				fmt.Fprintf(out, "%s: no records, the next run starts from the beginning\n", store.Path())
				return nil
			}
			fmt.Fprintf(out, "category:    %s\n", cursor.Category)
			fmt.Fprintf(out, "subcategory: %s\n", cursor.Subcategory)
			fmt.Fprintf(out, "product:     %s\n", cursor.ProductName)
			return nil
		},
	}
}
