package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/takeoff-cli/pkg/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Manage the Postgres product catalog",
}

var catalogImportCmd = &cobra.Command{
	Use:   "import <price-list>",
	Short: "Load a JSON or XLSX price list into the products table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		url := catalogURL(cfg)
		if url == "" {
			return eris.New("catalog import: catalog.database_url or store.database_url is required")
		}

		list, err := catalog.LoadStatic(args[0], 0)
		if err != nil {
			return err
		}
		products := list.Products()
		if len(products) == 0 {
			return eris.Errorf("catalog import: %s has no products", args[0])
		}

		pg, err := catalog.NewPostgres(ctx, catalog.PostgresConfig{URL: url})
		if err != nil {
			return err
		}
		defer pg.Close()

		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		n, err := pg.Import(ctx, products)
		if err != nil {
			return err
		}

		zap.L().Info("catalog imported", zap.String("file", args[0]), zap.Int64("products", n))
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "imported %d products from %s\n", n, args[0])
		return nil
	},
}

func init() {
	catalogCmd.AddCommand(catalogImportCmd)
	rootCmd.AddCommand(catalogCmd)
}
