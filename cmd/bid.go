package main

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/takeoff-cli/internal/export"
	"github.com/sells-group/takeoff-cli/internal/model"
	"github.com/sells-group/takeoff-cli/internal/ocr"
)

var (
	bidDocs   documentPaths
	bidName   string
	bidFormat string
	bidOut    string
)

var bidCmd = &cobra.Command{
	Use:   "bid",
	Short: "Generate a priced bid from bid package documents",
	Long:  "Analyzes the documents, prices every bid line and derived item from the product catalog, records the run, and writes the bid package.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("bid"); err != nil {
			return err
		}
		format, err := export.ParseFormat(bidFormat)
		if err != nil {
			return err
		}
		if format == export.FormatXLSX && bidOut == "" {
			return eris.New("bid: --out is required for xlsx output")
		}
		paths := bidDocs.resolve()
		if len(paths) == 0 {
			return eris.New("bid: at least one document is required")
		}

		svc, err := newService(ctx, cfg)
		if err != nil {
			return err
		}
		defer svc.Close()

		pdf, err := ocr.NewExtractor(cfg.OCR, svc.log)
		if err != nil {
			return err
		}

		run, err := svc.runBid(ctx, model.RunInput{Name: bidName, Documents: paths}, fileSources(paths, pdf), bidFlagOverrides(cmd))
		if err != nil {
			return eris.Wrap(err, "bid")
		}

		return writeBid(cmd.OutOrStdout(), format, bidOut, run.Result)
	},
}

// bidFlagOverrides collects the pricing flags the user actually set.
func bidFlagOverrides(cmd *cobra.Command) bidOverrides {
	var o bidOverrides
	flags := cmd.Flags()
	if flags.Changed("markup") {
		v, _ := flags.GetFloat64("markup")
		o.MarkupPct = &v
	}
	if flags.Changed("tax-rate") {
		v, _ := flags.GetFloat64("tax-rate")
		o.TaxRate = &v
	}
	if flags.Changed("delivery-fee") {
		v, _ := flags.GetString("delivery-fee")
		fee := deliveryFee(v)
		o.DeliveryFee = &fee
	}
	return o
}

// writeBid writes pkg to out, or to stdout when out is empty.
func writeBid(stdout io.Writer, format export.Format, out string, pkg *model.BidPackage) error {
	if format == export.FormatXLSX {
		if err := export.WriteXLSX(out, pkg); err != nil {
			return err
		}
		zap.L().Info("bid written", zap.String("path", out), zap.String("format", string(format)))
		return nil
	}

	w := stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return eris.Wrapf(err, "bid: create %s", out)
		}
		defer f.Close() //nolint:errcheck
		w = f
	}

	var err error
	switch format {
	case export.FormatCSV:
		err = export.WriteCSV(w, pkg.LineItems, pkg.Summary)
	default:
		err = export.WriteJSON(w, pkg)
	}
	if err != nil {
		return err
	}
	if out != "" {
		zap.L().Info("bid written", zap.String("path", out), zap.String("format", string(format)))
	}
	return nil
}

func init() {
	bidDocs = addDocumentFlags(bidCmd)
	bidCmd.Flags().StringVar(&bidName, "name", "", "project name recorded with the run")
	bidCmd.Flags().StringVar(&bidFormat, "format", "json", "output format: json, csv or xlsx")
	bidCmd.Flags().StringVar(&bidOut, "out", "", "output file (default stdout; required for xlsx)")
	bidCmd.Flags().Float64("markup", 0, "markup fraction, e.g. 0.20 (default from config)")
	bidCmd.Flags().Float64("tax-rate", 0, "sales tax rate, e.g. 0.0825 (default from config)")
	bidCmd.Flags().String("delivery-fee", "", `delivery fee in dollars or "auto" (default from config)`)
	rootCmd.AddCommand(bidCmd)
}
