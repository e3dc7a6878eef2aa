package main

import (
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/takeoff-cli/internal/export"
	"github.com/sells-group/takeoff-cli/internal/model"
	"github.com/sells-group/takeoff-cli/internal/ocr"
)

var analyzeDocs documentPaths

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze and cross-reference bid package documents",
	Long:  "Extracts quantities, terms and bid line items from each document, reconciles them across documents, and prints the combined analysis as JSON.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("analyze"); err != nil {
			return err
		}
		paths := analyzeDocs.resolve()
		if len(paths) == 0 {
			return eris.New("analyze: at least one document is required")
		}

		agg, err := newAggregator(cfg, zap.L())
		if err != nil {
			return err
		}
		pdf, err := ocr.NewExtractor(cfg.OCR, zap.L())
		if err != nil {
			return err
		}

		res, err := agg.AnalyzeAll(ctx, fileSources(paths, pdf))
		if res == nil {
			return eris.Wrap(err, "analyze")
		}
		if err != nil {
			zap.L().Warn("analysis interrupted, printing partial result", zap.Error(err))
		}
		logAnalysis(res)

		return export.WriteJSON(cmd.OutOrStdout(), res)
	},
}

func logAnalysis(res *model.ComprehensiveAnalysisResult) {
	zap.L().Info("analysis complete",
		zap.Int("documents", len(res.Documents)),
		zap.Int("pages", res.TotalPages),
		zap.Int("terms", len(res.Terms)),
		zap.Int("quantities", len(res.Quantities)),
		zap.Int("bid_line_items", len(res.BidLineItems)),
		zap.Int("alerts", len(res.Alerts)),
		zap.Float64("confidence", res.OverallConfidence),
		zap.Bool("partial", res.Partial),
	)
}

func init() {
	analyzeDocs = addDocumentFlags(analyzeCmd)
	rootCmd.AddCommand(analyzeCmd)
}
