package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/takeoff-cli/internal/cost"
	"github.com/sells-group/takeoff-cli/internal/model"
	"github.com/sells-group/takeoff-cli/internal/ocr"
)

const maxRequestBytes = 32 << 20

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP analysis and bid service",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		svc, err := newService(ctx, cfg)
		if err != nil {
			return err
		}
		defer svc.Close()

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           buildMux(svc),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

// documentRequest is the body of POST /analyze and POST /bid. Documents map
// a document type to its page texts.
type documentRequest struct {
	Name      string              `json:"name,omitempty"`
	Documents map[string][]string `json:"documents"`
	Config    bidOverrides        `json:"config"`
}

func (r documentRequest) sources() (map[model.DocumentType]ocr.Source, error) {
	if len(r.Documents) == 0 {
		return nil, eris.New("documents is required")
	}
	sources := make(map[model.DocumentType]ocr.Source, len(r.Documents))
	for key, pages := range r.Documents {
		dt, ok := model.ParseDocumentType(key)
		if !ok {
			return nil, eris.Errorf("unknown document type %q", key)
		}
		sources[dt] = ocr.Static(pages)
	}
	return sources, nil
}

// runInput records inline documents by page count.
func (r documentRequest) runInput() model.RunInput {
	in := model.RunInput{Name: r.Name, Documents: make(map[model.DocumentType]string, len(r.Documents))}
	for key, pages := range r.Documents {
		if dt, ok := model.ParseDocumentType(key); ok {
			in.Documents[dt] = fmt.Sprintf("inline (%d pages)", len(pages))
		}
	}
	return in
}

func buildMux(svc *service) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /analyze", func(w http.ResponseWriter, r *http.Request) {
		_, sources, ok := decodeDocumentRequest(w, r)
		if !ok {
			return
		}

		res, err := svc.aggregator.AnalyzeAll(r.Context(), sources)
		if res == nil {
			writeError(w, statusFor(err), err)
			return
		}
		if err != nil {
			svc.log.Warn("analysis interrupted, returning partial result", zap.Error(err))
		}
		writeJSON(w, http.StatusOK, res)
	})

	mux.HandleFunc("POST /bid", func(w http.ResponseWriter, r *http.Request) {
		req, sources, ok := decodeDocumentRequest(w, r)
		if !ok {
			return
		}
		if _, _, err := req.Config.apply(svc.rates, svc.bidCfg); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}

		run, err := svc.runBid(r.Context(), req.runInput(), sources, req.Config)
		if err != nil {
			svc.log.Error("bid request failed", zap.Error(err))
			writeError(w, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, run)
	})

	return mux
}

func decodeDocumentRequest(w http.ResponseWriter, r *http.Request) (documentRequest, map[model.DocumentType]ocr.Source, bool) {
	var req documentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "invalid request body"))
		return req, nil, false
	}
	sources, err := req.sources()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return req, nil, false
	}
	return req, sources, true
}

// statusFor maps analysis and pricing failures onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case model.IsExtractionError(err), errors.Is(err, cost.ErrNoLineItems):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
