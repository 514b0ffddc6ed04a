package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harvestlabs/cropscout/internal/config"
	"github.com/harvestlabs/cropscout/internal/service"
	"github.com/harvestlabs/cropscout/internal/upload"
)

const serviceVersion = "1.0.0"

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the prediction API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svc, err := initService()
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, port),
			Handler: newRouter(svc, cfg.Server),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server",
			zap.String("addr", srv.Addr),
			zap.Float64("min_confidence", svc.Policy().MinConfidence),
			zap.Float64("confidence_margin", svc.Policy().Margin),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// predictor is the slice of service.Service the HTTP layer needs.
type predictor interface {
	Predict(ctx context.Context, image string, useCache bool) (*service.Prediction, error)
}

// newRouter builds the HTTP API.
func newRouter(svc predictor, srvCfg config.ServerConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", handleHealth)
	r.Post("/predict", handlePredict(svc, srvCfg))

	return r
}

// requestLogger tags every request with an ID and logs its outcome.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set("X-Request-ID", id)

		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)

		zap.L().Info("request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "cropscout",
		"version": serviceVersion,
	})
}

// handlePredict accepts a multipart upload ('image' file) or a JSON body
// with an 'image_url' field, runs both workflows, and returns the
// arbitrated prediction. Boundary validation fails with 400 before any
// workflow is invoked.
func handlePredict(svc predictor, srvCfg config.ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, srvCfg.MaxUploadBytes)

		var (
			image    string
			useCache = true
		)

		contentType := r.Header.Get("Content-Type")
		switch {
		case strings.HasPrefix(contentType, "multipart/form-data"):
			if err := r.ParseMultipartForm(srvCfg.MaxUploadBytes); err != nil {
				if isTooLarge(err) {
					writeError(w, http.StatusRequestEntityTooLarge,
						fmt.Sprintf("file too large, max %d MB", srvCfg.MaxUploadBytes>>20))
					return
				}
				writeError(w, http.StatusBadRequest, "invalid multipart form")
				return
			}

			file, header, err := r.FormFile("image")
			if err != nil {
				writeError(w, http.StatusBadRequest, "multipart request must include an 'image' file")
				return
			}
			defer file.Close()

			path, err := upload.Save(file, header.Filename)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			defer upload.Cleanup(path)

			image = path
			if v := r.FormValue("use_cache"); v != "" {
				useCache = parseCacheParam(v)
			}

		case strings.HasPrefix(contentType, "application/json"):
			var req struct {
				ImageURL string `json:"image_url"`
				UseCache *bool  `json:"use_cache"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				if isTooLarge(err) {
					writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
					return
				}
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if req.ImageURL == "" {
				writeError(w, http.StatusBadRequest, "JSON request must include 'image_url' field")
				return
			}
			image = req.ImageURL
			if req.UseCache != nil {
				useCache = *req.UseCache
			}

		default:
			writeError(w, http.StatusBadRequest,
				"request must be multipart/form-data with 'image' file or JSON with 'image_url'")
			return
		}

		pred, err := svc.Predict(r.Context(), image, useCache)
		if err != nil {
			zap.L().Error("workflow execution failed", zap.Error(err))
			details := "check server logs"
			if srvCfg.Debug {
				details = err.Error()
			}
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error":   "workflow execution failed",
				"details": details,
			})
			return
		}

		writeJSON(w, http.StatusOK, pred)
	}
}

// parseCacheParam mirrors the form-field convention: anything but an
// explicit negative means true.
func parseCacheParam(v string) bool {
	switch strings.ToLower(v) {
	case "false", "0", "no":
		return false
	default:
		return true
	}
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
