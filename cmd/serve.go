package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/company-lookup/internal/model"
	"github.com/sells-group/company-lookup/internal/resolver"
	"github.com/sells-group/company-lookup/internal/store"
)

const shutdownTimeout = 10 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the lookup HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		svc, st, err := initService(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(svc, st),
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownGracefully(srv)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(svc *resolver.Service, st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/lookup", func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Query   string `json:"query"`
			Context string `json:"context"`
		}
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := svc.Lookup(req.Context(), body.Query, body.Context)
		if err != nil {
			if errors.Is(err, resolver.ErrEmptyQuery) {
				writeError(w, http.StatusBadRequest, "query is required")
				return
			}
			zap.L().Error("lookup failed", zap.String("query", body.Query), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "lookup failed")
			return
		}

		status := http.StatusOK
		if result.Source == model.SourceFailed {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, result)
	})

	r.Post("/companies", func(w http.ResponseWriter, req *http.Request) {
		var entry model.ManualEntry
		if err := json.NewDecoder(req.Body).Decode(&entry); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		result, err := svc.AddManual(req.Context(), entry)
		if err != nil {
			if errors.Is(err, resolver.ErrEmptyQuery) {
				writeError(w, http.StatusBadRequest, "name is required")
				return
			}
			zap.L().Error("manual add failed", zap.String("name", entry.Name), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "add failed")
			return
		}
		writeJSON(w, http.StatusCreated, result)
	})

	r.Get("/companies", func(w http.ResponseWriter, req *http.Request) {
		limit := queryInt(req, "limit", 100)
		offset := queryInt(req, "offset", 0)

		companies, err := st.ListCompanies(req.Context(), limit, offset)
		if err != nil {
			zap.L().Error("list companies failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "list failed")
			return
		}
		if companies == nil {
			companies = []model.Company{}
		}
		writeJSON(w, http.StatusOK, companies)
	})

	r.Get("/companies/{id}", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")

		company, err := st.GetCompany(req.Context(), id)
		if err != nil {
			zap.L().Error("get company failed", zap.String("id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "get failed")
			return
		}
		if company == nil {
			writeError(w, http.StatusNotFound, "company not found")
			return
		}

		employees, err := st.ListEmployees(req.Context(), company.ID)
		if err != nil {
			zap.L().Error("list employees failed", zap.String("id", id), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "get failed")
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"company":   company,
			"employees": employees,
		})
	})

	return r
}

// shutdownGracefully drains in-flight requests. The signal context is
// already cancelled by the time this runs, so it uses a fresh deadline.
func shutdownGracefully(srv *http.Server) {
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(sctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func queryInt(req *http.Request, key string, def int) int {
	raw := req.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
