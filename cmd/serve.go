package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/roadrings/internal/aggregate"
	"github.com/sells-group/roadrings/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the persisted summary over HTTP",
	Long: `Starts a read-only HTTP API over the persisted summary: the
by-ring-and-year table, the per-ring totals, the run metadata and the ring
geometries.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(st, cfg.Paths.RingsPath()),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
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

type apiRingYear struct {
	RingID string  `json:"ring_id"`
	Year   int     `json:"year"`
	AreaHa float64 `json:"area_ha"`
}

type apiRing struct {
	RingID string  `json:"ring_id"`
	AreaHa float64 `json:"area_ha"`
}

type apiMeta struct {
	RunID          string    `json:"run_id"`
	GeneratedAt    time.Time `json:"generated_at"`
	AOICode        string    `json:"aoi_code,omitempty"`
	SRID           int       `json:"srid"`
	ThresholdsKm   []float64 `json:"thresholds_km"`
	AOIAreaHa      float64   `json:"aoi_area_ha"`
	ToleranceM2    float64   `json:"tolerance_m2"`
	Years          []int     `json:"years"`
	Features       int       `json:"features"`
	Skipped        int       `json:"skipped"`
	Fragments      int       `json:"fragments"`
	UnattributedHa float64   `json:"unattributed_ha,omitempty"`
}

// newRouter builds the summary API routes over a store and the persisted
// ring layer.
func newRouter(st store.Store, ringsPath string) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/summary/by-ring-year", func(w http.ResponseWriter, req *http.Request) {
		yearMin, err := intQuery(req, "year_min")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		yearMax, err := intQuery(req, "year_max")
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		rows, err := st.ByRingYear(req.Context(), yearMin, yearMax)
		if err != nil {
			zap.L().Error("by-ring-year query failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "query failed")
			return
		}
		out := make([]apiRingYear, 0, len(rows))
		for _, row := range rows {
			out = append(out, apiRingYear{RingID: row.RingID, Year: row.Year, AreaHa: row.AreaHa})
		}
		writeJSON(w, http.StatusOK, out)
	})

	r.Get("/api/summary/by-ring", func(w http.ResponseWriter, req *http.Request) {
		rows, err := st.ByRing(req.Context())
		if err != nil {
			zap.L().Error("by-ring query failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "query failed")
			return
		}
		out := make([]apiRing, 0, len(rows))
		for _, row := range rows {
			out = append(out, apiRing{RingID: row.RingID, AreaHa: row.AreaHa})
		}
		writeJSON(w, http.StatusOK, out)
	})

	r.Get("/api/meta", func(w http.ResponseWriter, req *http.Request) {
		meta, err := st.Meta(req.Context())
		if err != nil {
			zap.L().Error("meta query failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "query failed")
			return
		}
		if meta == nil {
			writeError(w, http.StatusNotFound, "no summary persisted yet")
			return
		}
		writeJSON(w, http.StatusOK, metaResponse(meta))
	})

	r.Get("/api/rings", func(w http.ResponseWriter, req *http.Request) {
		if _, err := os.Stat(ringsPath); err != nil {
			writeError(w, http.StatusNotFound, "ring layer not built yet")
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		http.ServeFile(w, req, ringsPath)
	})

	return r
}

func metaResponse(m *aggregate.Meta) apiMeta {
	return apiMeta{
		RunID:          m.RunID,
		GeneratedAt:    m.GeneratedAt,
		AOICode:        m.AOICode,
		SRID:           m.SRID,
		ThresholdsKm:   m.ThresholdsKm,
		AOIAreaHa:      m.AOIAreaHa,
		ToleranceM2:    m.ToleranceM2,
		Years:          m.Years,
		Features:       m.Features,
		Skipped:        m.Skipped,
		Fragments:      m.Fragments,
		UnattributedHa: m.UnattributedHa,
	}
}

// intQuery parses an optional integer query parameter; absent means zero.
func intQuery(req *http.Request, key string) (int, error) {
	raw := req.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
