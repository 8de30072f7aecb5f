package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/sakif/usuarios-api/internal/clock"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ServiceInfo identifies the running service in the health payload.
type ServiceInfo struct {
	Name        string
	Version     string
	Environment string
}

// HealthResponse is the body of GET /.
type HealthResponse struct {
	Status      string            `json:"status"`
	Service     string            `json:"service"`
	Version     string            `json:"version"`
	Time        string            `json:"time"`
	Environment string            `json:"environment"`
	Checks      map[string]string `json:"checks"`
}

// healthTimeLayout is dd-mm-yyyy HH:MM:SS.
const healthTimeLayout = "02-01-2006 15:04:05"

type IndexHandler struct {
	info   ServiceInfo
	db     Pinger
	clock  clock.Clock
	resp   *Responder
	logger *slog.Logger
}

func NewIndexHandler(info ServiceInfo, db Pinger, clk clock.Clock, resp *Responder, logger *slog.Logger) *IndexHandler {
	return &IndexHandler{info: info, db: db, clock: clk, resp: resp, logger: logger}
}

// Health handles GET /. It always answers 200; a failed database ping shows
// up as checks.database = "down".
func (h *IndexHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	database := "up"
	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn("health check: database unreachable", slog.String("error", err.Error()))
		database = "down"
	}

	h.resp.JSON(w, http.StatusOK, HealthResponse{
		Status:      "ok",
		Service:     h.info.Name,
		Version:     h.info.Version,
		Time:        h.clock.Now().Format(healthTimeLayout),
		Environment: h.info.Environment,
		Checks:      map[string]string{"database": database},
	})
}
