package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/avative-pat/FiberMonitorMap/pkg/cache"
	"github.com/avative-pat/FiberMonitorMap/pkg/poller"
	"github.com/avative-pat/FiberMonitorMap/pkg/rules"
	"github.com/avative-pat/FiberMonitorMap/pkg/store"
)

// defaultAlertLogLimit caps /alerts/all responses.
const defaultAlertLogLimit = 500

// APIHandler handles HTTP API requests
type APIHandler struct {
	cache  *cache.Cache
	engine *rules.Engine
	poller *poller.Poller
	store  *store.Store
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(c *cache.Cache, engine *rules.Engine, p *poller.Poller, s *store.Store) *APIHandler {
	return &APIHandler{
		cache:  c,
		engine: engine,
		poller: p,
		store:  s,
	}
}

// GetAlarms returns the current enriched alarm snapshot
func (h *APIHandler) GetAlarms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.GetAll())
}

// GetAlarm returns a single alarm by sequence number
func (h *APIHandler) GetAlarm(w http.ResponseWriter, r *http.Request) {
	seq := mux.Vars(r)["sequenceNum"]

	rec, ok := h.cache.Get(seq)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Alarm " + seq + " not found"})
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// GetAlerts returns the currently active alerts
func (h *APIHandler) GetAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.ActiveAlerts())
}

// GetAlertLog returns the full alert log including resolved alerts
func (h *APIHandler) GetAlertLog(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.engine.Alerts(r.Context(), defaultAlertLogLimit)
	if err != nil {
		logrus.Errorf("Error getting alert log: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to get alerts"})
		return
	}

	writeJSON(w, http.StatusOK, alerts)
}

// GetStatus returns the poll scheduler status
func (h *APIHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.poller.Status())
}

// TriggerPoll requests an immediate poll cycle and returns without
// waiting for it
func (h *APIHandler) TriggerPoll(w http.ResponseWriter, r *http.Request) {
	h.poller.TriggerPoll()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"message":   "Polling started",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// GetHealth reports liveness of the service and its backing store
func (h *APIHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	services := map[string]string{"store": "ok"}
	status := http.StatusOK
	overall := "healthy"

	if err := h.store.Ping(r.Context()); err != nil {
		logrus.Errorf("Store health check failed: %v", err)
		services["store"] = "unavailable"
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	pollStatus := h.poller.Status()
	if pollStatus.IsPolling {
		services["poller"] = "ok"
	} else {
		services["poller"] = "stopped"
	}

	writeJSON(w, status, map[string]interface{}{
		"status":   overall,
		"services": services,
	})
}

// Router builds the HTTP handler with routing and CORS applied.
func (h *APIHandler) Router(allowedOrigins []string) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	r.HandleFunc("/alarms", h.GetAlarms).Methods(http.MethodGet)
	r.HandleFunc("/alarms/{sequenceNum}", h.GetAlarm).Methods(http.MethodGet)
	r.HandleFunc("/alerts", h.GetAlerts).Methods(http.MethodGet)
	r.HandleFunc("/alerts/all", h.GetAlertLog).Methods(http.MethodGet)
	r.HandleFunc("/status", h.GetStatus).Methods(http.MethodGet)
	r.HandleFunc("/poll", h.TriggerPoll).Methods(http.MethodPost)
	r.HandleFunc("/sync", h.TriggerPoll).Methods(http.MethodPost)

	r.PathPrefix("/swagger/").Handler(httpSwagger.Handler())

	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
	})

	return c.Handler(r)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.Errorf("Error encoding response: %v", err)
	}
}
