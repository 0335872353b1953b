package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/visiblelab/visibility-bot/internal/archive"
	"github.com/visiblelab/visibility-bot/internal/models"
	"github.com/visiblelab/visibility-bot/internal/pipeline"
	"github.com/visiblelab/visibility-bot/internal/pool"
	"github.com/visiblelab/visibility-bot/internal/scheduling"
	"github.com/visiblelab/visibility-bot/internal/store"
)

// Server exposes the scheduling and pipeline API consumed by the
// dashboard and the external browser-automation executor.
type Server struct {
	scheduler    *scheduling.Service
	orchestrator *pipeline.Orchestrator
	accountPool  *pool.Service
	batches      store.BatchStore
	inventory    store.InventoryStore
	archiver     archive.Archiver
	loc          *time.Location

	now func() time.Time
}

// NewServer creates a new API server
func NewServer(scheduler *scheduling.Service, orchestrator *pipeline.Orchestrator, accountPool *pool.Service, batches store.BatchStore, inv store.InventoryStore, archiver archive.Archiver, loc *time.Location) *Server {
	return &Server{
		scheduler:    scheduler,
		orchestrator: orchestrator,
		accountPool:  accountPool,
		batches:      batches,
		inventory:    inv,
		archiver:     archiver,
		loc:          loc,
		now:          time.Now,
	}
}

// today is the current date in the schedule reference zone; default
// date parameters must not depend on the host zone.
func (s *Server) today() string {
	return s.now().In(s.loc).Format(models.DateFormat)
}

// Router builds the HTTP routes.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/health", s.handleHealth).Methods("GET")
	router.HandleFunc("/metrics", s.handleMetrics).Methods("GET")

	router.HandleFunc("/schedule/generate", s.handleGenerateSchedule).Methods("POST")
	router.HandleFunc("/schedule", s.handleListSchedule).Methods("GET")
	router.HandleFunc("/schedule/batches/{id}/status", s.handleBatchStatus).Methods("POST")

	router.HandleFunc("/report/initialize", s.handleInitializeReport).Methods("POST")
	router.HandleFunc("/report/{id}/stage/{stage}", s.handleRunStage).Methods("POST")

	router.HandleFunc("/report/{id}/responses", s.handleListArchived).Methods("GET")
	router.HandleFunc("/report/{id}/responses/{provider}/{promptId}", s.handleArchivedResponse).Methods("GET")

	return router
}

type response struct {
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logrus.Errorf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, response{Success: false, Error: message})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, response{Success: true, Data: map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	}})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, response{Success: true, Data: map[string]interface{}{
		"scheduling": s.scheduler.GetMetrics(),
		"pipeline":   s.orchestrator.GetMetrics(),
	}})
}

type generateRequest struct {
	Date       string `json:"date"`
	Regenerate bool   `json:"regenerate"`
}

func (s *Server) handleGenerateSchedule(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Date == "" {
		req.Date = s.today()
	}

	result, err := s.scheduler.Generate(r.Context(), req.Date, req.Regenerate)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, response{Success: true, Data: result})
}

func (s *Server) handleListSchedule(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = s.today()
	}

	var accountID uint
	if raw := r.URL.Query().Get("accountId"); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid accountId")
			return
		}
		accountID = uint(parsed)
	}

	batches, err := s.scheduler.List(r.Context(), date, accountID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, response{Success: true, Data: batches})
}

type batchStatusRequest struct {
	Status     models.BatchStatus `json:"status"`
	ExecutedAt *time.Time         `json:"executed_at,omitempty"`
}

// handleBatchStatus receives execution feedback from the external
// browser-automation executor. A completed batch feeds the execution
// history that account scoring reads; a failed one bumps the account's
// consecutive-error counter.
func (s *Server) handleBatchStatus(w http.ResponseWriter, r *http.Request) {
	batchID := mux.Vars(r)["id"]

	var req batchStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch req.Status {
	case models.BatchExecuting, models.BatchCompleted, models.BatchFailed:
	default:
		writeError(w, http.StatusBadRequest, "status must be executing, completed or failed")
		return
	}

	batch, err := s.batches.GetBatch(r.Context(), batchID)
	if err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "batch not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if err := s.batches.UpdateBatchStatus(r.Context(), batchID, req.Status); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	switch req.Status {
	case models.BatchCompleted:
		executedAt := time.Now()
		if req.ExecutedAt != nil {
			executedAt = *req.ExecutedAt
		}
		prompts, err := s.inventory.PromptsByIDs(r.Context(), batch.PromptIDs)
		if err != nil {
			logrus.Errorf("Failed to load prompts for batch %s: %v", batchID, err)
		}
		for _, prompt := range prompts {
			if err := s.accountPool.RecordUsage(r.Context(), batch.AccountID, prompt.ID, prompt.BrandID, executedAt); err != nil {
				logrus.Errorf("Failed to record usage for batch %s prompt %d: %v", batchID, prompt.ID, err)
			}
		}
		if err := s.accountPool.RecordSuccess(r.Context(), batch.AccountID); err != nil {
			logrus.Errorf("Failed to reset error counter for account %d: %v", batch.AccountID, err)
		}
	case models.BatchFailed:
		if err := s.accountPool.RecordFailure(r.Context(), batch.AccountID); err != nil {
			logrus.Errorf("Failed to record failure for account %d: %v", batch.AccountID, err)
		}
	}

	writeJSON(w, http.StatusOK, response{Success: true})
}

type initializeRequest struct {
	BrandID uint `json:"brand_id"`
}

// handleInitializeReport kicks off the orchestrator for a brand. The
// call is fire-and-continue: the caller gets an acknowledgement while
// the pipeline keeps running in the background.
func (s *Server) handleInitializeReport(w http.ResponseWriter, r *http.Request) {
	var req initializeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.BrandID == 0 {
		writeError(w, http.StatusBadRequest, "brand_id is required")
		return
	}

	if _, err := s.inventory.GetBrand(r.Context(), req.BrandID); err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "brand not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	go func() {
		if _, err := s.orchestrator.Run(contextWithoutCancel(r), req.BrandID); err != nil {
			logrus.Errorf("Report initialization failed for brand %d: %v", req.BrandID, err)
		}
	}()

	writeJSON(w, http.StatusAccepted, response{Success: true, Data: map[string]interface{}{
		"brand_id": req.BrandID,
		"message":  "report pipeline started",
	}})
}

// contextWithoutCancel detaches the pipeline run from the request so
// the client disconnecting does not abort a half-finished stage.
func contextWithoutCancel(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

// handleListArchived lists the archived raw provider payloads for a
// report, for forensic replay of an answer after the run.
func (s *Server) handleListArchived(w http.ResponseWriter, r *http.Request) {
	reportID := mux.Vars(r)["id"]

	names, err := s.archiver.List(fmt.Sprintf("responses/%s/", reportID))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, response{Success: true, Data: names})
}

func (s *Server) handleArchivedResponse(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	filename := fmt.Sprintf("responses/%s/%s/prompt-%s.json", vars["id"], vars["provider"], vars["promptId"])

	data, err := s.archiver.Retrieve(filename)
	if err != nil {
		writeError(w, http.StatusNotFound, "archived response not found")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logrus.Errorf("Failed to write archived response %s: %v", filename, err)
	}
}

func (s *Server) handleRunStage(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	reportID := vars["id"]
	stage := models.ProcessingStage(vars["stage"])

	state, err := s.orchestrator.RunStage(r.Context(), reportID, stage)
	if err != nil {
		if err == store.ErrNotFound {
			writeError(w, http.StatusNotFound, "report not found")
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, response{Success: true, Data: state})
}
