package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"fundraise/internal/models"
	"fundraise/internal/page"
)

// SubmissionReader reads the submission ledger
type SubmissionReader interface {
	GetSubmission(ctx context.Context, submissionID string) (*models.Submission, error)
	ListSubmissions(ctx context.Context, limit, offset int) ([]models.Submission, error)
}

// PageInfo describes the chain and wallet the page is bound to
type PageInfo struct {
	ChainID         string
	ChainName       string
	Contract        string
	Sender          string
	WalletConnected bool
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	page        *page.Page
	submissions SubmissionReader // nil when the ledger is disabled
	info        PageInfo
	logger      *zap.Logger

	// form submissions run past the request that started them
	inflight sync.WaitGroup
}

// NewHandler creates a new API handler. submissions may be nil.
func NewHandler(
	p *page.Page,
	submissions SubmissionReader,
	info PageInfo,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		page:        p,
		submissions: submissions,
		info:        info,
		logger:      logger,
	}
}

// Drain waits for background form submissions to finish. It reports false
// when some were still running after timeout.
func (h *Handler) Drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		h.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// ==================== Health Check ====================

// HandleHealth returns service health status
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	response := HealthResponse{
		Status:  "ok",
		Version: "1.0.0",
	}
	respondJSON(w, http.StatusOK, response)
}

// ==================== Page State ====================

// HandleGetState handles GET /api/v1/state
func (h *Handler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	state := h.page.Snapshot()

	response := StateResponse{
		IsLoading:       state.IsLoading,
		Error:           state.Error,
		CampaignIDInput: state.CampaignIDInput,
		WalletConnected: h.info.WalletConnected,
		Sender:          h.info.Sender,
		Contract:        h.info.Contract,
		Contributions:   page.TableRows(state.Events),
	}

	respondJSON(w, http.StatusOK, response)
}

// ==================== Contributions ====================

// HandleSubmitContribution handles POST /api/v1/contributions
// Sends contribute(campaign_id) and waits for the transaction to be mined
func (h *Handler) HandleSubmitContribution(w http.ResponseWriter, r *http.Request) {
	var req SubmitContributionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("Failed to decode request", zap.Error(err))
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	// Validate request
	if req.CampaignID == "" {
		respondError(w, http.StatusBadRequest, "campaign_id is required", nil)
		return
	}
	if _, err := page.ParseCampaignID(req.CampaignID); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid campaign_id", err)
		return
	}

	// A sent transaction is awaited even if the client goes away
	ctx := context.WithoutCancel(r.Context())

	err := h.page.SubmitContribution(ctx, req.CampaignID)
	switch {
	case errors.Is(err, page.ErrNoSigner):
		respondError(w, http.StatusPreconditionFailed, "No wallet connected", err)
		return
	case errors.Is(err, page.ErrSubmissionInFlight):
		respondError(w, http.StatusConflict, "A contribution is already in flight", err)
		return
	case err != nil:
		respondError(w, http.StatusBadGateway, failureReason(err), err)
		return
	}

	response := SubmitContributionResponse{
		CampaignID: req.CampaignID,
		Status:     string(models.SubmissionStatusConfirmed),
	}

	respondJSON(w, http.StatusOK, response)
}

// HandleFetchContributions handles POST /api/v1/contributions/fetch
// Queries every ContributionMade event and merges it into the table
func (h *Handler) HandleFetchContributions(w http.ResponseWriter, r *http.Request) {
	added, err := h.page.FetchContributions(r.Context())
	if err != nil {
		respondError(w, http.StatusBadGateway, "Failed to fetch contributions", err)
		return
	}

	response := FetchContributionsResponse{
		Added: added,
		Total: len(h.page.Snapshot().Events),
	}

	respondJSON(w, http.StatusOK, response)
}

// HandleGetContributions handles GET /api/v1/contributions
func (h *Handler) HandleGetContributions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, GetContributionsResponse{Contributions: h.page.Rows()})
}

// ==================== Conversions ====================

// HandleGetConversions handles GET /api/v1/conversions
func (h *Handler) HandleGetConversions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, GetConversionsResponse{Conversions: h.page.ShowConversions()})
}

// ==================== Submissions ====================

// HandleGetSubmission handles GET /api/v1/submissions/:submissionId
func (h *Handler) HandleGetSubmission(w http.ResponseWriter, r *http.Request) {
	if h.submissions == nil {
		respondError(w, http.StatusServiceUnavailable, "Submission ledger is disabled", nil)
		return
	}

	vars := mux.Vars(r)
	submissionID := vars["submissionId"]

	if submissionID == "" {
		respondError(w, http.StatusBadRequest, "submission_id is required", nil)
		return
	}

	sub, err := h.submissions.GetSubmission(r.Context(), submissionID)
	if err != nil {
		h.logger.Error("Failed to get submission",
			zap.String("submission_id", submissionID),
			zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to get submission", err)
		return
	}
	if sub == nil {
		respondError(w, http.StatusNotFound, "Submission not found", nil)
		return
	}

	respondJSON(w, http.StatusOK, toSubmissionSummary(*sub))
}

// HandleListSubmissions handles GET /api/v1/submissions
func (h *Handler) HandleListSubmissions(w http.ResponseWriter, r *http.Request) {
	if h.submissions == nil {
		respondError(w, http.StatusServiceUnavailable, "Submission ledger is disabled", nil)
		return
	}

	// Parse pagination parameters (optional)
	limit := 20 // default
	offset := 0 // default

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsedLimit, err := strconv.Atoi(limitStr); err == nil && parsedLimit > 0 {
			limit = min(parsedLimit, 100)
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if parsedOffset, err := strconv.Atoi(offsetStr); err == nil && parsedOffset >= 0 {
			offset = parsedOffset
		}
	}

	subs, err := h.submissions.ListSubmissions(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("Failed to list submissions", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "Failed to list submissions", err)
		return
	}

	summaries := make([]SubmissionSummary, 0, len(subs))
	for _, sub := range subs {
		summaries = append(summaries, toSubmissionSummary(sub))
	}

	response := GetSubmissionsResponse{
		Submissions: summaries,
		Limit:       limit,
		Offset:      offset,
	}

	respondJSON(w, http.StatusOK, response)
}

// ==================== Helper Functions ====================

// failureReason returns the display reason carried by err
func failureReason(err error) string {
	var r interface{ Reason() string }
	if errors.As(err, &r) && r.Reason() != "" {
		return r.Reason()
	}
	return err.Error()
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log error but can't send response since headers already written
		fmt.Printf("Failed to encode JSON response: %v\n", err)
	}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errorMsg := message
	if err != nil {
		errorMsg = fmt.Sprintf("%s: %v", message, err)
	}

	response := ErrorResponse{
		Error:   message,
		Message: errorMsg,
	}

	respondJSON(w, statusCode, response)
}
