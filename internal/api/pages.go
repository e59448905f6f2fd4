package api

import (
	"bytes"
	"context"
	"embed"
	"html/template"
	"net/http"
	"time"

	"go.uber.org/zap"

	"fundraise/internal/page"
	"fundraise/internal/units"
)

//go:embed templates/*.html
var templateFS embed.FS

var indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// formWait is how long a form submission is awaited before redirecting;
// a slower confirmation shows up as the loading state.
const formWait = time.Second

type indexData struct {
	PageInfo
	State       page.ViewState
	Rows        []page.Row
	Conversions []units.Conversion
}

// HandleIndex handles GET /
// Renders the contribution form, the error banner and the contributions table
func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	state := h.page.Snapshot()
	data := indexData{
		PageInfo: h.info,
		State:    state,
		Rows:     page.TableRows(state.Events),
	}
	if r.URL.Query().Has("conversions") {
		data.Conversions = units.Demonstrations()
	}

	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, data); err != nil {
		h.logger.Error("Failed to render page", zap.Error(err))
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// HandleContributeForm handles POST /contribute
func (h *Handler) HandleContributeForm(w http.ResponseWriter, r *http.Request) {
	campaignID := r.FormValue("campaignId")

	// keep the typed id even when the submission is refused
	h.page.SetCampaignID(campaignID)

	// The submission outlives the request; the page reports its outcome
	ctx := context.WithoutCancel(r.Context())
	done := make(chan struct{})

	h.inflight.Add(1)
	go func() {
		defer h.inflight.Done()
		defer close(done)
		_ = h.page.SubmitContribution(ctx, campaignID)
	}()

	select {
	case <-done:
	case <-time.After(formWait):
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleFetchForm handles POST /events/fetch
func (h *Handler) HandleFetchForm(w http.ResponseWriter, r *http.Request) {
	// failures are stored as the page error
	_, _ = h.page.FetchContributions(r.Context())

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleConversionsForm handles POST /conversions
func (h *Handler) HandleConversionsForm(w http.ResponseWriter, r *http.Request) {
	h.page.ShowConversions()

	http.Redirect(w, r, "/?conversions=1", http.StatusSeeOther)
}
