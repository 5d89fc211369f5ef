package handlers

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/znz-systems/coldpipe/internal/ingest"
	"github.com/znz-systems/coldpipe/internal/models"
)

const maxUploadBytes = 32 << 20

// Dispatcher publishes parsed contacts for a campaign.
type Dispatcher interface {
	Dispatch(ctx context.Context, parsed *ingest.Parsed, campaignID string) (*ingest.Report, error)
}

// CampaignLookup finds internal campaigns.
type CampaignLookup interface {
	GetCampaignByID(ctx context.Context, id string) (*models.Campaign, error)
}

// ContactsHandler serves contact ingress.
type ContactsHandler struct {
	dispatcher Dispatcher
	campaigns  CampaignLookup
}

func NewContactsHandler(dispatcher Dispatcher, campaigns CampaignLookup) *ContactsHandler {
	return &ContactsHandler{dispatcher: dispatcher, campaigns: campaigns}
}

// HandleQueue accepts a contact CSV and queues one pipeline trigger per
// valid row.
//
// Expected multipart fields:
//
//	campaignId    (required, internal campaign id)
//	contactsFile  (required, CSV export)
func (h *ContactsHandler) HandleQueue(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	campaignID := strings.TrimSpace(r.FormValue("campaignId"))
	if campaignID == "" {
		writeError(w, http.StatusBadRequest, "campaignId is required")
		return
	}

	file, _, err := r.FormFile("contactsFile")
	if err != nil {
		writeError(w, http.StatusBadRequest, "contactsFile is required")
		return
	}
	defer file.Close()

	if _, err := h.campaigns.GetCampaignByID(r.Context(), campaignID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "campaign not found")
			return
		}
		slog.Error("failed to look up campaign", "campaign_id", campaignID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	parsed, err := ingest.ParseCSV(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not parse CSV: "+err.Error())
		return
	}

	report, err := h.dispatcher.Dispatch(r.Context(), parsed, campaignID)
	if err != nil {
		if errors.Is(err, ingest.ErrNoValidRows) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("failed to dispatch contacts", "campaign_id", campaignID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, jsonResponse{OK: true, Data: report})
}
