package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"packetvault/internal/core/domain"
	"packetvault/internal/core/services"
	"packetvault/internal/query"
)

// ==============================================================================
// 1. Request/Response Payloads
// ==============================================================================

// queryRequest scopes a fetch (envelope metadata) and filters the decrypted
// records (predicate DSL). The two stages are independent: criteria run
// against the store, the predicate runs in memory after decryption.
type queryRequest struct {
	StartMs             int64  `json:"start_ms" validate:"gte=0"`
	EndMs               int64  `json:"end_ms" validate:"gte=0"`
	SourceEndpoint      string `json:"source_endpoint" validate:"max=200"`
	DestinationEndpoint string `json:"destination_endpoint" validate:"max=200"`
	Query               string `json:"query" validate:"required,max=2000"`
}

type queryResponse struct {
	Matched int                    `json:"matched"`
	Results []resultRecord         `json:"results"`
	Skipped []domain.SkippedRecord `json:"skipped"`
}

// resultRecord is a matching record as returned to analysts: metadata plus
// parsed payload fields. Ciphertext, nonce, tag and key ids are structurally
// absent — plaintext records never carry them.
type resultRecord struct {
	RecordID            string         `json:"record_id"`
	TimestampMs         int64          `json:"timestamp_ms"`
	SourceEndpoint      string         `json:"source_endpoint"`
	DestinationEndpoint string         `json:"destination_endpoint"`
	Fields              map[string]any `json:"fields"`
}

// ==============================================================================
// 2. The Handler Struct (Dependency Injection)
// ==============================================================================

type AnalysisHandler struct {
	Retrieval *services.RetrievalService
	Logger    *slog.Logger
}

func NewAnalysisHandler(retrieval *services.RetrievalService, logger *slog.Logger) *AnalysisHandler {
	return &AnalysisHandler{Retrieval: retrieval, Logger: logger}
}

// ==============================================================================
// 3. HTTP Methods
// ==============================================================================

// RunQuery handles POST /api/v1/analysis/query
func (h *AnalysisHandler) RunQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid JSON body"})
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "validation failed: " + err.Error()})
		return
	}

	predicate, err := query.Parse(req.Query)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}

	criteria := domain.SelectionCriteria{
		StartMs:             req.StartMs,
		EndMs:               req.EndMs,
		SourceEndpoint:      req.SourceEndpoint,
		DestinationEndpoint: req.DestinationEndpoint,
	}
	if criteria.StartMs == 0 && criteria.EndMs == 0 {
		// Default window: the last hour of data.
		criteria.StartMs = time.Now().Add(-time.Hour).UnixMilli()
	}

	records, skipped, err := h.Retrieval.FetchAndDecrypt(r.Context(), criteria)
	if err != nil {
		h.Logger.Error("retrieval failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "envelope retrieval failed"})
		return
	}

	matched := query.Evaluate(records, predicate)

	results := make([]resultRecord, 0, len(matched))
	for i := range matched {
		rec := &matched[i]
		results = append(results, resultRecord{
			RecordID:            rec.RecordID,
			TimestampMs:         rec.TimestampMs,
			SourceEndpoint:      rec.SourceEndpoint,
			DestinationEndpoint: rec.DestinationEndpoint,
			Fields:              rec.Fields,
		})
	}

	h.Logger.Info("analysis query complete",
		slog.String("query", req.Query),
		slog.Int("recovered", len(records)),
		slog.Int("matched", len(results)),
		slog.Int("skipped", len(skipped)),
	)
	writeJSON(w, http.StatusOK, queryResponse{
		Matched: len(results),
		Results: results,
		Skipped: skipped,
	})
}
