package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"packetvault/internal/core/domain"
	"packetvault/internal/core/services"
)

// ==============================================================================
// 1. Request/Response Payloads
// ==============================================================================

// storeRecordRequest is the ingest RPC body. Payload is base64 on the wire
// (encoding/json decodes it into the byte slice).
type storeRecordRequest struct {
	RecordID            string `json:"record_id" validate:"required,max=200"`
	TimestampMs         int64  `json:"timestamp_ms" validate:"required,gt=0"`
	SourceEndpoint      string `json:"source_endpoint" validate:"required,max=200"`
	DestinationEndpoint string `json:"destination_endpoint" validate:"required,max=200"`
	Payload             []byte `json:"payload" validate:"required"`
}

type storeRecordResponse struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	StoredID string `json:"stored_id"`
}

// ==============================================================================
// 2. The Handler Struct (Dependency Injection)
// ==============================================================================

type IngestHandler struct {
	Ingest *services.IngestService
	Logger *slog.Logger
}

func NewIngestHandler(ingest *services.IngestService, logger *slog.Logger) *IngestHandler {
	return &IngestHandler{Ingest: ingest, Logger: logger}
}

// ==============================================================================
// 3. HTTP Methods
// ==============================================================================

// StoreRecord handles POST /api/v1/records. Internal failures come back as
// success=false with a descriptive message and a status the caller can use
// for retry decisions — never an unstructured fault.
func (h *IngestHandler) StoreRecord(w http.ResponseWriter, r *http.Request) {
	var req storeRecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, storeRecordResponse{
			Success: false, Message: "invalid JSON body: " + err.Error(),
		})
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, storeRecordResponse{
			Success: false, Message: "validation failed: " + err.Error(),
		})
		return
	}

	ack, err := h.Ingest.StoreRecord(r.Context(), &domain.RawRecord{
		RecordID:            req.RecordID,
		TimestampMs:         req.TimestampMs,
		SourceEndpoint:      req.SourceEndpoint,
		DestinationEndpoint: req.DestinationEndpoint,
		Payload:             req.Payload,
	})
	if err != nil {
		status := http.StatusInternalServerError
		message := "encryption failure"
		switch {
		case errors.Is(err, domain.ErrKeyServiceUnavailable):
			status = http.StatusBadGateway
			message = "key custodian unavailable, retry later"
		case errors.Is(err, domain.ErrPersistenceFailure):
			status = http.StatusServiceUnavailable
			message = "envelope persistence failed, retry later"
		}
		h.Logger.Error("ingest failed",
			slog.String("record_id", req.RecordID),
			slog.String("error", err.Error()),
		)
		writeJSON(w, status, storeRecordResponse{
			Success: false, Message: message, StoredID: req.RecordID,
		})
		return
	}

	writeJSON(w, http.StatusOK, storeRecordResponse{
		Success:  true,
		Message:  "record stored, sealed with key " + ack.KeyID,
		StoredID: ack.StoredID,
	})
}
