package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"packetvault/internal/core/domain"
	"packetvault/internal/core/services"
)

// Use a single instance of Validate, it caches struct info
var validate = validator.New()

// ==============================================================================
// 1. Request/Response Payloads
// ==============================================================================

type retrieveKeyRequest struct {
	KeyID string `json:"key_id" validate:"required,max=100"`
}

type keyResponse struct {
	KeyID       string `json:"key_id"`
	KeyMaterial string `json:"key_material"` // base64; transport confidentiality is external
	Message     string `json:"message"`
}

// ==============================================================================
// 2. The Handler Struct (Dependency Injection)
// ==============================================================================

// KeyHandler exposes the custodian RPC surface. GenerateKey returns material
// exactly once, at generation time, to the ingest path; RetrieveKey serves
// the retrieval path.
type KeyHandler struct {
	Custodian *services.CustodianService
	Logger    *slog.Logger
}

func NewKeyHandler(custodian *services.CustodianService, logger *slog.Logger) *KeyHandler {
	return &KeyHandler{Custodian: custodian, Logger: logger}
}

// ==============================================================================
// 3. HTTP Methods
// ==============================================================================

// GenerateKey handles POST /api/v1/keys/generate
func (h *KeyHandler) GenerateKey(w http.ResponseWriter, r *http.Request) {
	keyID, material, err := h.Custodian.GenerateKey(r.Context())
	if err != nil {
		h.Logger.Error("key generation failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"message": "key generation failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, keyResponse{
		KeyID:       keyID,
		KeyMaterial: base64.StdEncoding.EncodeToString(material),
		Message:     "New DEK generated and stored.",
	})
}

// RetrieveKey handles POST /api/v1/keys/retrieve
func (h *KeyHandler) RetrieveKey(w http.ResponseWriter, r *http.Request) {
	var req retrieveKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid JSON body"})
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "key_id is required"})
		return
	}

	material, err := h.Custodian.Material(r.Context(), req.KeyID)
	if errors.Is(err, domain.ErrKeyNotFound) {
		h.Logger.Warn("retrieval failure for unknown key", slog.String("key_id", req.KeyID))
		writeJSON(w, http.StatusNotFound, map[string]string{
			"message": "key id '" + req.KeyID + "' not found",
		})
		return
	}
	if err != nil {
		h.Logger.Error("key retrieval failed",
			slog.String("key_id", req.KeyID),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"message": "key retrieval failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, keyResponse{
		KeyID:       req.KeyID,
		KeyMaterial: base64.StdEncoding.EncodeToString(material),
		Message:     "DEK retrieved successfully.",
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
