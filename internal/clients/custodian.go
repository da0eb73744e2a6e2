// Package clients holds outbound HTTP clients for the packetvault services.
package clients

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"packetvault/internal/core/domain"
	"packetvault/internal/core/services"
)

// CustodianClient implements domain.KeyClient over the custodian's HTTP RPC
// surface. Every request carries a bounded timeout via its context and a
// freshly minted service token; transport failures and timeouts surface as
// domain.ErrKeyServiceUnavailable so callers can treat them as retryable.
type CustodianClient struct {
	baseURL     string
	serviceName string
	tokens      *services.TokenService
	timeout     time.Duration
	httpClient  *http.Client
	logger      *slog.Logger
}

func NewCustodianClient(baseURL, serviceName string, tokens *services.TokenService, timeout time.Duration, logger *slog.Logger) *CustodianClient {
	return &CustodianClient{
		baseURL:     baseURL,
		serviceName: serviceName,
		tokens:      tokens,
		timeout:     timeout,
		httpClient:  &http.Client{},
		logger:      logger,
	}
}

type keyResponse struct {
	KeyID       string `json:"key_id"`
	KeyMaterial string `json:"key_material"` // base64
	Message     string `json:"message"`
}

func (c *CustodianClient) GenerateKey(ctx context.Context) (string, []byte, error) {
	var resp keyResponse
	if err := c.post(ctx, "/api/v1/keys/generate", nil, &resp); err != nil {
		return "", nil, err
	}
	material, err := base64.StdEncoding.DecodeString(resp.KeyMaterial)
	if err != nil {
		return "", nil, fmt.Errorf("%w: malformed key material in response: %v", domain.ErrKeyServiceUnavailable, err)
	}
	return resp.KeyID, material, nil
}

func (c *CustodianClient) KeyMaterial(ctx context.Context, keyID string) ([]byte, error) {
	body := map[string]string{"key_id": keyID}
	var resp keyResponse
	if err := c.post(ctx, "/api/v1/keys/retrieve", body, &resp); err != nil {
		return nil, err
	}
	material, err := base64.StdEncoding.DecodeString(resp.KeyMaterial)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed key material in response: %v", domain.ErrKeyServiceUnavailable, err)
	}
	return material, nil
}

func (c *CustodianClient) post(ctx context.Context, path string, body any, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return fmt.Errorf("%w: request encode: %v", domain.ErrKeyServiceUnavailable, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrKeyServiceUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	token, err := c.tokens.Mint(c.serviceName)
	if err != nil {
		return fmt.Errorf("%w: token mint: %v", domain.ErrKeyServiceUnavailable, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("custodian request failed",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %v", domain.ErrKeyServiceUnavailable, err)
	}
	defer httpResp.Body.Close()

	switch {
	case httpResp.StatusCode == http.StatusNotFound:
		return domain.ErrKeyNotFound
	case httpResp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: custodian returned HTTP %d", domain.ErrKeyServiceUnavailable, httpResp.StatusCode)
	}

	if err := json.NewDecoder(httpResp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: response decode: %v", domain.ErrKeyServiceUnavailable, err)
	}
	return nil
}
