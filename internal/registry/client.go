package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/rhodrigo081/doare.back/internal"
)

// Partner is the registry's record for a registered donor: a display name
// plus the registry's internal reference.
type Partner struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Client looks donors up in the external partner registry by exact tax id.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg internal.RegistryConfig, logger *slog.Logger) *Client {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// FindByTaxID resolves a donor by exact tax id match. A missing donor is a
// NotFoundError; transport or server failures are ExternalErrors.
func (c *Client) FindByTaxID(ctx context.Context, taxID string) (*Partner, error) {
	endpoint := c.baseURL + "/partners/" + url.PathEscape(taxID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, internal.NewExternalError("failed to build registry request", internal.ErrCodeRegistryLookup, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, internal.NewExternalError("registry lookup failed", internal.ErrCodeRegistryLookup, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, internal.ErrDonorNotFound
	case resp.StatusCode != http.StatusOK:
		respBody, _ := io.ReadAll(resp.Body)
		return nil, internal.NewExternalError(
			fmt.Sprintf("registry returned status %d: %s", resp.StatusCode, string(respBody)),
			internal.ErrCodeRegistryLookup, nil)
	}

	var partner Partner
	if err := json.NewDecoder(resp.Body).Decode(&partner); err != nil {
		return nil, internal.NewExternalError("failed to decode registry response", internal.ErrCodeRegistryLookup, err)
	}

	c.logger.Debug("registry lookup resolved", "tax_id", taxID, "partner_id", partner.ID)
	return &partner, nil
}
