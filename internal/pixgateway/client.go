package pixgateway

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rhodrigo081/doare.back/internal"
)

// Client talks to the PSP's PIX API. The mTLS client certificate is loaded
// once at construction; the OAuth access token is cached and refreshed lazily
// before it expires.
type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	pixKey       string
	chargeExpiry int
	tokenMargin  time.Duration
	httpClient   *http.Client
	logger       *slog.Logger

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

func NewClient(cfg internal.PixConfig, logger *slog.Logger) (*Client, error) {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	margin := cfg.TokenMargin
	if margin <= 0 {
		margin = time.Minute
	}

	expiry := cfg.ChargeExpiry
	if expiry <= 0 {
		expiry = 3600
	}

	httpClient := &http.Client{Timeout: timeout}
	if cfg.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load pix client certificate: %w", err)
		}
		httpClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				Certificates: []tls.Certificate{cert},
				MinVersion:   tls.VersionTLS12,
			},
		}
	}

	return &Client{
		baseURL:      cfg.BaseURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		pixKey:       cfg.PixKey,
		chargeExpiry: expiry,
		tokenMargin:  margin,
		httpClient:   httpClient,
		logger:       logger,
	}, nil
}

// token returns the cached access token, refreshing it when it is inside the
// safety margin of its expiry.
func (c *Client) token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && time.Now().Before(c.tokenExpiry.Add(-c.tokenMargin)) {
		return c.accessToken, nil
	}

	body := bytes.NewBufferString(`{"grant_type":"client_credentials"}`)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", body)
	if err != nil {
		return "", internal.NewExternalError("failed to build token request", internal.ErrCodeGatewayAuth, err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", internal.NewExternalError("gateway token request failed", internal.ErrCodeGatewayAuth, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", internal.NewExternalError(
			fmt.Sprintf("gateway token request returned status %d: %s", resp.StatusCode, string(respBody)),
			internal.ErrCodeGatewayAuth, nil)
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", internal.NewExternalError("failed to decode token response", internal.ErrCodeGatewayAuth, err)
	}
	if token.AccessToken == "" {
		return "", internal.NewExternalError("gateway token response missing access_token", internal.ErrCodeGatewayAuth, nil)
	}

	c.accessToken = token.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)

	c.logger.Info("gateway access token refreshed", "expires_in", token.ExpiresIn)
	return c.accessToken, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out interface{}) error {
	token, err := c.token(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return internal.NewExternalError("failed to marshal gateway request", internal.ErrCodeGatewayRequest, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return internal.NewExternalError("failed to build gateway request", internal.ErrCodeGatewayRequest, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return internal.NewExternalError("gateway request failed", internal.ErrCodeGatewayRequest, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return internal.NewExternalError("failed to read gateway response", internal.ErrCodeGatewayRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var gwErr gatewayError
		_ = json.Unmarshal(respBody, &gwErr)
		msg := fmt.Sprintf("gateway returned status %d", resp.StatusCode)
		if detail := gwErr.String(); detail != "" {
			msg = fmt.Sprintf("%s (%s)", msg, detail)
		}
		return internal.NewExternalError(msg, internal.ErrCodeGatewayRequest, nil)
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return internal.NewExternalError("failed to decode gateway response", internal.ErrCodeGatewayRequest, err)
		}
	}

	return nil
}

// CreateCharge opens an immediate charge under the caller-supplied txid and
// fetches its QR presentation payload from the charge location.
func (c *Client) CreateCharge(ctx context.Context, req ChargeRequest) (*Charge, error) {
	payload := cobRequest{
		Calendario: cobCalendario{Expiracao: c.chargeExpiry},
		Devedor: cobDevedor{
			CPF:  req.PayerTaxID,
			Nome: req.PayerName,
		},
		Valor: cobValor{Original: FormatAmount(req.AmountCents)},
		Chave: c.pixKey,
	}

	var cob cobResponse
	if err := c.doJSON(ctx, http.MethodPut, "/v2/cob/"+url.PathEscape(req.TxID), payload, &cob); err != nil {
		return nil, err
	}

	if cob.Txid == "" || cob.Loc.ID == 0 {
		return nil, internal.NewExternalError("gateway charge response missing txid or loc id", internal.ErrCodeGatewayRequest, nil)
	}

	var qr qrcodeResponse
	qrPath := fmt.Sprintf("/v2/loc/%d/qrcode", cob.Loc.ID)
	if err := c.doJSON(ctx, http.MethodGet, qrPath, nil, &qr); err != nil {
		return nil, err
	}

	copyPaste := qr.CopiaECola
	if copyPaste == "" {
		copyPaste = cob.PixCopiaECola
	}

	if qr.QRCodeImage == "" || copyPaste == "" {
		return nil, internal.NewExternalError("gateway qrcode response missing presentation payload", internal.ErrCodeGatewayRequest, nil)
	}

	createdAt := cob.Calendario.Criacao
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	c.logger.Info("gateway charge created",
		"tx_id", cob.Txid,
		"loc_id", cob.Loc.ID,
		"status", cob.Status)

	return &Charge{
		TxID:      cob.Txid,
		LocID:     cob.Loc.ID,
		QRCode:    qr.QRCodeImage,
		CopyPaste: copyPaste,
		CreatedAt: createdAt,
	}, nil
}

// GetChargeDetails fetches the authoritative charge record by txid. The
// reconciliation engine trusts only this record, never the webhook body.
func (c *Client) GetChargeDetails(ctx context.Context, txID string) (*ChargeDetails, error) {
	var cob cobResponse
	if err := c.doJSON(ctx, http.MethodGet, "/v2/cob/"+url.PathEscape(txID), nil, &cob); err != nil {
		return nil, err
	}

	if cob.Txid == "" {
		return nil, internal.NewExternalError("gateway charge details missing txid", internal.ErrCodeGatewayRequest, nil)
	}

	return &ChargeDetails{
		TxID:       cob.Txid,
		Status:     cob.Status,
		Amount:     cob.Valor.Original,
		PayerTaxID: cob.Devedor.CPF,
		PayerName:  cob.Devedor.Nome,
		LocID:      cob.Loc.ID,
		Location:   cob.Location,
		CopyPaste:  cob.PixCopiaECola,
		CreatedAt:  cob.Calendario.Criacao,
	}, nil
}
