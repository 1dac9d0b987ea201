// ABOUTME: OData v4 persistence adapter for the deliverables backend
// ABOUTME: Injects bearer credentials, maps 401 to cache invalidation and 400 to field validation failures

package services

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/cloudfoundry/socks5-proxy"
	"github.com/google/uuid"

	"github.com/edms-tools/deliverables-admin/backend/models"
)

// ErrUnauthorized is returned when the backend rejects the bearer token.
// The token cache has already been cleared by the time this surfaces.
var ErrUnauthorized = errors.New("odata backend rejected the bearer token")

// ValidationError carries the backend's 400 response as a field -> messages
// mapping so handlers can render inline messages.
type ValidationError struct {
	Fields  map[string][]string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}
	return fmt.Sprintf("validation failed on %d field(s)", len(e.Fields))
}

// ODataClientConfig holds the connection settings for the upstream API.
type ODataClientConfig struct {
	BaseURL           string
	CACert            string
	SkipSSLValidation bool
	AllProxy          string // optional ssh+socks5:// jumpbox proxy
}

// ODataClient is the persistence adapter. Every request carries a bearer
// token from the manager; a 401 response is authoritative proof of token
// invalidity and clears the manager's cache.
type ODataClient struct {
	baseURL string
	tokens  *TokenManager
	client  *http.Client
}

func NewODataClient(cfg ODataClientConfig, tokens *TokenManager) *ODataClient {
	tlsConfig := &tls.Config{}
	if cfg.CACert != "" {
		certPool := x509.NewCertPool()
		if ok := certPool.AppendCertsFromPEM([]byte(cfg.CACert)); ok {
			tlsConfig.RootCAs = certPool
		} else {
			slog.Warn("Failed to parse ODATA_CA_CERT, falling back to system roots")
		}
	} else if cfg.SkipSSLValidation {
		tlsConfig.InsecureSkipVerify = true
	}

	transport := &http.Transport{
		TLSClientConfig:     tlsConfig,
		TLSHandshakeTimeout: 30 * time.Second,
	}

	if cfg.AllProxy != "" {
		if dialContext := createSOCKS5DialContextFunc(cfg.AllProxy); dialContext != nil {
			transport.DialContext = dialContext
		}
	}

	return &ODataClient{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		tokens:  tokens,
		client: &http.Client{
			Timeout:   60 * time.Second,
			Transport: transport,
		},
	}
}

// SetHTTPClient allows overriding the HTTP client (useful for testing)
func (c *ODataClient) SetHTTPClient(client *http.Client) {
	c.client = client
}

// do executes one authenticated request. out, when non-nil, receives the
// decoded JSON response body.
func (c *ODataClient) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	token, err := c.tokens.Acquire(ctx, false)
	if err != nil {
		return fmt.Errorf("acquire token: %w", err)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("odata request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		// Authoritative: the token is invalid no matter what the local
		// expiry bookkeeping says.
		slog.Warn("OData backend returned 401, clearing token cache", "path", path)
		c.tokens.Clear()
		return ErrUnauthorized
	case resp.StatusCode == http.StatusBadRequest:
		return parseValidationResponse(resp.Body)
	case resp.StatusCode >= 300:
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("odata request %s %s returned status %d: %s", method, path, resp.StatusCode, string(raw))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parse odata response: %w", err)
	}
	return nil
}

// parseValidationResponse maps an OData 400 body into a ValidationError.
// The backend reports either a ModelState-style field map or a plain
// error message.
func parseValidationResponse(body io.Reader) error {
	raw, err := io.ReadAll(body)
	if err != nil {
		return &ValidationError{Message: "bad request"}
	}

	var payload struct {
		Error struct {
			Message string `json:"message"`
			Details []struct {
				Target  string `json:"target"`
				Message string `json:"message"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || (payload.Error.Message == "" && len(payload.Error.Details) == 0) {
		return &ValidationError{Message: strings.TrimSpace(string(raw))}
	}

	ve := &ValidationError{Message: payload.Error.Message}
	for _, d := range payload.Error.Details {
		if d.Target == "" {
			continue
		}
		if ve.Fields == nil {
			ve.Fields = make(map[string][]string)
		}
		ve.Fields[d.Target] = append(ve.Fields[d.Target], d.Message)
	}
	return ve
}

// collection is the OData envelope for entity sets.
type collection[T any] struct {
	Value []T `json:"value"`
}

func (c *ODataClient) GetVariation(ctx context.Context, guid uuid.UUID) (*models.Variation, error) {
	var v models.Variation
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/Variations(%s)", guid), nil, nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *ODataClient) GetVariationDeliverable(ctx context.Context, guid uuid.UUID) (*models.VariationDeliverable, error) {
	var d models.VariationDeliverable
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/VariationDeliverables(%s)", guid), nil, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *ODataClient) ListVariationDeliverables(ctx context.Context, variationGuid uuid.UUID) ([]models.VariationDeliverable, error) {
	query := url.Values{}
	query.Set("variationGuid", variationGuid.String())

	var result collection[models.VariationDeliverable]
	if err := c.do(ctx, http.MethodGet, "/VariationDeliverables", query, nil, &result); err != nil {
		return nil, err
	}
	return result.Value, nil
}

func (c *ODataClient) CreateVariationDeliverable(ctx context.Context, rec *models.VariationDeliverable) (*models.VariationDeliverable, error) {
	var created models.VariationDeliverable
	if err := c.do(ctx, http.MethodPost, "/VariationDeliverables", nil, rec, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *ODataClient) UpdateVariationDeliverable(ctx context.Context, rec *models.VariationDeliverable) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/VariationDeliverables(%s)", rec.Guid), nil, rec, nil)
}

func (c *ODataClient) GetGate(ctx context.Context, guid uuid.UUID) (*models.Gate, error) {
	var g models.Gate
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/Gates(%s)", guid), nil, nil, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// SuggestInternalDocumentNumber asks the numbering authority for the next
// available document number for the given classification.
func (c *ODataClient) SuggestInternalDocumentNumber(ctx context.Context, params url.Values) (string, error) {
	var result struct {
		Value string `json:"value"`
	}
	if err := c.do(ctx, http.MethodGet, "/SuggestInternalDocumentNumber", params, nil, &result); err != nil {
		return "", err
	}
	return result.Value, nil
}

func (c *ODataClient) ApproveVariation(ctx context.Context, guid uuid.UUID) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/Variations(%s)/ApproveVariation", guid), nil, nil, nil)
}

func (c *ODataClient) RejectVariation(ctx context.Context, guid uuid.UUID, comments string) error {
	body := map[string]string{"comments": comments}
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/Variations(%s)/RejectVariation", guid), nil, body, nil)
}

func (c *ODataClient) CancelDeliverable(ctx context.Context, guid uuid.UUID) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/VariationDeliverables(%s)/CancelDeliverable", guid), nil, nil, nil)
}

// AddOrUpdateExisting upserts a progress entry for a reporting period.
func (c *ODataClient) AddOrUpdateExisting(ctx context.Context, update models.ProgressUpdate) error {
	return c.do(ctx, http.MethodPost, "/Progress/AddOrUpdateExisting", nil, update, nil)
}

func (c *ODataClient) SetPermissionLevel(ctx context.Context, userGuid uuid.UUID, level string) error {
	body := map[string]string{
		"userGuid": userGuid.String(),
		"level":    level,
	}
	return c.do(ctx, http.MethodPost, "/Permissions/SetPermissionLevel", nil, body, nil)
}

// createSOCKS5DialContextFunc creates a dial function for SSH+SOCKS5 proxy
// connections to backends behind a jumpbox.
// Supports format: ssh+socks5://user@host:port?private-key=/path/to/key
func createSOCKS5DialContextFunc(allProxy string) func(ctx context.Context, network, address string) (net.Conn, error) {
	allProxy = strings.TrimPrefix(allProxy, "ssh+")

	proxyURL, err := url.Parse(allProxy)
	if err != nil {
		slog.Error("Failed to parse ODATA_ALL_PROXY URL", "error", err)
		return nil
	}

	queryMap, err := url.ParseQuery(proxyURL.RawQuery)
	if err != nil {
		slog.Error("Failed to parse ODATA_ALL_PROXY query params", "error", err)
		return nil
	}

	username := ""
	if proxyURL.User != nil {
		username = proxyURL.User.Username()
	}

	proxySSHKeyPath := queryMap.Get("private-key")
	if proxySSHKeyPath == "" {
		slog.Error("ODATA_ALL_PROXY missing required 'private-key' query param")
		return nil
	}

	proxySSHKey, err := os.ReadFile(proxySSHKeyPath)
	if err != nil {
		slog.Error("Failed to read SSH private key", "path", proxySSHKeyPath, "error", err)
		return nil
	}

	socks5Proxy := proxy.NewSocks5Proxy(proxy.NewHostKey(), log.Default(), 1*time.Minute)

	var (
		dialer proxy.DialFunc
		mut    sync.RWMutex
	)

	return func(ctx context.Context, network, address string) (net.Conn, error) {
		mut.RLock()
		haveDialer := dialer != nil
		mut.RUnlock()

		if haveDialer {
			return dialer(network, address)
		}

		mut.Lock()
		defer mut.Unlock()
		if dialer == nil {
			proxyDialer, err := socks5Proxy.Dialer(username, string(proxySSHKey), proxyURL.Host)
			if err != nil {
				return nil, fmt.Errorf("error creating SOCKS5 dialer: %w", err)
			}
			dialer = proxyDialer
		}
		return dialer(network, address)
	}
}
