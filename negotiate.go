package signalr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// NegotiationResult is the parsed response of the HTTP negotiation step
// (spec §3, §6).
type NegotiationResult struct {
	ConnectionID        string               `json:"connectionId"`
	AvailableTransports []AvailableTransport `json:"availableTransports"`
	NegotiateVersion    int                  `json:"negotiateVersion"`
}

// AvailableTransport describes one transport the server offers.
type AvailableTransport struct {
	Transport        string   `json:"transport"`
	TransferFormats  []string `json:"transferFormats"`
}

func (r *NegotiationResult) supports(format string) bool {
	for _, t := range r.AvailableTransports {
		if t.Transport != "WebSockets" {
			continue
		}
		for _, f := range t.TransferFormats {
			if f == format {
				return true
			}
		}
	}
	return false
}

// negotiate performs the HTTP POST negotiation request, generalizing the
// teacher's negotiate function to validate the response carries the
// transport/transfer-format the configured hub protocol requires (spec
// §4.5, §6).
func negotiate(ctx context.Context, cfg *Config) (*NegotiationResult, error) {
	negotiateURL := fmt.Sprintf("%s/negotiate?negotiateVersion=1", cfg.httpBaseURL())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, negotiateURL, nil)
	if err != nil {
		return nil, &TransportError{Op: "negotiate", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	applyCredentials(req.Header, cfg.Credentials)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "negotiate", Cause: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "negotiate", Cause: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &NegotiationFailedError{Status: resp.StatusCode, Body: string(body)}
	}

	var result NegotiationResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, &NegotiationFailedError{Status: resp.StatusCode, Body: string(body)}
	}

	requiredFormat := "Text"
	if cfg.Protocol == MessagePackProtocol {
		requiredFormat = "Binary"
	}
	if !result.supports(requiredFormat) {
		return nil, &UnsupportedTransportError{Required: fmt.Sprintf("WebSockets with %s transfer format", requiredFormat)}
	}

	return &result, nil
}

// webSocketURL builds the post-negotiation WebSocket URL (spec §4.5, §6).
func webSocketURL(cfg *Config, connectionID string) string {
	u := url.URL{
		Scheme: cfg.wsScheme(),
		Host:   cfg.hostPort(),
		Path:   "/" + cfg.Hub,
	}
	q := u.Query()
	q.Set("id", connectionID)
	u.RawQuery = q.Encode()
	return u.String()
}

// applyCredentials sets the Authorization header per the configured
// credential kind (spec §6).
func applyCredentials(h http.Header, c Credentials) {
	switch cred := c.(type) {
	case BearerCredentials:
		h.Set("Authorization", "Bearer "+cred.Token)
	case BasicCredentials:
		req := &http.Request{Header: h}
		req.SetBasicAuth(cred.User, cred.Password)
	}
}
