package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPProvider talks to a REST call-control provider. Endpoints follow the
// common shape POST {base}/calls, POST {base}/messages, DELETE {base}/calls/{id}.
type HTTPProvider struct {
	baseURL    string
	apiKey     string
	fromNumber string
	client     *http.Client
}

// HTTPProviderOpts holds parameters for creating an HTTPProvider.
type HTTPProviderOpts struct {
	BaseURL    string
	APIKey     string
	FromNumber string
	Client     *http.Client // defaults to a 15s-timeout client
}

// NewHTTPProvider creates an HTTPProvider.
func NewHTTPProvider(opts HTTPProviderOpts) (*HTTPProvider, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("telephony: base url is required")
	}
	if opts.FromNumber == "" {
		return nil, fmt.Errorf("telephony: from number is required")
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPProvider{
		baseURL:    opts.BaseURL,
		apiKey:     opts.APIKey,
		fromNumber: opts.FromNumber,
		client:     client,
	}, nil
}

// Dial implements Provider.
func (p *HTTPProvider) Dial(ctx context.Context, to string) (string, error) {
	var resp struct {
		CallID string `json:"call_id"`
	}
	err := p.post(ctx, "/calls", map[string]string{
		"from": p.fromNumber,
		"to":   to,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("telephony: dial %s: %w", to, err)
	}
	return resp.CallID, nil
}

// Announce implements Provider.
func (p *HTTPProvider) Announce(ctx context.Context, to, message string) error {
	err := p.post(ctx, "/calls", map[string]string{
		"from":     p.fromNumber,
		"to":       to,
		"announce": message,
	}, nil)
	if err != nil {
		return fmt.Errorf("telephony: announce to %s: %w", to, err)
	}
	return nil
}

// SendSMS implements Provider.
func (p *HTTPProvider) SendSMS(ctx context.Context, to, body string) error {
	err := p.post(ctx, "/messages", map[string]string{
		"from": p.fromNumber,
		"to":   to,
		"body": body,
	}, nil)
	if err != nil {
		return fmt.Errorf("telephony: sms to %s: %w", to, err)
	}
	return nil
}

// Hangup implements Provider.
func (p *HTTPProvider) Hangup(ctx context.Context, callID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, p.baseURL+"/calls/"+callID, nil)
	if err != nil {
		return fmt.Errorf("telephony: hangup %s: %w", callID, err)
	}
	if err := p.do(req, nil); err != nil {
		return fmt.Errorf("telephony: hangup %s: %w", callID, err)
	}
	return nil
}

// post sends a JSON body and decodes the JSON response into out (when non-nil).
func (p *HTTPProvider) post(ctx context.Context, path string, body map[string]string, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return p.do(req, out)
}

func (p *HTTPProvider) do(req *http.Request, out interface{}) error {
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("provider returned %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
