package paystack

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultBaseURL = "https://api.paystack.co"

var ErrSignatureMismatch = errors.New("paystack signature mismatch")

// InitializeRequest is the body of POST /transaction/initialize.
// Amount is in kobo.
type InitializeRequest struct {
	Email       string                 `json:"email"`
	Amount      int64                  `json:"amount"`
	Reference   string                 `json:"reference"`
	CallbackURL string                 `json:"callback_url,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

type Authorization struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// Verification is the data block of GET /transaction/verify/:reference.
type Verification struct {
	Reference string                 `json:"reference"`
	Amount    int64                  `json:"amount"`
	Status    string                 `json:"status"`
	PaidAt    *time.Time             `json:"paid_at"`
	Metadata  map[string]interface{} `json:"metadata"`
	Raw       json.RawMessage        `json:"-"`
}

// Succeeded reports whether the gateway settled the charge.
func (v *Verification) Succeeded() bool {
	return v != nil && v.Status == "success"
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Gateway initializes and verifies card payments.
type Gateway interface {
	Initialize(ctx context.Context, req InitializeRequest) (*Authorization, error)
	Verify(ctx context.Context, reference string) (*Verification, error)
}

// Client talks to the Paystack REST API with a secret key.
type Client struct {
	SecretKey string
	BaseURL   string
	Client    *http.Client
}

func NewClient(secretKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		SecretKey: secretKey,
		BaseURL:   strings.TrimRight(baseURL, "/"),
		Client:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}) (json.RawMessage, error) {
	if c.SecretKey == "" {
		return nil, errors.New("paystack secret key is not configured")
	}
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.Client == nil {
		c.Client = &http.Client{Timeout: 15 * time.Second}
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("paystack %s %s: status %d: %w", method, path, resp.StatusCode, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Status {
		return nil, fmt.Errorf("paystack %s %s failed: status %d: %s", method, path, resp.StatusCode, env.Message)
	}
	return env.Data, nil
}

// Initialize starts a transaction and returns the checkout URL.
func (c *Client) Initialize(ctx context.Context, in InitializeRequest) (*Authorization, error) {
	data, err := c.do(ctx, http.MethodPost, "/transaction/initialize", in)
	if err != nil {
		return nil, err
	}
	var out Authorization
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode authorization: %w", err)
	}
	return &out, nil
}

// Verify fetches the settled state of a reference.
func (c *Client) Verify(ctx context.Context, reference string) (*Verification, error) {
	data, err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil)
	if err != nil {
		return nil, err
	}
	var out Verification
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode verification: %w", err)
	}
	out.Raw = data
	return &out, nil
}

// VerifySignature checks the x-paystack-signature header, an HMAC-SHA512
// of the raw body keyed by the secret key.
func VerifySignature(payload []byte, signature, secret string) error {
	if signature == "" || secret == "" {
		return errors.New("missing signature or secret")
	}
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected)) {
		return ErrSignatureMismatch
	}
	return nil
}

// Sign returns the signature Paystack would send for payload.
func Sign(payload []byte, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
