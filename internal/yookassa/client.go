package yookassa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BatmanBruc/vpn-subscription-bot/internal/metrics"
	"github.com/BatmanBruc/vpn-subscription-bot/types"
	"github.com/google/uuid"
)

var (
	ErrNotConfigured = errors.New("yookassa credentials not configured")
	ErrForeignLabel  = errors.New("label does not reference a yookassa payment")
	ErrAPI           = errors.New("yookassa API error")
)

const (
	endpointCreate = "/payments"
	endpointGet    = "/payments/{id}"
)

type Config struct {
	ShopID    string
	SecretKey string
	APIURL    string
	ReturnURL string
	Currency  string
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	metrics    metrics.Recorder
	newKey     func() string
}

var _ types.PaymentProvider = (*Client)(nil)

func NewClient(cfg Config, httpClient *http.Client, rec metrics.Recorder) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if rec == nil {
		rec = metrics.Noop{}
	}
	if cfg.Currency == "" {
		cfg.Currency = "RUB"
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		metrics:    rec,
		newKey:     func() string { return uuid.New().String() },
	}
}

type amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

type confirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

type createPaymentRequest struct {
	Amount       amount            `json:"amount"`
	Capture      bool              `json:"capture"`
	Confirmation confirmation      `json:"confirmation"`
	Description  string            `json:"description,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Payment is the subset of the YooKassa payment object the bot reads.
type Payment struct {
	ID             string            `json:"id"`
	Status         string            `json:"status"`
	Paid           bool              `json:"paid"`
	Amount         amount            `json:"amount"`
	RefundedAmount *amount           `json:"refunded_amount,omitempty"`
	Confirmation   *confirmation     `json:"confirmation,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

func formatRubles(v int64) string {
	return strconv.FormatInt(v, 10) + ".00"
}

func (c *Client) configured() bool {
	return c.cfg.ShopID != "" && c.cfg.SecretKey != "" && c.cfg.APIURL != ""
}

func (c *Client) CreatePaymentLink(ctx context.Context, userID int64, terms types.PaymentTerms) (string, string, error) {
	if !c.configured() {
		return "", "", ErrNotConfigured
	}

	reqBody := createPaymentRequest{
		Amount:  amount{Value: formatRubles(terms.Amount), Currency: c.cfg.Currency},
		Capture: true,
		Confirmation: confirmation{
			Type:      "redirect",
			ReturnURL: c.cfg.ReturnURL,
		},
		Description: terms.Title,
		Metadata: map[string]string{
			"user_id": strconv.FormatInt(userID, 10),
			"server":  terms.Server,
			"days":    strconv.Itoa(terms.Days),
		},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", "", err
	}

	var p Payment
	if err := c.do(ctx, http.MethodPost, endpointCreate, "/payments", body, &p); err != nil {
		return "", "", err
	}
	if p.ID == "" || p.Confirmation == nil || p.Confirmation.ConfirmationURL == "" {
		return "", "", fmt.Errorf("%w: payment response without confirmation url", ErrAPI)
	}
	return p.Confirmation.ConfirmationURL, Label(p.ID), nil
}

func (c *Client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	if !c.configured() {
		return nil, ErrNotConfigured
	}
	var p Payment
	if err := c.do(ctx, http.MethodGet, endpointGet, "/payments/"+paymentID, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) GetStatus(ctx context.Context, label string) (types.ProviderStatus, error) {
	id, ok := PaymentID(label)
	if !ok {
		return "", ErrForeignLabel
	}
	p, err := c.GetPayment(ctx, id)
	if err != nil {
		return "", err
	}
	return p.ProviderStatus(), nil
}

// ProviderStatus maps the YooKassa payment status onto the provider-neutral one.
func (p *Payment) ProviderStatus() types.ProviderStatus {
	switch p.Status {
	case "succeeded":
		if p.RefundedAmount != nil {
			if v, err := strconv.ParseFloat(p.RefundedAmount.Value, 64); err == nil && v > 0 {
				return types.ProviderRefunded
			}
		}
		return types.ProviderSucceeded
	case "canceled":
		return types.ProviderCanceled
	default:
		return types.ProviderPending
	}
}

func (c *Client) do(ctx context.Context, method, endpoint, path string, body []byte, dest interface{}) error {
	start := time.Now()
	status := "error"
	defer func() {
		c.metrics.RecordProviderCall(endpoint, status, time.Since(start))
	}()

	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ShopID, c.cfg.SecretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotence-Key", c.newKey())
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("yookassa %s %s: %w", method, endpoint, err)
	}
	defer res.Body.Close()
	status = strconv.Itoa(res.StatusCode)

	data, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d, body: %s", ErrAPI, res.StatusCode, string(data))
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
