package yookassa

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/BatmanBruc/vpn-subscription-bot/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		ShopID:    "shop",
		SecretKey: "secret",
		APIURL:    srv.URL + "/",
		ReturnURL: "https://t.me/vpn_bot",
	}, srv.Client(), nil)
}

func TestLabelRoundTrip(t *testing.T) {
	label := Label(" 2c8e-000f ")
	assert.Equal(t, "yk_2c8e-000f", label)

	id, ok := PaymentID(label)
	assert.True(t, ok)
	assert.Equal(t, "2c8e-000f", id)

	_, ok = PaymentID("ym_123")
	assert.False(t, ok)
	_, ok = PaymentID("yk_")
	assert.False(t, ok)
}

func TestCreatePaymentLink(t *testing.T) {
	var got createPaymentRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payments", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "shop", user)
		assert.Equal(t, "secret", pass)
		assert.NotEmpty(t, r.Header.Get("Idempotence-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "pay-1",
			"status": "pending",
			"confirmation": map[string]string{
				"type":             "redirect",
				"confirmation_url": "https://yoomoney.ru/checkout/pay-1",
			},
		})
	})

	url, label, err := client.CreatePaymentLink(context.Background(), 42, types.PaymentTerms{
		Server: "germany",
		Amount: 150,
		Days:   30,
		Title:  "1 месяц",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://yoomoney.ru/checkout/pay-1", url)
	assert.Equal(t, "yk_pay-1", label)

	assert.Equal(t, "150.00", got.Amount.Value)
	assert.Equal(t, "RUB", got.Amount.Currency)
	assert.True(t, got.Capture)
	assert.Equal(t, "redirect", got.Confirmation.Type)
	assert.Equal(t, "42", got.Metadata["user_id"])
	assert.Equal(t, "30", got.Metadata["days"])
}

func TestCreatePaymentLink_NotConfigured(t *testing.T) {
	client := NewClient(Config{APIURL: "http://localhost"}, nil, nil)
	_, _, err := client.CreatePaymentLink(context.Background(), 1, types.PaymentTerms{Amount: 1})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestGetStatus(t *testing.T) {
	cases := []struct {
		name     string
		payment  map[string]interface{}
		expected types.ProviderStatus
	}{
		{"pending", map[string]interface{}{"id": "p", "status": "pending"}, types.ProviderPending},
		{"waiting for capture", map[string]interface{}{"id": "p", "status": "waiting_for_capture"}, types.ProviderPending},
		{"succeeded", map[string]interface{}{"id": "p", "status": "succeeded", "refunded_amount": map[string]string{"value": "0.00", "currency": "RUB"}}, types.ProviderSucceeded},
		{"refunded", map[string]interface{}{"id": "p", "status": "succeeded", "refunded_amount": map[string]string{"value": "150.00", "currency": "RUB"}}, types.ProviderRefunded},
		{"canceled", map[string]interface{}{"id": "p", "status": "canceled"}, types.ProviderCanceled},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				assert.Equal(t, "/payments/p", r.URL.Path)
				assert.Empty(t, r.Header.Get("Idempotence-Key"))
				_ = json.NewEncoder(w).Encode(tc.payment)
			})

			status, err := client.GetStatus(context.Background(), "yk_p")
			require.NoError(t, err)
			assert.Equal(t, tc.expected, status)
		})
	}
}

func TestGetStatus_ForeignLabel(t *testing.T) {
	client := NewClient(Config{ShopID: "s", SecretKey: "k", APIURL: "http://localhost"}, nil, nil)
	_, err := client.GetStatus(context.Background(), "ym_1")
	assert.ErrorIs(t, err, ErrForeignLabel)
}

func TestGetStatus_APIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"type":"error"}`))
	})

	_, err := client.GetStatus(context.Background(), "yk_p")
	assert.ErrorIs(t, err, ErrAPI)
}

func TestGetStatus_Timeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := client.GetStatus(ctx, "yk_p")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
