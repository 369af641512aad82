package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(serverURL string) *Client {
	return NewClient(serverURL, "env-key", "access-secret", "gw-token", 2*time.Second)
}

func TestPurchaseSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/gateways/gw-token/purchase.json", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "env-key", user)
		assert.Equal(t, "access-secret", pass)

		var req transactionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "pm-abc", req.Transaction.PaymentMethodToken)
		assert.Equal(t, int64(4500), req.Transaction.Amount)
		assert.Equal(t, "USD", req.Transaction.CurrencyCode)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"transaction":{"token":"tx-1","succeeded":true,"state":"succeeded","amount":4500,"currency_code":"USD","response":{"message":"Approved"}}}`))
	}))
	defer server.Close()

	result, err := newTestClient(server.URL).Purchase(context.Background(), "pm-abc", 4500, "USD")

	require.NoError(t, err)
	assert.True(t, result.Succeeded)
	assert.Equal(t, "tx-1", result.TransactionToken)
	assert.Equal(t, "Approved", result.Message)
	assert.Equal(t, int64(4500), result.AmountCents)
}

func TestPurchaseDeclineIsResultNotError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"transaction":{"token":"tx-2","succeeded":false,"state":"gateway_processing_failed","response":{"message":"Insufficient funds","error_code":"51"}}}`))
	}))
	defer server.Close()

	result, err := newTestClient(server.URL).Purchase(context.Background(), "pm-abc", 4500, "USD")

	require.NoError(t, err)
	assert.False(t, result.Succeeded)
	assert.Equal(t, "Insufficient funds", result.Message)
	assert.Equal(t, "51", result.ErrorCode)
}

func TestAuthorizeHitsAuthorizePath(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"transaction":{"token":"tx-3","succeeded":true,"state":"succeeded"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Authorize(context.Background(), "pm-abc", 1000, "USD")

	require.NoError(t, err)
	assert.Equal(t, "/gateways/gw-token/authorize.json", gotPath)
}

func TestUnparseableResponseIsError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream unavailable"))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Purchase(context.Background(), "pm-abc", 4500, "USD")

	assert.Error(t, err)
}

func TestShowPaymentMethod(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payment_methods/pm-abc.json", r.URL.Path)
		w.Write([]byte(`{"payment_method":{"token":"pm-abc","card_type":"visa","last_four_digits":"4242","month":12,"year":2029}}`))
	}))
	defer server.Close()

	pm, err := newTestClient(server.URL).ShowPaymentMethod(context.Background(), "pm-abc")

	require.NoError(t, err)
	assert.Equal(t, "visa", pm.CardType)
	assert.Equal(t, "4242", pm.LastFour)
}
