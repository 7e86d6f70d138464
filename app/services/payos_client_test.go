package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testChecksumKey = "1a54716c8f0efb2744fb28b6e38b25da7f67a925d98bc1c18bd8faaecadd7675"

func newTestPayOS(baseURL string) *PayOSClient {
	return NewPayOSClient(baseURL, "client-id", "api-key", testChecksumKey,
		"https://app.example.com/return", "https://app.example.com/cancel", 2*time.Second)
}

func TestPayOSClient_BuildPaymentRequest(t *testing.T) {
	client := newTestPayOS("https://gateway.example.com")

	req, err := client.BuildPaymentRequest(77, 123456789, decimal.RequireFromString("250000.4"), "", "")
	require.NoError(t, err)

	assert.Equal(t, int64(123456789), req.OrderCode)
	assert.Equal(t, int64(250000), req.Amount)
	assert.Equal(t, "HH BDS 77", req.Description)
	assert.Equal(t, "https://app.example.com/return", req.ReturnURL)
	assert.Equal(t, "https://app.example.com/cancel", req.CancelURL)

	canonical := "amount=250000&cancelUrl=https://app.example.com/cancel&description=HH BDS 77&orderCode=123456789&returnUrl=https://app.example.com/return"
	assert.Equal(t, canonical, Canonicalize(req.signedFields()))
	assert.True(t, VerifySignature(req.signedFields(), testChecksumKey, req.Signature))

	_, err = client.BuildPaymentRequest(77, 0, decimal.NewFromInt(10), "", "")
	assert.Error(t, err)
	_, err = client.BuildPaymentRequest(77, 1, decimal.Zero, "", "")
	assert.Error(t, err)
}

func TestPayOSClient_RequestCheckout(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v2/payment-requests", r.URL.Path)
			assert.Equal(t, "client-id", r.Header.Get("x-client-id"))
			assert.Equal(t, "api-key", r.Header.Get("x-api-key"))

			var body PaymentRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.NotEmpty(t, body.Signature)

			w.Header().Set("Content-Type", "application/json")
			w.Write(signedCheckout(t, checkoutData(body.OrderCode), testChecksumKey))
		}))
		defer server.Close()

		client := newTestPayOS(server.URL)
		req, err := client.BuildPaymentRequest(1, 99, decimal.NewFromInt(1000), "", "")
		require.NoError(t, err)

		res, err := client.RequestCheckout(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "https://pay.example.com/web/abc", res.CheckoutURL)
		assert.Equal(t, "000201010212", res.QRCode)
		assert.Equal(t, int64(99), res.OrderCode)
	})

	t.Run("ResponseSignatureMismatch", func(t *testing.T) {
		cases := map[string]func(orderCode int64) []byte{
			"wrong key": func(orderCode int64) []byte {
				return signedCheckout(t, checkoutData(orderCode), "other-key")
			},
			"tampered checkout url": func(orderCode int64) []byte {
				body := string(signedCheckout(t, checkoutData(orderCode), testChecksumKey))
				return []byte(strings.Replace(body, "pay.example.com", "evil.example.com", 1))
			},
			"unsigned": func(orderCode int64) []byte {
				raw, _ := json.Marshal(map[string]any{"code": "00", "desc": "success", "data": checkoutData(orderCode)})
				return raw
			},
		}
		for name, respond := range cases {
			t.Run(name, func(t *testing.T) {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					var body PaymentRequest
					require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
					w.Write(respond(body.OrderCode))
				}))
				defer server.Close()

				client := newTestPayOS(server.URL)
				req, err := client.BuildPaymentRequest(1, 99, decimal.NewFromInt(1000), "", "")
				require.NoError(t, err)

				res, err := client.RequestCheckout(context.Background(), req)
				assert.Nil(t, res)
				var gwErr *GatewayError
				require.True(t, errors.As(err, &gwErr))
				assert.Equal(t, "checkout signature mismatch", gwErr.Desc)
				assert.ErrorIs(t, err, ErrGatewayRejected)
			})
		}
	})

	t.Run("NonSuccessCodeIsGatewayError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]any{"code": "231", "desc": "order code already exists"})
		}))
		defer server.Close()

		client := newTestPayOS(server.URL)
		req, err := client.BuildPaymentRequest(1, 99, decimal.NewFromInt(1000), "", "")
		require.NoError(t, err)

		_, err = client.RequestCheckout(context.Background(), req)
		require.Error(t, err)
		var gwErr *GatewayError
		require.True(t, errors.As(err, &gwErr))
		assert.Equal(t, "231", gwErr.Code)
		assert.ErrorIs(t, err, ErrGatewayRejected)
	})

	t.Run("HTTPFailureIsGatewayError", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		client := newTestPayOS(server.URL)
		req, err := client.BuildPaymentRequest(1, 99, decimal.NewFromInt(1000), "", "")
		require.NoError(t, err)

		_, err = client.RequestCheckout(context.Background(), req)
		assert.ErrorIs(t, err, ErrGatewayRejected)
	})

	t.Run("UnreachableGateway", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := server.URL
		server.Close()

		client := newTestPayOS(url)
		req, err := client.BuildPaymentRequest(1, 99, decimal.NewFromInt(1000), "", "")
		require.NoError(t, err)

		_, err = client.RequestCheckout(context.Background(), req)
		assert.ErrorIs(t, err, ErrGatewayUnavailable)
	})
}

func checkoutData(orderCode int64) map[string]any {
	return map[string]any{
		"bin":           "970422",
		"accountNumber": "113366668888",
		"amount":        1000,
		"description":   "HH BDS 1",
		"orderCode":     orderCode,
		"currency":      "VND",
		"paymentLinkId": "abc",
		"status":        "PENDING",
		"checkoutUrl":   "https://pay.example.com/web/abc",
		"qrCode":        "000201010212",
	}
}

// signedCheckout builds a checkout response whose data is signed with key
func signedCheckout(t *testing.T, data map[string]any, key string) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)

	payload, err := decodeSigned(raw)
	require.NoError(t, err)

	body, err := json.Marshal(map[string]any{
		"code":      "00",
		"desc":      "success",
		"data":      json.RawMessage(raw),
		"signature": Sign(payload, key),
	})
	require.NoError(t, err)
	return body
}

// signedWebhook builds a webhook body whose data is signed with key
func signedWebhook(t *testing.T, data map[string]any, key string) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)

	var payload SignaturePayload
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&payload))

	body, err := json.Marshal(map[string]any{
		"code":      "00",
		"desc":      "success",
		"success":   true,
		"data":      json.RawMessage(raw),
		"signature": Sign(payload, key),
	})
	require.NoError(t, err)
	return body
}

func webhookData() map[string]any {
	return map[string]any{
		"orderCode":           123,
		"amount":              3000,
		"description":         "HH BDS 5",
		"accountNumber":       "12345678",
		"reference":           "TF230204212323",
		"transactionDateTime": "2025-03-10 18:25:00",
		"currency":            "VND",
		"paymentLinkId":       "124c33293c43417ab7879e14c8d9eb18",
		"code":                "00",
		"desc":                "Thành công",
		"counterAccountName":  nil,
	}
}

func TestPayOSClient_VerifyWebhook(t *testing.T) {
	client := newTestPayOS("https://gateway.example.com")

	t.Run("Valid", func(t *testing.T) {
		event, err := client.VerifyWebhook(signedWebhook(t, webhookData(), testChecksumKey))
		require.NoError(t, err)
		assert.True(t, event.Paid())
		assert.Equal(t, int64(123), event.Data.OrderCode)
		assert.Equal(t, "TF230204212323", event.Data.Reference)
		assert.Equal(t, time.Date(2025, 3, 10, 18, 25, 0, 0, time.UTC), event.Data.PaidAt())
	})

	t.Run("TamperedOrderCode", func(t *testing.T) {
		body := signedWebhook(t, webhookData(), testChecksumKey)
		tampered := strings.Replace(string(body), `"orderCode":123`, `"orderCode":124`, 1)
		require.NotEqual(t, string(body), tampered)

		_, err := client.VerifyWebhook([]byte(tampered))
		assert.ErrorIs(t, err, ErrWebhookSignatureMismatch)
	})

	t.Run("WrongKey", func(t *testing.T) {
		_, err := client.VerifyWebhook(signedWebhook(t, webhookData(), "other-key"))
		assert.ErrorIs(t, err, ErrWebhookSignatureMismatch)
	})

	t.Run("Malformed", func(t *testing.T) {
		_, err := client.VerifyWebhook([]byte(`{"code":"00"`))
		assert.ErrorIs(t, err, ErrMalformedWebhook)

		_, err = client.VerifyWebhook([]byte(`{"code":"00","data":{"orderCode":1}}`))
		assert.ErrorIs(t, err, ErrMalformedWebhook)
	})
}
