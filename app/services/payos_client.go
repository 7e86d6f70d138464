package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/amirphl/estate-settlement/utils"
	"github.com/shopspring/decimal"
)

var (
	// ErrGatewayRejected is returned when the gateway answers with a non-success code
	ErrGatewayRejected = errors.New("payment gateway rejected the request")
	// ErrGatewayUnavailable is returned when the gateway cannot be reached or answers garbage
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	// ErrWebhookSignatureMismatch is returned when a webhook signature does not verify
	ErrWebhookSignatureMismatch = errors.New("webhook signature mismatch")
	// ErrMalformedWebhook is returned when a webhook body cannot be decoded
	ErrMalformedWebhook = errors.New("malformed webhook payload")
)

// gatewaySuccessCode is the code the gateway uses for success, both in responses and webhooks
const gatewaySuccessCode = "00"

// PaymentGateway issues checkout links and authenticates webhooks
type PaymentGateway interface {
	BuildPaymentRequest(propertyID uint, orderCode int64, amount decimal.Decimal, returnURL, cancelURL string) (*PaymentRequest, error)
	RequestCheckout(ctx context.Context, req *PaymentRequest) (*CheckoutResult, error)
	VerifyWebhook(raw []byte) (*WebhookEvent, error)
	DefaultReturnURL() string
	DefaultCancelURL() string
}

// PaymentRequest is the signed body sent to the gateway
type PaymentRequest struct {
	OrderCode   int64  `json:"orderCode"`
	Amount      int64  `json:"amount"`
	Description string `json:"description"`
	ReturnURL   string `json:"returnUrl"`
	CancelURL   string `json:"cancelUrl"`
	Signature   string `json:"signature"`
}

// signedFields returns the exact set of fields covered by the request signature
func (r *PaymentRequest) signedFields() SignaturePayload {
	return SignaturePayload{
		"amount":      r.Amount,
		"cancelUrl":   r.CancelURL,
		"description": r.Description,
		"orderCode":   r.OrderCode,
		"returnUrl":   r.ReturnURL,
	}
}

// CheckoutResult holds the artifacts a payer needs to complete a payment
type CheckoutResult struct {
	CheckoutURL   string `json:"checkoutUrl"`
	QRCode        string `json:"qrCode"`
	OrderCode     int64  `json:"orderCode"`
	PaymentLinkID string `json:"paymentLinkId"`
}

// GatewayError carries the gateway's own failure code
type GatewayError struct {
	StatusCode int
	Code       string
	Desc       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payos: http %d code %q: %s", e.StatusCode, e.Code, e.Desc)
}

func (e *GatewayError) Unwrap() error {
	return ErrGatewayRejected
}

// WebhookEvent is a verified payment notification
type WebhookEvent struct {
	Code      string
	Desc      string
	Success   bool
	Data      WebhookData
	Signature string
}

// Paid reports whether the gateway marked the payment as successful
func (e *WebhookEvent) Paid() bool {
	return e.Code == gatewaySuccessCode && e.Data.Code == gatewaySuccessCode
}

// WebhookData is the signed part of a webhook
type WebhookData struct {
	OrderCode              int64  `json:"orderCode"`
	Amount                 int64  `json:"amount"`
	Description            string `json:"description"`
	AccountNumber          string `json:"accountNumber"`
	Reference              string `json:"reference"`
	TransactionDateTime    string `json:"transactionDateTime"`
	Currency               string `json:"currency"`
	PaymentLinkID          string `json:"paymentLinkId"`
	Code                   string `json:"code"`
	Desc                   string `json:"desc"`
	CounterAccountBankID   string `json:"counterAccountBankId"`
	CounterAccountBankName string `json:"counterAccountBankName"`
	CounterAccountName     string `json:"counterAccountName"`
	CounterAccountNumber   string `json:"counterAccountNumber"`
	VirtualAccountName     string `json:"virtualAccountName"`
	VirtualAccountNumber   string `json:"virtualAccountNumber"`
}

// PaidAt parses the gateway transaction time, falling back to now
func (d WebhookData) PaidAt() time.Time {
	if t, err := time.ParseInLocation("2006-01-02 15:04:05", d.TransactionDateTime, time.UTC); err == nil {
		return t
	}
	return utils.UTCNow()
}

type PayOSClient struct {
	BaseURL     string
	ClientID    string
	APIKey      string
	ChecksumKey string
	ReturnURL   string
	CancelURL   string
	HTTPClient  *http.Client
}

func NewPayOSClient(baseURL, clientID, apiKey, checksumKey, returnURL, cancelURL string, timeout time.Duration) *PayOSClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &PayOSClient{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		ClientID:    clientID,
		APIKey:      apiKey,
		ChecksumKey: checksumKey,
		ReturnURL:   returnURL,
		CancelURL:   cancelURL,
		HTTPClient:  &http.Client{Timeout: timeout},
	}
}

func (c *PayOSClient) DefaultReturnURL() string { return c.ReturnURL }
func (c *PayOSClient) DefaultCancelURL() string { return c.CancelURL }

// BuildPaymentRequest assembles and signs a payment request
func (c *PayOSClient) BuildPaymentRequest(propertyID uint, orderCode int64, amount decimal.Decimal, returnURL, cancelURL string) (*PaymentRequest, error) {
	if orderCode <= 0 {
		return nil, errors.New("payos: order code must be positive")
	}
	whole := amount.Round(0)
	if !whole.IsPositive() {
		return nil, errors.New("payos: amount must be positive")
	}
	if returnURL == "" {
		returnURL = c.ReturnURL
	}
	if cancelURL == "" {
		cancelURL = c.CancelURL
	}

	req := &PaymentRequest{
		OrderCode:   orderCode,
		Amount:      whole.IntPart(),
		Description: utils.TruncateString(fmt.Sprintf("HH BDS %d", propertyID), utils.PaymentDescriptionMaxLen),
		ReturnURL:   returnURL,
		CancelURL:   cancelURL,
	}
	req.Signature = Sign(req.signedFields(), c.ChecksumKey)
	return req, nil
}

type payosEnvelope struct {
	Code      string          `json:"code"`
	Desc      string          `json:"desc"`
	Data      json.RawMessage `json:"data"`
	Signature string          `json:"signature"`
}

type payosCheckoutData struct {
	OrderCode     int64  `json:"orderCode"`
	CheckoutURL   string `json:"checkoutUrl"`
	QRCode        string `json:"qrCode"`
	PaymentLinkID string `json:"paymentLinkId"`
}

// RequestCheckout posts a signed payment request; any non-success answer is a GatewayError
func (c *PayOSClient) RequestCheckout(ctx context.Context, in *PaymentRequest) (*CheckoutResult, error) {
	if in == nil || in.Signature == "" {
		return nil, errors.New("payos: unsigned payment request")
	}

	var env payosEnvelope
	status, err := c.postJSON(ctx, "/v2/payment-requests", in, &env)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if status != http.StatusOK || env.Code != gatewaySuccessCode {
		return nil, &GatewayError{StatusCode: status, Code: env.Code, Desc: env.Desc}
	}

	signed, err := decodeSigned(env.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode checkout data: %v", ErrGatewayUnavailable, err)
	}
	if !VerifySignature(signed, c.ChecksumKey, env.Signature) {
		return nil, &GatewayError{StatusCode: status, Code: env.Code, Desc: "checkout signature mismatch"}
	}

	var data payosCheckoutData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: decode checkout data: %v", ErrGatewayUnavailable, err)
	}
	if data.CheckoutURL == "" {
		return nil, &GatewayError{StatusCode: status, Code: env.Code, Desc: "empty checkout url"}
	}

	orderCode := data.OrderCode
	if orderCode == 0 {
		orderCode = in.OrderCode
	}
	return &CheckoutResult{
		CheckoutURL:   data.CheckoutURL,
		QRCode:        data.QRCode,
		OrderCode:     orderCode,
		PaymentLinkID: data.PaymentLinkID,
	}, nil
}

type payosWebhookBody struct {
	Code      string          `json:"code"`
	Desc      string          `json:"desc"`
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Signature string          `json:"signature"`
}

// VerifyWebhook authenticates a raw webhook body against the checksum key.
// Nothing in the body may be trusted before this returns nil error.
func (c *PayOSClient) VerifyWebhook(raw []byte) (*WebhookEvent, error) {
	var body payosWebhookBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedWebhook, err)
	}
	if len(body.Data) == 0 || body.Signature == "" {
		return nil, fmt.Errorf("%w: missing data or signature", ErrMalformedWebhook)
	}

	signed, err := decodeSigned(body.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedWebhook, err)
	}

	if !VerifySignature(signed, c.ChecksumKey, body.Signature) {
		return nil, ErrWebhookSignatureMismatch
	}

	var data WebhookData
	if err := json.Unmarshal(body.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedWebhook, err)
	}

	return &WebhookEvent{
		Code:      body.Code,
		Desc:      body.Desc,
		Success:   body.Success,
		Data:      data,
		Signature: body.Signature,
	}, nil
}

// decodeSigned reads a signed data object keeping numbers as they were sent
func decodeSigned(raw json.RawMessage) (SignaturePayload, error) {
	if len(raw) == 0 {
		return nil, errors.New("empty data")
	}
	var signed SignaturePayload
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&signed); err != nil {
		return nil, err
	}
	return signed, nil
}

func (c *PayOSClient) postJSON(ctx context.Context, path string, payload any, out any) (int, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-client-id", c.ClientID)
	req.Header.Set("x-api-key", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, err
	}
	if len(body) > 0 && out != nil {
		if err := json.Unmarshal(body, out); err != nil && resp.StatusCode == http.StatusOK {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
