package services

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name    string
		payload SignaturePayload
		want    string
	}{
		{
			name:    "SortsKeys",
			payload: SignaturePayload{"orderCode": int64(123), "amount": 1000, "description": "HH BDS 1"},
			want:    "amount=1000&description=HH BDS 1&orderCode=123",
		},
		{
			name:    "NullAndUndefinedAreEmpty",
			payload: SignaturePayload{"a": nil, "b": "null", "c": "undefined", "d": "x"},
			want:    "a=&b=&c=&d=x",
		},
		{
			name: "ArrayElementsHaveSortedKeys",
			payload: SignaturePayload{
				"items": []map[string]any{{"quantity": 1, "name": "apartment", "price": 5}},
			},
			want: `items=[{"name":"apartment","price":5,"quantity":1}]`,
		},
		{
			name:    "JSONNumbersKeepTheirText",
			payload: SignaturePayload{"amount": json.Number("250000"), "ok": true},
			want:    "amount=250000&ok=true",
		},
		{
			name:    "HTMLIsNotEscapedInArrays",
			payload: SignaturePayload{"x": []any{"a&b<c>"}},
			want:    `x=["a&b<c>"]`,
		},
		{
			name:    "DecimalUsesStringForm",
			payload: SignaturePayload{"amount": decimal.RequireFromString("12.50")},
			want:    "amount=12.5",
		},
		{
			name:    "Empty",
			payload: SignaturePayload{},
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Canonicalize(tt.payload))
		})
	}
}

func TestSign(t *testing.T) {
	payload := SignaturePayload{
		"amount":      2000,
		"cancelUrl":   "https://example.com/cancel",
		"description": "HH BDS 9",
		"orderCode":   int64(42),
		"returnUrl":   "https://example.com/return",
	}
	secret := "checksum-key"

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("amount=2000&cancelUrl=https://example.com/cancel&description=HH BDS 9&orderCode=42&returnUrl=https://example.com/return"))
	want := hex.EncodeToString(mac.Sum(nil))

	assert.Equal(t, want, Sign(payload, secret))
}

func TestVerifySignature(t *testing.T) {
	payloads := []SignaturePayload{
		{"orderCode": int64(1), "amount": 10},
		{"data": nil, "list": []any{map[string]any{"b": 2, "a": 1}}},
		{"text": "xin chào", "n": json.Number("7")},
	}
	secrets := []string{"k", "a much longer checksum key with spaces"}

	for _, p := range payloads {
		for _, k := range secrets {
			sig := Sign(p, k)
			require.True(t, VerifySignature(p, k, sig))

			// Flipping any character of the signature must break verification
			for i := range sig {
				flipped := []byte(sig)
				if flipped[i] == '0' {
					flipped[i] = '1'
				} else {
					flipped[i] = '0'
				}
				assert.False(t, VerifySignature(p, k, string(flipped)), "position %d", i)
			}

			assert.False(t, VerifySignature(p, k+"x", sig))
		}
	}

	t.Run("RejectsMalformedSignature", func(t *testing.T) {
		p := SignaturePayload{"a": 1}
		assert.False(t, VerifySignature(p, "k", "not-hex"))
		assert.False(t, VerifySignature(p, "k", ""))
		assert.False(t, VerifySignature(p, "k", Sign(p, "k")[:10]))
	})

	t.Run("TamperedPayloadFails", func(t *testing.T) {
		p := SignaturePayload{"orderCode": int64(100), "amount": 5}
		sig := Sign(p, "k")
		p["orderCode"] = int64(101)
		assert.False(t, VerifySignature(p, "k", sig))
	})
}
