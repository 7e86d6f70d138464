package services

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

// SignaturePayload is a flat gateway payload keyed by field name
type SignaturePayload map[string]any

// Canonicalize renders payload as key=value pairs joined by '&' in ascending key order.
// Nil values, "null" and "undefined" become the empty string. Arrays are JSON encoded
// with the keys of every element sorted.
func Canonicalize(payload SignaturePayload) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(canonicalValue(payload[k]))
	}
	return sb.String()
}

// Sign computes the hex encoded HMAC-SHA256 of the canonical payload
func Sign(payload SignaturePayload, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(Canonicalize(payload)))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature reports whether signature matches payload under secret, in constant time
func VerifySignature(payload SignaturePayload, secret, signature string) bool {
	given, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(given) != sha256.Size {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(Canonicalize(payload)))
	return hmac.Equal(mac.Sum(nil), given)
}

func canonicalValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		if val == "null" || val == "undefined" {
			return ""
		}
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case uint:
		return strconv.FormatUint(uint64(val), 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case fmt.Stringer:
		return val.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return ""
		}
		items := make([]any, rv.Len())
		for i := range items {
			items[i] = sortedElement(rv.Index(i).Interface())
		}
		return marshalCanonical(items)
	case reflect.Map, reflect.Struct:
		return marshalCanonical(sortedElement(v))
	case reflect.Pointer:
		if rv.IsNil() {
			return ""
		}
		return canonicalValue(rv.Elem().Interface())
	}
	return fmt.Sprint(v)
}

// sortedElement normalizes an array element to a map so encoding/json emits sorted keys
func sortedElement(v any) any {
	switch v.(type) {
	case map[string]any, string, bool, nil, json.Number, float64, int, int64:
		return v
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var generic any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return v
	}
	return generic
}

func marshalCanonical(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Sprint(v)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}
