package utils

import (
	"encoding/base64"
	"reflect"
	"strings"
	"testing"
)

func TestCursorRoundTrip(t *testing.T) {
	keys := []map[string]any{
		{"tenantId": "acme", "invoiceId": "F001-00000123"},
		{"tenantId": "acme", "createdAt": "2024-05-01T10:00:00Z", "seq": float64(42)},
		{"pk": "tenant#acme", "sk": "inv#1", "nested": map[string]any{"a": "b"}},
	}
	for _, k := range keys {
		enc := EncodeCursor(k)
		if enc == nil {
			t.Fatalf("EncodeCursor(%v) = nil", k)
		}
		got := DecodeCursor(*enc)
		if !reflect.DeepEqual(got, k) {
			t.Errorf("DecodeCursor(EncodeCursor(%v)) = %v", k, got)
		}
	}
}

func TestEncodeCursorNoMorePages(t *testing.T) {
	if got := EncodeCursor(nil); got != nil {
		t.Errorf("EncodeCursor(nil) = %q, want nil", *got)
	}
	if got := EncodeCursor(map[string]any{}); got != nil {
		t.Errorf("EncodeCursor(empty) = %q, want nil", *got)
	}
}

func TestDecodeCursorMalformed(t *testing.T) {
	inputs := []string{
		"",
		"   ",
		"not base64 !!!",
		base64.StdEncoding.EncodeToString([]byte("not json")),
		base64.StdEncoding.EncodeToString([]byte(`["array"]`)),
		base64.StdEncoding.EncodeToString([]byte(`{}`)),
		base64.StdEncoding.EncodeToString([]byte(`null`)),
		"%%%%",
	}
	for _, in := range inputs {
		if got := DecodeCursor(in); got != nil {
			t.Errorf("DecodeCursor(%q) = %v, want nil", in, got)
		}
	}
}

func TestDecodeCursorToleratesUnescapedPlus(t *testing.T) {
	// base64 of this payload contains '+', which arrives as ' ' in an unescaped query string.
	key := map[string]any{"k": "~~~"}
	enc := EncodeCursor(key)
	if enc == nil {
		t.Fatal("EncodeCursor returned nil")
	}
	if !strings.Contains(*enc, "+") {
		t.Fatalf("EncodeCursor(%v) = %q, expected a '+' in the encoding", key, *enc)
	}
	mangled := strings.ReplaceAll(*enc, "+", " ")
	if got := DecodeCursor(mangled); !reflect.DeepEqual(got, key) {
		t.Errorf("DecodeCursor(%q) = %v, want %v", mangled, got, key)
	}
}
