package paystack

import (
	"testing"
)

func TestWebhookVerifierAcceptsValidSignature(t *testing.T) {
	v := NewWebhookVerifier("sk_test_secret")
	body := []byte(`{"event":"charge.success","data":{"reference":"TXN-1735689600-9f3ab21c","amount":500000}}`)

	sig := v.Sign(body)
	if !v.Verify(body, sig) {
		t.Fatal("valid signature rejected")
	}
}

func TestWebhookVerifierRejectsBadInput(t *testing.T) {
	v := NewWebhookVerifier("sk_test_secret")
	body := []byte(`{"event":"charge.success"}`)
	goodSig := v.Sign(body)

	cases := []struct {
		name string
		body []byte
		sig  string
	}{
		{"missing signature", body, ""},
		{"non-hex signature", body, "not-hex!!"},
		{"truncated signature", body, goodSig[:len(goodSig)-2]},
		{"wrong secret", body, NewWebhookVerifier("other_secret").Sign(body)},
		{"tampered payload", []byte(`{"event":"charge.success","data":{"amount":999999999}}`), goodSig},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if v.Verify(tc.body, tc.sig) {
				t.Errorf("Verify accepted %s", tc.name)
			}
		})
	}
}

// A signature computed over one payload must not validate a different
// payload even with the same secret; the HMAC covers the raw bytes exactly.
func TestWebhookVerifierBindsSignatureToPayload(t *testing.T) {
	v := NewWebhookVerifier("sk_test_secret")
	a := []byte(`{"event":"transfer.success","data":{"reference":"TRF-1735689600-4d01be77"}}`)
	b := []byte(`{"event":"transfer.success","data":{"reference":"TRF-1735689600-deadbeef"}}`)

	if v.Verify(b, v.Sign(a)) {
		t.Fatal("signature for payload A accepted for payload B")
	}
}
