package service

import (
	"errors"
	"testing"
	"time"
)

func TestMerchantTokenRoundTrip(t *testing.T) {
	token, expiresAt, err := GenerateMerchantToken("secret", "M1001", 2, time.Now())
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if time.Until(expiresAt) <= time.Hour {
		t.Fatalf("unexpected expiry: %v", expiresAt)
	}
	claims, err := ParseMerchantToken("secret", token)
	if err != nil || claims.MerchantNo != "M1001" {
		t.Fatalf("parse failed: %+v %v", claims, err)
	}
	if _, err := ParseMerchantToken("other", token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for wrong secret, got %v", err)
	}

	expired, _, err := GenerateMerchantToken("secret", "M1001", 1, time.Now().Add(-2*time.Hour))
	if err != nil {
		t.Fatalf("generate expired failed: %v", err)
	}
	if _, err := ParseMerchantToken("secret", expired); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid for expired token, got %v", err)
	}
}
