package deliverytoken

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mateovidal/surtido-backend/pkg/config"
)

func testConfig() config.DeliveryTokenConfig {
	return config.DeliveryTokenConfig{
		Secret: "test-secret",
		Issuer: "surtido",
		TTL:    72 * time.Hour,
	}
}

func TestMintAndParseRoundTrip(t *testing.T) {
	cfg := testConfig()
	orderID := uuid.New()
	wholesalerID := uuid.New()

	signed, err := Mint(cfg, time.Now(), orderID, wholesalerID)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	claims, err := Parse(cfg, signed)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.OrderID != orderID {
		t.Fatalf("expected order id %s, got %s", orderID, claims.OrderID)
	}
	if claims.WholesalerID != wholesalerID {
		t.Fatalf("expected wholesaler id %s, got %s", wholesalerID, claims.WholesalerID)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("unexpected issuer %q", claims.Issuer)
	}
}

func TestParseRejectsExpiredToken(t *testing.T) {
	cfg := testConfig()
	issuedAt := time.Now().Add(-cfg.TTL - time.Hour)

	signed, err := Mint(cfg, issuedAt, uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	if _, err := Parse(cfg, signed); err == nil {
		t.Fatal("expected expired token to fail validation")
	}
}

func TestParseRejectsWrongSecret(t *testing.T) {
	cfg := testConfig()
	signed, err := Mint(cfg, time.Now(), uuid.New(), uuid.New())
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}

	other := cfg
	other.Secret = "different-secret"
	if _, err := Parse(other, signed); err == nil {
		t.Fatal("expected signature mismatch to fail validation")
	}
}

func TestMintValidatesInputs(t *testing.T) {
	cfg := testConfig()

	if _, err := Mint(config.DeliveryTokenConfig{Issuer: "surtido", TTL: time.Hour}, time.Now(), uuid.New(), uuid.New()); err == nil {
		t.Fatal("expected missing secret to error")
	}
	if _, err := Mint(cfg, time.Now(), uuid.Nil, uuid.New()); err == nil {
		t.Fatal("expected nil order id to error")
	}
	if _, err := Mint(cfg, time.Now(), uuid.New(), uuid.Nil); err == nil {
		t.Fatal("expected nil wholesaler id to error")
	}
}
