package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mercatohq/mercato-backend/pkg/config"
)

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:            "test-secret",
		Issuer:            "mercato-test",
		ExpirationMinutes: 30,
	}
}

func TestMintAndParseAccessToken(t *testing.T) {
	t.Parallel()

	cfg := testJWTConfig()
	actorID := uuid.New()

	signed, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{ActorID: actorID, Kind: ActorCustomer})
	if err != nil {
		t.Fatalf("MintAccessToken: %v", err)
	}

	claims, err := ParseAccessToken(cfg, signed)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if claims.ActorID != actorID {
		t.Fatalf("expected actor id %s, got %s", actorID, claims.ActorID)
	}
	if claims.Kind != ActorCustomer {
		t.Fatalf("expected customer kind, got %s", claims.Kind)
	}
}

func TestMintAccessTokenRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	cfg := testJWTConfig()

	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{Kind: ActorStaff}); err == nil {
		t.Fatal("expected error for missing actor id")
	}
	if _, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{ActorID: uuid.New(), Kind: ActorKind("robot")}); err == nil {
		t.Fatal("expected error for invalid kind")
	}
}

func TestParseAccessTokenRejectsExpired(t *testing.T) {
	t.Parallel()

	cfg := testJWTConfig()
	signed, err := MintAccessToken(cfg, time.Now().Add(-2*time.Hour), AccessTokenPayload{ActorID: uuid.New(), Kind: ActorStaff})
	if err != nil {
		t.Fatalf("MintAccessToken: %v", err)
	}
	if _, err := ParseAccessToken(cfg, signed); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestParseAccessTokenRejectsWrongIssuer(t *testing.T) {
	t.Parallel()

	cfg := testJWTConfig()
	signed, err := MintAccessToken(cfg, time.Now(), AccessTokenPayload{ActorID: uuid.New(), Kind: ActorStaff})
	if err != nil {
		t.Fatalf("MintAccessToken: %v", err)
	}

	other := cfg
	other.Issuer = "someone-else"
	if _, err := ParseAccessToken(other, signed); err == nil {
		t.Fatal("expected issuer mismatch to be rejected")
	}
}
