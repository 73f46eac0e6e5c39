package security

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ojarva-net/sso-frontend/internal/domain"
	"github.com/ojarva-net/sso-frontend/internal/ports"
)

func TestTicketRoundTrip(t *testing.T) {
	t.Parallel()

	signer, err := NewEphemeralTicketSigner("test-key-1")
	if err != nil {
		t.Fatalf("create signer: %v", err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	ticket, err := signer.Issue(ports.TicketClaims{
		Username:  "alice",
		PublicID:  "browser-1",
		AuthLevel: domain.LevelBasic,
		IssuedAt:  now,
		ExpiresAt: now.Add(2 * time.Minute),
	})
	if err != nil {
		t.Fatalf("issue ticket: %v", err)
	}

	claims, err := signer.Verify(ticket)
	if err != nil {
		t.Fatalf("verify ticket: %v", err)
	}
	if claims.Username != "alice" || claims.PublicID != "browser-1" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.AuthLevel != domain.LevelBasic {
		t.Fatalf("auth level lost: %v", claims.AuthLevel)
	}
	if !claims.ExpiresAt.Equal(now.Add(2 * time.Minute)) {
		t.Fatalf("expiry mangled: %v", claims.ExpiresAt)
	}
}

func TestTicketExpiry(t *testing.T) {
	t.Parallel()

	signer, err := NewEphemeralTicketSigner("")
	if err != nil {
		t.Fatalf("create signer: %v", err)
	}

	// Expired beyond the verification leeway.
	past := time.Now().UTC().Add(-time.Hour)
	ticket, err := signer.Issue(ports.TicketClaims{
		Username:  "alice",
		PublicID:  "browser-1",
		AuthLevel: domain.LevelBasic,
		IssuedAt:  past,
		ExpiresAt: past.Add(2 * time.Minute),
	})
	if err != nil {
		t.Fatalf("issue ticket: %v", err)
	}
	if _, err := signer.Verify(ticket); !errors.Is(err, domain.ErrTicketExpired) {
		t.Fatalf("expected ErrTicketExpired, got %v", err)
	}
}

func TestTicketRejectsForeignSignature(t *testing.T) {
	t.Parallel()

	signer, err := NewEphemeralTicketSigner("key-a")
	if err != nil {
		t.Fatalf("create signer: %v", err)
	}
	other, err := NewEphemeralTicketSigner("key-b")
	if err != nil {
		t.Fatalf("create other signer: %v", err)
	}

	now := time.Now().UTC()
	ticket, err := other.Issue(ports.TicketClaims{
		Username:  "mallory",
		PublicID:  "browser-x",
		AuthLevel: domain.LevelStrong,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("issue ticket: %v", err)
	}
	if _, err := signer.Verify(ticket); err == nil {
		t.Fatal("ticket signed by a foreign key must not verify")
	}
}

func TestVerificationKeysExposePEM(t *testing.T) {
	t.Parallel()

	signer, err := NewEphemeralTicketSigner("test-key-1")
	if err != nil {
		t.Fatalf("create signer: %v", err)
	}
	keys := signer.VerificationKeys()
	pemBlock, ok := keys["test-key-1"]
	if !ok {
		t.Fatalf("kid missing from keys: %v", keys)
	}
	if !strings.Contains(pemBlock, "BEGIN PUBLIC KEY") {
		t.Fatalf("expected PKIX PEM, got %q", pemBlock)
	}
}
