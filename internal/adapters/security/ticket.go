package security

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ojarva-net/sso-frontend/internal/domain"
	"github.com/ojarva-net/sso-frontend/internal/ports"
)

// TicketSigner implements RS256 signing of the cross-service authentication
// ticket. Keys are held at adapter level so the application layer stays
// crypto-library agnostic.
type TicketSigner struct {
	kid        string
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
}

// NewTicketSigner builds a signer from configured PEM keys.
func NewTicketSigner(kid, privateKeyPEM, publicKeyPEM string) (*TicketSigner, error) {
	if kid == "" {
		return nil, errors.New("ticket key id (kid) is required")
	}
	if privateKeyPEM == "" || publicKeyPEM == "" {
		return nil, errors.New("ticket private/public keys are required")
	}

	priv, err := parseRSAPrivate(privateKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	pub, err := parseRSAPublic(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return &TicketSigner{
		kid:        kid,
		privateKey: priv,
		publicKey:  pub,
	}, nil
}

// NewEphemeralTicketSigner creates an in-memory keypair for local/dev use.
// This exists to unblock runtime startup when static keys are intentionally absent.
func NewEphemeralTicketSigner(kid string) (*TicketSigner, error) {
	if kid == "" {
		kid = "ephemeral-key-1"
	}
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	return &TicketSigner{
		kid:        kid,
		privateKey: privateKey,
		publicKey:  &privateKey.PublicKey,
	}, nil
}

type ticketJWTClaims struct {
	Username  string `json:"username"`
	PublicID  string `json:"browser"`
	AuthLevel int    `json:"auth_level"`
	jwt.RegisteredClaims
}

func (s *TicketSigner) Issue(claims ports.TicketClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, ticketJWTClaims{
		Username:  claims.Username,
		PublicID:  claims.PublicID,
		AuthLevel: int(claims.AuthLevel),
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(claims.IssuedAt),
			ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
		},
	})
	token.Header["kid"] = s.kid
	return token.SignedString(s.privateKey)
}

func (s *TicketSigner) Verify(raw string) (ports.TicketClaims, error) {
	parsed, err := jwt.ParseWithClaims(raw, &ticketJWTClaims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %s", token.Method.Alg())
		}
		return s.publicKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}), jwt.WithLeeway(30*time.Second))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ports.TicketClaims{}, domain.ErrTicketExpired
		}
		return ports.TicketClaims{}, err
	}
	claims, ok := parsed.Claims.(*ticketJWTClaims)
	if !ok || !parsed.Valid {
		return ports.TicketClaims{}, errors.New("invalid ticket claims")
	}

	return ports.TicketClaims{
		Username:  claims.Username,
		PublicID:  claims.PublicID,
		AuthLevel: domain.AuthLevel(claims.AuthLevel),
		IssuedAt:  claims.IssuedAt.Time.UTC(),
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}, nil
}

// VerificationKeys exposes the public key PEM by key id, for cooperating
// services that validate tickets offline.
func (s *TicketSigner) VerificationKeys() map[string]string {
	der, err := x509.MarshalPKIXPublicKey(s.publicKey)
	if err != nil {
		return map[string]string{}
	}
	block := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return map[string]string{s.kid: string(block)}
}

func parseRSAPrivate(raw string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(raw))
	if block == nil {
		return nil, errors.New("invalid private PEM")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	keyAny, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := keyAny.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}
	return key, nil
}

func parseRSAPublic(raw string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(raw))
	if block == nil {
		return nil, errors.New("invalid public PEM")
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}
	keyAny, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := keyAny.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}
	return key, nil
}
