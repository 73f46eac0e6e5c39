package openid

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"hash"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	AssocHMACSHA1   = "HMAC-SHA1"
	AssocHMACSHA256 = "HMAC-SHA256"

	SessionNoEncryption = "no-encryption"

	// DefaultAssociationTTL matches the lifetime handed out by the associate
	// endpoint and kept by the association store.
	DefaultAssociationTTL = 14 * 24 * time.Hour
)

// Association is one OpenID signing association. Private associations sign
// unsolicited and fallback responses and are never handed to relying parties.
type Association struct {
	Handle    string    `json:"handle"`
	Secret    []byte    `json:"secret"`
	AssocType string    `json:"assoc_type"`
	Private   bool      `json:"private"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewAssociation mints an association of the given type with a fresh random
// secret. SHA-256 secrets are 32 bytes, SHA-1 secrets 20 bytes.
func NewAssociation(assocType string, private bool, now time.Time, ttl time.Duration) (Association, error) {
	var size int
	switch assocType {
	case AssocHMACSHA1:
		size = sha1.Size
	case AssocHMACSHA256:
		size = sha256.Size
	default:
		return Association{}, fmt.Errorf("unsupported association type %q", assocType)
	}
	secret := make([]byte, size)
	if _, err := rand.Read(secret); err != nil {
		return Association{}, fmt.Errorf("generate association secret: %w", err)
	}
	handle := "{" + assocType + "}{" + uuid.NewString() + "}"
	if private {
		handle = "{private}" + handle
	}
	return Association{
		Handle:    handle,
		Secret:    secret,
		AssocType: assocType,
		Private:   private,
		ExpiresAt: now.Add(ttl),
	}, nil
}

func (a Association) macer() func() hash.Hash {
	if a.AssocType == AssocHMACSHA1 {
		return sha1.New
	}
	return sha256.New
}

// Sign computes the base64 signature over the listed fields in list order,
// using the OpenID key-value signature base string.
func (a Association) Sign(fields map[string]string, signed []string) string {
	var b strings.Builder
	for _, key := range signed {
		fmt.Fprintf(&b, "%s:%s\n", key, fields[key])
	}
	mac := hmac.New(a.macer(), a.Secret)
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature in constant time.
func (a Association) Verify(fields map[string]string, signed []string, sig string) bool {
	expected := a.Sign(fields, signed)
	return hmac.Equal([]byte(expected), []byte(sig))
}

// HandleAssociate answers an associate request. Only the no-encryption
// session type is served, so plaintext secrets travel exclusively over the
// TLS the deployment already requires; Diffie-Hellman session types get the
// spec's unsupported-type error carrying the supported fallback.
func HandleAssociate(req *Message, now time.Time, ttl time.Duration) (map[string]string, *Association, error) {
	sessionType := req.Get("session_type")
	assocType := req.Get("assoc_type")

	if sessionType != SessionNoEncryption || (assocType != AssocHMACSHA1 && assocType != AssocHMACSHA256) {
		return map[string]string{
			"ns":           NS,
			"error":        "association session type not supported",
			"error_code":   "unsupported-type",
			"session_type": SessionNoEncryption,
			"assoc_type":   AssocHMACSHA256,
		}, nil, nil
	}

	assoc, err := NewAssociation(assocType, false, now, ttl)
	if err != nil {
		return nil, nil, err
	}
	return map[string]string{
		"ns":           NS,
		"assoc_handle": assoc.Handle,
		"session_type": sessionType,
		"assoc_type":   assocType,
		"expires_in":   fmt.Sprintf("%d", int(ttl.Seconds())),
		"mac_key":      base64.StdEncoding.EncodeToString(assoc.Secret),
	}, &assoc, nil
}
