package openid

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Indirect responses longer than this many encoded bytes are delivered via an
// auto-submitting HTML form instead of a Location redirect.
const maxRedirectURLLen = 2047

// Response is an outgoing indirect OpenID message prior to encoding.
type Response struct {
	fields map[string]string
	// signedOrder lists the field names covered by the signature, in the
	// order they were added; the signature base string depends on it.
	signedOrder []string
	returnTo    string
}

// NewPositiveAssertion builds an id_res response for the resolved identity.
// The nonce binds the assertion to its issue instant.
func NewPositiveAssertion(opEndpoint, claimedID, identity, returnTo string, now time.Time) (*Response, error) {
	nonce, err := responseNonce(now)
	if err != nil {
		return nil, err
	}
	r := &Response{
		fields:   map[string]string{"ns": NS, "mode": ModeIDRes},
		returnTo: returnTo,
	}
	r.addSigned("op_endpoint", opEndpoint)
	r.addSigned("return_to", returnTo)
	r.addSigned("response_nonce", nonce)
	if claimedID != "" {
		r.addSigned("claimed_id", claimedID)
	}
	r.addSigned("identity", identity)
	return r, nil
}

// NewNegativeAssertion answers an unauthorized checkid request: cancel for
// setup mode, setup_needed for immediate mode.
func NewNegativeAssertion(returnTo string, immediate bool) *Response {
	mode := ModeCancel
	if immediate {
		mode = ModeSetupNeeded
	}
	return &Response{
		fields:   map[string]string{"ns": NS, "mode": mode},
		returnTo: returnTo,
	}
}

func (r *Response) addSigned(key, value string) {
	r.fields[key] = value
	r.signedOrder = append(r.signedOrder, key)
}

// AddExtension attaches an extension namespace and its aliased fields to the
// signed payload (e.g. alias "sreg" with {"email": ...}).
func (r *Response) AddExtension(alias, nsURI string, fields map[string]string) {
	r.fields["ns."+alias] = nsURI
	r.signedOrder = append(r.signedOrder, "ns."+alias)
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		r.addSigned(alias+"."+k, fields[k])
	}
}

// Sign seals the response with the association. invalidateHandle is echoed
// when the relying party presented a handle the provider no longer knows.
// "signed" itself is part of the signature base string, so its value is fixed
// before the MAC is computed.
func (r *Response) Sign(assoc Association, invalidateHandle string) {
	r.fields["assoc_handle"] = assoc.Handle
	order := append([]string{"ns", "mode"}, r.signedOrder...)
	order = append(order, "assoc_handle")
	if invalidateHandle != "" {
		r.fields["invalidate_handle"] = invalidateHandle
		order = append(order, "invalidate_handle")
	}
	order = append(order, "signed")
	r.fields["signed"] = strings.Join(order, ",")
	r.fields["sig"] = assoc.Sign(r.fields, order)
}

// Fields exposes the encoded field set with the openid. prefix applied.
func (r *Response) Fields() map[string]string {
	out := make(map[string]string, len(r.fields))
	for k, v := range r.fields {
		out["openid."+k] = v
	}
	return out
}

// RedirectURL renders the indirect encoding as a return_to redirect target.
func (r *Response) RedirectURL() (string, error) {
	u, err := url.Parse(r.returnTo)
	if err != nil {
		return "", fmt.Errorf("parse return_to: %w", err)
	}
	q := u.Query()
	for k, v := range r.Fields() {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// NeedsFormPost reports whether the encoded redirect exceeds the safe URL
// length and must be delivered as a self-submitting form.
func (r *Response) NeedsFormPost() (bool, error) {
	target, err := r.RedirectURL()
	if err != nil {
		return false, err
	}
	return len(target) > maxRedirectURLLen, nil
}

// ReturnTo is the relying party endpoint this response is addressed to.
func (r *Response) ReturnTo() string { return r.returnTo }

// responseNonce is the issue instant plus random salt, per the 2.0 nonce
// format.
func responseNonce(now time.Time) (string, error) {
	salt := make([]byte, 4)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate nonce salt: %w", err)
	}
	return now.UTC().Format("2006-01-02T15:04:05Z") + base64.RawURLEncoding.EncodeToString(salt), nil
}
