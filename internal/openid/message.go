// Package openid implements the OpenID 2.0 message surface this provider
// speaks: checkid request decoding, association management, assertion
// signing, direct (key-value) and indirect (redirect/form) response
// encodings, and the XRDS discovery documents. Only the pieces the provider
// side needs are implemented; consumer-side discovery lives with the
// trust-root collaborator.
package openid

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

const (
	NS     = "http://specs.openid.net/auth/2.0"
	NSSReg = "http://openid.net/extensions/sreg/1.1"
	NSAX   = "http://openid.net/srv/ax/1.0"

	// Discovery service types for the XRDS documents.
	TypeServer   = "http://specs.openid.net/auth/2.0/server"
	TypeSignon   = "http://specs.openid.net/auth/2.0/signon"
	XRDSMimeType = "application/xrds+xml"

	ModeCheckIDSetup      = "checkid_setup"
	ModeCheckIDImmediate  = "checkid_immediate"
	ModeAssociate         = "associate"
	ModeCheckAuth         = "check_authentication"
	ModeIDRes             = "id_res"
	ModeCancel            = "cancel"
	ModeSetupNeeded       = "setup_needed"
	ModeError             = "error"
)

// Message is a decoded OpenID wire message: the openid.* fields of a request
// with the prefix stripped. Extension fields keep their aliased prefix
// (e.g. "sreg.email").
type Message struct {
	fields map[string]string
}

// Decode extracts the openid.* namespace from form values. It returns nil
// when the values carry no openid.mode, which callers treat as "no request"
// rather than an error.
func Decode(values url.Values) *Message {
	fields := make(map[string]string)
	for key := range values {
		if !strings.HasPrefix(key, "openid.") {
			continue
		}
		fields[strings.TrimPrefix(key, "openid.")] = values.Get(key)
	}
	if fields["mode"] == "" {
		return nil
	}
	return &Message{fields: fields}
}

// DecodeMap rebuilds a message from a stashed field map (the redirect-back
// leg of the consent flow). Returns nil for empty or mode-less maps.
func DecodeMap(raw map[string]string) *Message {
	if len(raw) == 0 || raw["mode"] == "" {
		return nil
	}
	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		fields[k] = v
	}
	return &Message{fields: fields}
}

func (m *Message) Get(key string) string { return m.fields[key] }
func (m *Message) Mode() string          { return m.fields["mode"] }

// IsBrowserMode reports whether the message requires end-user interaction.
func (m *Message) IsBrowserMode() bool {
	return m.Mode() == ModeCheckIDSetup || m.Mode() == ModeCheckIDImmediate
}

func (m *Message) Immediate() bool { return m.Mode() == ModeCheckIDImmediate }

func (m *Message) Identity() string  { return m.fields["identity"] }
func (m *Message) ClaimedID() string { return m.fields["claimed_id"] }
func (m *Message) ReturnTo() string  { return m.fields["return_to"] }

// AssocHandle is the relying party's preferred association, when any.
func (m *Message) AssocHandle() string { return m.fields["assoc_handle"] }

// TrustRoot resolves the realm the relying party asserts, falling back per
// spec: openid.realm (2.0), openid.trust_root (1.x), then return_to.
func (m *Message) TrustRoot() string {
	if v := m.fields["realm"]; v != "" {
		return v
	}
	if v := m.fields["trust_root"]; v != "" {
		return v
	}
	return m.ReturnTo()
}

// Fields returns a copy of the raw fields, suitable for stashing in the
// session across the consent redirect.
func (m *Message) Fields() map[string]string {
	out := make(map[string]string, len(m.fields))
	for k, v := range m.fields {
		out[k] = v
	}
	return out
}

// SRegRequested lists the sreg attribute names the relying party asked for,
// required before optional, deduplicated.
func (m *Message) SRegRequested() []string {
	seen := make(map[string]bool)
	var out []string
	for _, raw := range []string{m.fields["sreg.required"], m.fields["sreg.optional"]} {
		for _, name := range strings.Split(raw, ",") {
			name = strings.TrimSpace(name)
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}

// AXFetchTypes maps AX attribute aliases to their type URIs for fetch
// requests. Empty for non-fetch messages.
func (m *Message) AXFetchTypes() map[string]string {
	if m.fields["ax.mode"] != "fetch_request" {
		return nil
	}
	types := make(map[string]string)
	for key, value := range m.fields {
		if alias, ok := strings.CutPrefix(key, "ax.type."); ok {
			types[alias] = value
		}
	}
	return types
}

// ValidateCheckID checks the structural requirements of a checkid message.
func (m *Message) ValidateCheckID() error {
	if !m.IsBrowserMode() {
		return fmt.Errorf("not a checkid message: mode %q", m.Mode())
	}
	if m.ReturnTo() == "" && m.TrustRoot() == "" {
		return fmt.Errorf("checkid message without return_to or realm")
	}
	if m.ReturnTo() != "" {
		if _, err := url.Parse(m.ReturnTo()); err != nil {
			return fmt.Errorf("malformed return_to: %w", err)
		}
	}
	return nil
}

// KVEncode serializes fields in the OpenID key-value form used for direct
// responses: "key:value" lines in sorted key order, ns first.
func KVEncode(fields map[string]string) []byte {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k == "ns" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	if ns, ok := fields["ns"]; ok {
		fmt.Fprintf(&b, "ns:%s\n", ns)
	}
	for _, k := range keys {
		fmt.Fprintf(&b, "%s:%s\n", k, fields[k])
	}
	return []byte(b.String())
}
