package openid

import (
	"net/url"
	"strings"
	"testing"
	"time"
)

func testAssociation(t *testing.T) Association {
	t.Helper()
	assoc, err := NewAssociation(AssocHMACSHA256, false, time.Now(), time.Hour)
	if err != nil {
		t.Fatalf("mint association: %v", err)
	}
	return assoc
}

func TestPositiveAssertionSignedFieldOrder(t *testing.T) {
	t.Parallel()

	resp, err := NewPositiveAssertion(
		"https://sso.example.com/openid/",
		"https://sso.example.com/openid/identity/alice",
		"https://sso.example.com/openid/identity/alice",
		"https://rp.example.com/finish",
		time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	)
	if err != nil {
		t.Fatalf("build assertion: %v", err)
	}
	assoc := testAssociation(t)
	resp.Sign(assoc, "")

	fields := resp.Fields()
	signed := fields["openid.signed"]
	want := "ns,mode,op_endpoint,return_to,response_nonce,claimed_id,identity,assoc_handle,signed"
	if signed != want {
		t.Fatalf("signed list %q, want %q", signed, want)
	}
	if fields["openid.mode"] != ModeIDRes {
		t.Fatalf("unexpected mode %q", fields["openid.mode"])
	}
	if !strings.HasPrefix(fields["openid.response_nonce"], "2026-08-01T12:00:00Z") {
		t.Fatalf("nonce missing issue instant: %q", fields["openid.response_nonce"])
	}

	// A verifier strips the wire prefix and re-computes the MAC over the
	// advertised list.
	raw := make(map[string]string, len(fields))
	for k, v := range fields {
		raw[strings.TrimPrefix(k, "openid.")] = v
	}
	if !assoc.Verify(raw, strings.Split(signed, ","), fields["openid.sig"]) {
		t.Fatal("assertion signature did not verify")
	}
}

func TestSignEchoesInvalidateHandle(t *testing.T) {
	t.Parallel()

	resp, err := NewPositiveAssertion(
		"https://sso.example.com/openid/",
		"",
		"https://sso.example.com/openid/identity/alice",
		"https://rp.example.com/finish",
		time.Now(),
	)
	if err != nil {
		t.Fatalf("build assertion: %v", err)
	}
	resp.Sign(testAssociation(t), "stale-handle")

	fields := resp.Fields()
	if fields["openid.invalidate_handle"] != "stale-handle" {
		t.Fatalf("invalidate_handle not echoed: %v", fields)
	}
	if !strings.HasSuffix(fields["openid.signed"], "assoc_handle,invalidate_handle,signed") {
		t.Fatalf("invalidate_handle not covered by signature: %q", fields["openid.signed"])
	}
	if _, ok := fields["openid.claimed_id"]; ok {
		t.Fatal("claimed_id should be absent when not supplied")
	}
}

func TestNegativeAssertionModes(t *testing.T) {
	t.Parallel()

	if got := NewNegativeAssertion("https://rp.example.com/finish", false).fields["mode"]; got != ModeCancel {
		t.Fatalf("setup mode should cancel, got %q", got)
	}
	if got := NewNegativeAssertion("https://rp.example.com/finish", true).fields["mode"]; got != ModeSetupNeeded {
		t.Fatalf("immediate mode should report setup_needed, got %q", got)
	}
}

func TestAddExtensionSortsAliasedFields(t *testing.T) {
	t.Parallel()

	resp := &Response{
		fields:   map[string]string{"ns": NS, "mode": ModeIDRes},
		returnTo: "https://rp.example.com/finish",
	}
	resp.AddExtension("sreg", NSSReg, map[string]string{
		"nickname": "alice",
		"email":    "alice@example.com",
	})

	want := []string{"ns.sreg", "sreg.email", "sreg.nickname"}
	if len(resp.signedOrder) != len(want) {
		t.Fatalf("unexpected signed order %v", resp.signedOrder)
	}
	for i := range want {
		if resp.signedOrder[i] != want[i] {
			t.Fatalf("signed order %v, want %v", resp.signedOrder, want)
		}
	}
	if resp.fields["ns.sreg"] != NSSReg {
		t.Fatalf("extension namespace missing: %v", resp.fields)
	}
}

func TestRedirectURLMergesQuery(t *testing.T) {
	t.Parallel()

	resp := NewNegativeAssertion("https://rp.example.com/finish?janrain_nonce=abc", false)
	target, err := resp.RedirectURL()
	if err != nil {
		t.Fatalf("redirect url: %v", err)
	}
	u, err := url.Parse(target)
	if err != nil {
		t.Fatalf("parse redirect target: %v", err)
	}
	q := u.Query()
	if q.Get("janrain_nonce") != "abc" {
		t.Fatal("existing return_to query lost")
	}
	if q.Get("openid.mode") != ModeCancel {
		t.Fatalf("mode not encoded: %q", q.Get("openid.mode"))
	}
}

func TestNeedsFormPostForOversizedResponses(t *testing.T) {
	t.Parallel()

	resp, err := NewPositiveAssertion(
		"https://sso.example.com/openid/",
		"https://sso.example.com/openid/identity/alice",
		"https://sso.example.com/openid/identity/alice",
		"https://rp.example.com/finish",
		time.Now(),
	)
	if err != nil {
		t.Fatalf("build assertion: %v", err)
	}
	resp.Sign(testAssociation(t), "")
	big, err := resp.NeedsFormPost()
	if err != nil {
		t.Fatalf("needs form post: %v", err)
	}
	if big {
		t.Fatal("compact assertion should fit in a redirect")
	}

	resp.AddExtension("ax", NSAX, map[string]string{
		"value.blob": strings.Repeat("x", 3000),
	})
	resp.Sign(testAssociation(t), "")
	big, err = resp.NeedsFormPost()
	if err != nil {
		t.Fatalf("needs form post: %v", err)
	}
	if !big {
		t.Fatal("oversized assertion should require a form post")
	}
}
