package openid

import (
	"net/url"
	"strings"
	"testing"
)

func TestDecodeStripsPrefixAndRequiresMode(t *testing.T) {
	t.Parallel()

	values := url.Values{}
	values.Set("openid.mode", ModeCheckIDSetup)
	values.Set("openid.identity", "https://sso.example.com/openid/identity/alice")
	values.Set("openid.sreg.required", "email")
	values.Set("unrelated", "ignored")

	msg := Decode(values)
	if msg == nil {
		t.Fatal("expected a decoded message")
	}
	if msg.Mode() != ModeCheckIDSetup {
		t.Fatalf("unexpected mode %q", msg.Mode())
	}
	if msg.Identity() != "https://sso.example.com/openid/identity/alice" {
		t.Fatalf("unexpected identity %q", msg.Identity())
	}
	if msg.Get("sreg.required") != "email" {
		t.Fatalf("extension field lost: %q", msg.Get("sreg.required"))
	}
	if msg.Get("unrelated") != "" {
		t.Fatal("non-openid field leaked into the message")
	}

	if Decode(url.Values{"foo": {"bar"}}) != nil {
		t.Fatal("expected nil for values without openid.mode")
	}
}

func TestDecodeMapRoundTripsStashedFields(t *testing.T) {
	t.Parallel()

	values := url.Values{}
	values.Set("openid.mode", ModeCheckIDImmediate)
	values.Set("openid.return_to", "https://rp.example.com/finish")
	original := Decode(values)

	restored := DecodeMap(original.Fields())
	if restored == nil {
		t.Fatal("expected restored message")
	}
	if restored.Mode() != ModeCheckIDImmediate || restored.ReturnTo() != "https://rp.example.com/finish" {
		t.Fatalf("restored message mismatch: mode=%q return_to=%q", restored.Mode(), restored.ReturnTo())
	}
	if !restored.Immediate() {
		t.Fatal("expected immediate mode")
	}

	if DecodeMap(nil) != nil || DecodeMap(map[string]string{"identity": "x"}) != nil {
		t.Fatal("expected nil for empty or mode-less maps")
	}
}

func TestTrustRootFallbackOrder(t *testing.T) {
	t.Parallel()

	msg := DecodeMap(map[string]string{
		"mode":       ModeCheckIDSetup,
		"realm":      "https://realm.example.com/",
		"trust_root": "https://legacy.example.com/",
		"return_to":  "https://rp.example.com/finish",
	})
	if got := msg.TrustRoot(); got != "https://realm.example.com/" {
		t.Fatalf("realm should win, got %q", got)
	}

	msg = DecodeMap(map[string]string{
		"mode":       ModeCheckIDSetup,
		"trust_root": "https://legacy.example.com/",
		"return_to":  "https://rp.example.com/finish",
	})
	if got := msg.TrustRoot(); got != "https://legacy.example.com/" {
		t.Fatalf("trust_root should win over return_to, got %q", got)
	}

	msg = DecodeMap(map[string]string{
		"mode":      ModeCheckIDSetup,
		"return_to": "https://rp.example.com/finish",
	})
	if got := msg.TrustRoot(); got != "https://rp.example.com/finish" {
		t.Fatalf("expected return_to fallback, got %q", got)
	}
}

func TestSRegRequestedDeduplicates(t *testing.T) {
	t.Parallel()

	msg := DecodeMap(map[string]string{
		"mode":          ModeCheckIDSetup,
		"return_to":     "https://rp.example.com/finish",
		"sreg.required": "email, nickname",
		"sreg.optional": "fullname,email,",
	})
	got := msg.SRegRequested()
	want := []string{"email", "nickname", "fullname"}
	if len(got) != len(want) {
		t.Fatalf("unexpected sreg list %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected sreg list %v, want %v", got, want)
		}
	}
}

func TestAXFetchTypesOnlyForFetchRequests(t *testing.T) {
	t.Parallel()

	msg := DecodeMap(map[string]string{
		"mode":          ModeCheckIDSetup,
		"return_to":     "https://rp.example.com/finish",
		"ax.mode":       "fetch_request",
		"ax.type.email": "http://axschema.org/contact/email",
		"ax.type.first": "http://axschema.org/namePerson/first",
	})
	types := msg.AXFetchTypes()
	if len(types) != 2 || types["email"] != "http://axschema.org/contact/email" {
		t.Fatalf("unexpected ax types %v", types)
	}

	msg = DecodeMap(map[string]string{
		"mode":          ModeCheckIDSetup,
		"return_to":     "https://rp.example.com/finish",
		"ax.type.email": "http://axschema.org/contact/email",
	})
	if msg.AXFetchTypes() != nil {
		t.Fatal("expected nil ax types without fetch_request mode")
	}
}

func TestValidateCheckID(t *testing.T) {
	t.Parallel()

	ok := DecodeMap(map[string]string{
		"mode":      ModeCheckIDSetup,
		"return_to": "https://rp.example.com/finish",
	})
	if err := ok.ValidateCheckID(); err != nil {
		t.Fatalf("valid checkid rejected: %v", err)
	}

	wrongMode := DecodeMap(map[string]string{"mode": ModeAssociate})
	if err := wrongMode.ValidateCheckID(); err == nil {
		t.Fatal("expected error for non-checkid mode")
	}

	bare := DecodeMap(map[string]string{"mode": ModeCheckIDSetup})
	if err := bare.ValidateCheckID(); err == nil {
		t.Fatal("expected error without return_to or realm")
	}
}

func TestKVEncodePutsNamespaceFirstThenSorted(t *testing.T) {
	t.Parallel()

	body := string(KVEncode(map[string]string{
		"mode":         ModeIDRes,
		"assoc_handle": "h1",
		"ns":           NS,
	}))
	lines := strings.Split(strings.TrimRight(body, "\n"), "\n")
	want := []string{"ns:" + NS, "assoc_handle:h1", "mode:id_res"}
	if len(lines) != len(want) {
		t.Fatalf("unexpected kv body %q", body)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}
