package openid

import (
	"bytes"
	"encoding/xml"
	"fmt"
)

// ProviderXRDS renders the endpoint discovery document for the provider
// itself. The sreg namespace is always advertised; AX only when enabled.
func ProviderXRDS(endpoint string, axEnabled bool) ([]byte, error) {
	types := []string{TypeServer, NSSReg}
	if axEnabled {
		types = append(types, NSAX)
	}
	return renderXRDS(endpoint, types)
}

// IdentityXRDS renders the discovery document served from an identity page.
func IdentityXRDS(endpoint string) ([]byte, error) {
	return renderXRDS(endpoint, []string{TypeSignon})
}

// renderXRDS writes the Yadis document by hand: relying parties expect the
// prefixed xrds:XRDS root with the $xrds and $xrd*($v*2.0) namespaces, and
// encoding/xml cannot produce that prefix form.
func renderXRDS(endpoint string, types []string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString(`<xrds:XRDS xmlns:xrds="xri://$xrds" xmlns="xri://$xrd*($v*2.0)">` + "\n")
	buf.WriteString("  <XRD>\n")
	buf.WriteString("    <Service priority=\"0\">\n")
	for _, t := range types {
		buf.WriteString("      <Type>")
		if err := xml.EscapeText(&buf, []byte(t)); err != nil {
			return nil, fmt.Errorf("render xrds: %w", err)
		}
		buf.WriteString("</Type>\n")
	}
	buf.WriteString("      <URI>")
	if err := xml.EscapeText(&buf, []byte(endpoint)); err != nil {
		return nil, fmt.Errorf("render xrds: %w", err)
	}
	buf.WriteString("</URI>\n")
	buf.WriteString("    </Service>\n")
	buf.WriteString("  </XRD>\n")
	buf.WriteString("</xrds:XRDS>\n")
	return buf.Bytes(), nil
}
