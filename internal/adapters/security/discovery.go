package security

import (
	"context"
	"encoding/xml"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ojarva-net/sso-frontend/internal/domain"
)

// TrustRootDiscoverer validates relying-party requests: a syntactic match of
// return_to against the asserted trust root, then relying-party discovery of
// the trust root's endorsed return_to endpoints. Discovery fetch failures are
// reported as their own outcome so policy can decide how much to trust them.
type TrustRootDiscoverer struct {
	client *http.Client
}

func NewTrustRootDiscoverer(timeout time.Duration) *TrustRootDiscoverer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &TrustRootDiscoverer{
		client: &http.Client{Timeout: timeout},
	}
}

func (d *TrustRootDiscoverer) Validate(ctx context.Context, trustRoot, returnTo string) domain.TrustRootValidation {
	if !returnToMatchesRoot(trustRoot, returnTo) {
		return domain.TrustRootInvalid
	}

	endorsed, err := d.fetchReturnToEndpoints(ctx, trustRoot)
	if err != nil {
		slog.Default().InfoContext(ctx, "trust root discovery failed",
			"module", "security",
			"layer", "adapter",
			"operation", "trust_root_discovery",
			"outcome", "failure",
			"trust_root", trustRoot,
			"error", err.Error(),
		)
		return domain.TrustRootDiscoveryFailed
	}
	for _, endpoint := range endorsed {
		if returnToMatchesRoot(endpoint, returnTo) {
			return domain.TrustRootValid
		}
	}
	return domain.TrustRootInvalid
}

// returnToMatchesRoot implements the realm matching rules: scheme equality,
// host equality with *.-wildcard support, port equality and path-prefix
// containment.
func returnToMatchesRoot(trustRoot, returnTo string) bool {
	root, err := url.Parse(trustRoot)
	if err != nil || root.Host == "" {
		return false
	}
	target, err := url.Parse(returnTo)
	if err != nil || target.Host == "" {
		return false
	}
	if root.Scheme != target.Scheme {
		return false
	}
	if root.Port() != target.Port() {
		return false
	}

	rootHost := root.Hostname()
	targetHost := target.Hostname()
	if wild, ok := strings.CutPrefix(rootHost, "*."); ok {
		if targetHost != wild && !strings.HasSuffix(targetHost, "."+wild) {
			return false
		}
	} else if rootHost != targetHost {
		return false
	}

	rootPath := root.Path
	if rootPath == "" {
		rootPath = "/"
	}
	targetPath := target.Path
	if targetPath == "" {
		targetPath = "/"
	}
	if targetPath == rootPath {
		return true
	}
	if !strings.HasSuffix(rootPath, "/") {
		rootPath += "/"
	}
	return strings.HasPrefix(targetPath, rootPath)
}

type xrdsService struct {
	Types []string `xml:"Type"`
	URIs  []string `xml:"URI"`
}

type xrdsDocument struct {
	Services []xrdsService `xml:"XRD>Service"`
}

const returnToServiceType = "http://specs.openid.net/auth/2.0/return_to"

// fetchReturnToEndpoints performs relying-party discovery: fetch the trust
// root's XRDS and collect the URIs it endorses for assertion delivery.
func (d *TrustRootDiscoverer) fetchReturnToEndpoints(ctx context.Context, trustRoot string) ([]string, error) {
	target := strings.Replace(trustRoot, "*.", "www.", 1)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/xrds+xml")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	var doc xrdsDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, err
	}

	var endpoints []string
	for _, svc := range doc.Services {
		for _, t := range svc.Types {
			if t == returnToServiceType {
				endpoints = append(endpoints, svc.URIs...)
				break
			}
		}
	}
	return endpoints, nil
}
