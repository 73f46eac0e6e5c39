package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/ojarva-net/sso-frontend/internal/domain"
)

// CorrelateFingerprint fuses one passive fingerprint lookup into the
// browser's timeline. It is best-effort on every axis: throttled per
// (browser, address), and any failure talking to the fingerprint source
// degrades to a skipped update rather than failing the request.
func (s *Service) CorrelateFingerprint(ctx context.Context, browser domain.Browser, remoteAddr, path string) (domain.CorrelationOutcome, error) {
	key := "p0f-last-update-" + browser.PublicID
	cached, err := s.debounce.Get(ctx, key)
	if err == nil && cached == remoteAddr {
		return domain.CorrelationDiscarded, nil
	}
	if err == nil {
		if err := s.debounce.Set(ctx, key, remoteAddr, s.cfg.ThrottleWindow); err != nil {
			appLogger().WarnContext(ctx, "fingerprint debounce write failed",
				"operation", "correlate_fingerprint",
				"outcome", "degraded",
				"error", err.Error(),
			)
		}
	}

	obs, err := s.fingerprinter.Lookup(ctx, remoteAddr)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNoFingerprint):
			// Normal for idle connections; nothing to record.
		case errors.Is(err, domain.ErrBadFingerprint):
			appLogger().ErrorContext(ctx, "fingerprint source returned invalid data",
				"operation", "correlate_fingerprint",
				"outcome", "degraded",
				"remote_addr", remoteAddr,
				"error", err.Error(),
			)
		default:
			appLogger().ErrorContext(ctx, "fingerprint source unreachable",
				"operation", "correlate_fingerprint",
				"outcome", "degraded",
				"remote_addr", remoteAddr,
				"error", err.Error(),
			)
		}
		return domain.CorrelationDiscarded, nil
	}

	fingerprintLogger().InfoContext(ctx, "fingerprint observation",
		"remote_addr", remoteAddr,
		"public_id", browser.PublicID,
		"username", browser.Username,
		"path", path,
		"os_name", obs.OSName,
		"os_flavor", obs.OSFlavor,
		"uptime_sec", derefInt64(obs.UptimeSec),
		"total_conn", obs.TotalConn,
	)

	if obs.LastNAT != nil {
		// NAT signal: multiple machines behind the address. Neither create nor
		// update, and keep it out of future correlation.
		appLogger().DebugContext(ctx, "fingerprint NAT detected",
			"operation", "correlate_fingerprint",
			"outcome", "nat",
			"public_id", browser.PublicID,
			"remote_addr", remoteAddr,
		)
		return domain.CorrelationDiscarded, nil
	}

	latest, err := s.fingerprints.LatestForBrowser(ctx, browser.BrowserID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return domain.CorrelationDiscarded, fmt.Errorf("load latest fingerprint: %w", err)
	}
	if err == nil {
		handled, wrote, updateErr := s.updateLatestFingerprint(ctx, &latest, obs)
		if updateErr != nil {
			return domain.CorrelationDiscarded, updateErr
		}
		if handled {
			if wrote {
				appLogger().DebugContext(ctx, "fingerprint entry updated",
					"operation", "correlate_fingerprint",
					"outcome", "updated",
					"public_id", browser.PublicID,
				)
			}
			return domain.CorrelationUpdated, nil
		}
	}

	entry := domain.FingerprintObservation{
		BrowserID:      browser.BrowserID,
		FirstSeen:      obs.FirstSeen,
		LastSeen:       obs.LastSeen,
		TotalConn:      obs.TotalConn,
		UptimeSec:      obs.UptimeSec,
		UpModDays:      obs.UpModDays,
		Distance:       obs.Distance,
		OSMatchQuality: obs.OSMatchQuality,
		OSName:         obs.OSName,
		OSFlavor:       obs.OSFlavor,
		LinkType:       obs.LinkType,
		CreatedAt:      s.nowFn(),
		UpdatedAt:      s.nowFn(),
	}
	if _, err := s.fingerprints.Create(ctx, entry); err != nil {
		return domain.CorrelationDiscarded, fmt.Errorf("create fingerprint entry: %w", err)
	}
	appLogger().InfoContext(ctx, "fingerprint timeline entry created",
		"operation", "correlate_fingerprint",
		"outcome", "created",
		"public_id", browser.PublicID,
		"uptime_sec", derefInt64(obs.UptimeSec),
	)
	return domain.CorrelationCreated, nil
}

// updateLatestFingerprint decides whether the incoming observation continues
// the stored series. It returns handled=true when the observation was fully
// absorbed (possibly without a write), and wrote=true when the stored entry
// was mutated.
func (s *Service) updateLatestFingerprint(ctx context.Context, latest *domain.FingerprintObservation, obs domain.Observation) (handled, wrote bool, err error) {
	if obs.UptimeSec == nil && latest.UptimeSec == nil {
		// Neither side knows an uptime; nothing changed worth recording.
		return true, false, nil
	}
	if obs.UptimeSec == nil || latest.UptimeSec == nil {
		// The series flips between known and unknown uptime; cannot correlate.
		return false, false, nil
	}

	now := s.nowFn()
	elapsed := int64(now.Sub(latest.UpdatedAt).Seconds())
	expected := *latest.UptimeSec + elapsed

	if obs.UpModDays != nil && *obs.UpModDays > 1 {
		upModSec := int64(*obs.UpModDays) * 86400
		if expected > upModSec {
			// The bounded uptime counter overflowed since the last sighting.
			latest.Wraparounds++
			expected -= upModSec
		}
	}

	diff := expected - *obs.UptimeSec
	allowed := expected / 10
	if allowed < 600 {
		allowed = 600
	}
	if diff > allowed {
		appLogger().DebugContext(ctx, "fingerprint uptime went backwards",
			"operation", "correlate_fingerprint",
			"outcome", "regressed",
			"diff_sec", diff,
		)
		return false, false, nil
	}
	if diff < -allowed {
		appLogger().DebugContext(ctx, "fingerprint uptime jumped onwards",
			"operation", "correlate_fingerprint",
			"outcome", "jumped",
			"diff_sec", diff,
		)
		return false, false, nil
	}

	latest.TotalConn = obs.TotalConn
	latest.UptimeSec = obs.UptimeSec
	latest.OSName = obs.OSName
	latest.OSFlavor = obs.OSFlavor
	latest.OSMatchQuality = obs.OSMatchQuality
	latest.Distance = obs.Distance
	latest.LastSeen = obs.LastSeen
	latest.UpdatedAt = now
	if err := s.fingerprints.Update(ctx, *latest); err != nil {
		return false, false, fmt.Errorf("update fingerprint entry: %w", err)
	}
	return true, true, nil
}

func derefInt64(v *int64) int64 {
	if v == nil {
		return -1
	}
	return *v
}
