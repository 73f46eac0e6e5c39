package domain

import (
	"time"

	"github.com/google/uuid"
)

// Observation is one passive OS-fingerprint reading for a remote address,
// as returned by the fingerprint query service. UptimeSec is nil when the
// source could not compute an uptime for the connection.
type Observation struct {
	FirstSeen      time.Time
	LastSeen       time.Time
	TotalConn      int64
	UptimeSec      *int64
	UpModDays      *int32
	LastNAT        *time.Time
	Distance       int16
	OSMatchQuality int16
	OSName         string
	OSFlavor       string
	LinkType       string
}

// FingerprintObservation is one timeline entry of the per-browser fingerprint
// history. Exactly one "latest" entry is mutated in place while the reported
// uptime stays consistent with monotonic growth; inconsistent observations
// start a new entry, preserving history.
type FingerprintObservation struct {
	ObservationID  uuid.UUID
	BrowserID      uuid.UUID
	FirstSeen      time.Time
	LastSeen       time.Time
	TotalConn      int64
	UptimeSec      *int64
	UpModDays      *int32
	Distance       int16
	OSMatchQuality int16
	OSName         string
	OSFlavor       string
	LinkType       string
	Wraparounds    int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// CorrelationOutcome is the result of fusing one observation into a browser's
// fingerprint timeline.
type CorrelationOutcome string

const (
	// CorrelationUpdated covers both an in-place update of the latest entry and
	// the both-uptimes-unknown case, which counts as handled without a write.
	CorrelationUpdated CorrelationOutcome = "updated"
	// CorrelationCreated means the series was inconsistent and a new timeline
	// entry was started.
	CorrelationCreated CorrelationOutcome = "created"
	// CorrelationDiscarded means the observation produced no entry at all:
	// NAT signal, throttled, no data, or a degraded fingerprint source.
	CorrelationDiscarded CorrelationOutcome = "discarded"
)
