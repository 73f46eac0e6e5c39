// Package p0f speaks the p0f v3 unix-socket query protocol. The daemon
// answers with a fixed 232-byte binary frame describing the most recent
// passive fingerprint of a remote address.
package p0f

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/ojarva-net/sso-frontend/internal/domain"
)

const (
	queryMagic    = 0x50304601
	responseMagic = 0x50304602

	statusBadQuery = 0x00
	statusOK       = 0x10
	statusNoMatch  = 0x20

	addrTypeIPv4 = 4
	addrTypeIPv6 = 6

	queryLen    = 21
	responseLen = 232
)

// Client queries a p0f v3 daemon over its API socket. One connection per
// lookup; the daemon closes idle API connections aggressively anyway.
type Client struct {
	socketPath string
	timeout    time.Duration
}

func NewClient(socketPath string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Client{socketPath: socketPath, timeout: timeout}
}

func (c *Client) Lookup(ctx context.Context, remoteAddr string) (domain.Observation, error) {
	ip := net.ParseIP(remoteAddr)
	if ip == nil {
		return domain.Observation{}, fmt.Errorf("parse remote address %q", remoteAddr)
	}

	query, err := encodeQuery(ip)
	if err != nil {
		return domain.Observation{}, err
	}

	dialer := net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return domain.Observation{}, fmt.Errorf("dial p0f socket: %w", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return domain.Observation{}, fmt.Errorf("set p0f deadline: %w", err)
	}

	if _, err := conn.Write(query); err != nil {
		return domain.Observation{}, fmt.Errorf("write p0f query: %w", err)
	}

	frame := make([]byte, responseLen)
	if _, err := io.ReadFull(conn, frame); err != nil {
		return domain.Observation{}, fmt.Errorf("read p0f response: %w", err)
	}
	return decodeResponse(frame)
}

func encodeQuery(ip net.IP) ([]byte, error) {
	buf := make([]byte, queryLen)
	binary.LittleEndian.PutUint32(buf[0:4], queryMagic)
	if v4 := ip.To4(); v4 != nil {
		buf[4] = addrTypeIPv4
		copy(buf[5:], v4)
		return buf, nil
	}
	if v6 := ip.To16(); v6 != nil {
		buf[4] = addrTypeIPv6
		copy(buf[5:], v6)
		return buf, nil
	}
	return nil, fmt.Errorf("unsupported address family")
}

// decodeResponse unpacks the p0f_api_response struct. All integers are
// little-endian; strings are NUL-padded fixed-width fields.
func decodeResponse(frame []byte) (domain.Observation, error) {
	if len(frame) != responseLen {
		return domain.Observation{}, domain.ErrBadFingerprint
	}
	if binary.LittleEndian.Uint32(frame[0:4]) != responseMagic {
		return domain.Observation{}, domain.ErrBadFingerprint
	}
	switch binary.LittleEndian.Uint32(frame[4:8]) {
	case statusOK:
	case statusNoMatch:
		return domain.Observation{}, domain.ErrNoFingerprint
	case statusBadQuery:
		return domain.Observation{}, domain.ErrBadFingerprint
	default:
		return domain.Observation{}, domain.ErrBadFingerprint
	}

	obs := domain.Observation{
		FirstSeen: time.Unix(int64(binary.LittleEndian.Uint32(frame[8:12])), 0).UTC(),
		LastSeen:  time.Unix(int64(binary.LittleEndian.Uint32(frame[12:16])), 0).UTC(),
		TotalConn: int64(binary.LittleEndian.Uint32(frame[16:20])),
	}

	// uptime_min is minutes since boot; zero means the daemon could not
	// estimate an uptime for this host.
	if uptimeMin := binary.LittleEndian.Uint32(frame[20:24]); uptimeMin > 0 {
		uptimeSec := int64(uptimeMin) * 60
		obs.UptimeSec = &uptimeSec
		upModDays := int32(binary.LittleEndian.Uint32(frame[24:28]))
		obs.UpModDays = &upModDays
	}
	if lastNAT := binary.LittleEndian.Uint32(frame[28:32]); lastNAT > 0 {
		t := time.Unix(int64(lastNAT), 0).UTC()
		obs.LastNAT = &t
	}
	// last_chg at [32:36] is unused here.
	obs.Distance = int16(binary.LittleEndian.Uint16(frame[36:38]))
	obs.OSMatchQuality = int16(frame[39])
	obs.OSName = cString(frame[40:72])
	obs.OSFlavor = cString(frame[72:104])
	// http_name/http_flavor at [104:168] are unused here.
	obs.LinkType = cString(frame[168:200])
	return obs, nil
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
