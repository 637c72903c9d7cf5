// internal/poller/vch1006/vch1006.go

// Package vch1006 probes the VCH1006 passive maser monitor port. The
// protocol is not decoded; the probe only confirms that the unit answers
// and dumps what it sent.
package vch1006

import (
	"encoding/hex"
	"errors"

	"github.com/tamzrod/masermon/internal/fault"
	"github.com/tamzrod/masermon/internal/transport"
)

const (
	// DumpLen is the size of one status dump.
	DumpLen = 189
)

var request = []byte{0x01, 0x41, 0x00, 0x00, 0x00}

// Probe sends the status request one byte at a time and returns the reply
// as lowercase hex. A short reply is still returned together with the
// timeout; an empty one is an error on its own.
func Probe(ch transport.Channel) (string, error) {
	if ch == nil {
		return "", errors.New("vch1006: channel required")
	}
	for _, b := range request {
		if err := ch.Write([]byte{b}); err != nil {
			return "", fault.New(fault.KindOf(err), "request", err)
		}
	}

	buf, err := ch.ReadExact(DumpLen)
	if err != nil && !fault.Is(err, fault.Timeout) {
		return "", fault.New(fault.KindOf(err), "dump", err)
	}
	if len(buf) == 0 {
		return "", fault.New(fault.Timeout, "dump", transport.ErrTimeout)
	}
	return hex.EncodeToString(buf), err
}
