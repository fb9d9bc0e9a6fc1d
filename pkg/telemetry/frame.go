package telemetry

import "github.com/juju/errors"

const (
	RawFrameSize     = 16
	SampledFrameSize = RawFrameSize / 2

	// NotReady is sent by the controller while its status block is incomplete.
	NotReady byte = 255
)

// RawFrame is one poll's status block: every data byte is followed by a
// check byte that is not used.
type RawFrame [RawFrameSize]byte

type SampledFrame [SampledFrameSize]byte

func ParseRawFrame(b []byte) (RawFrame, error) {
	var raw RawFrame
	if len(b) != RawFrameSize {
		return raw, errors.NotValidf("frame=%x length=%d expected=%d", b, len(b), RawFrameSize)
	}
	copy(raw[:], b)
	return raw, nil
}

// Sample keeps the even indexed bytes of the frame.
func (raw RawFrame) Sample() SampledFrame {
	var s SampledFrame
	for i := range s {
		s[i] = raw[i*2]
	}
	return s
}

// Validate down-samples raw and reports false if any sampled byte holds
// the NotReady sentinel.
func Validate(raw RawFrame) (SampledFrame, bool) {
	s := raw.Sample()
	for _, b := range s {
		if b == NotReady {
			return s, false
		}
	}
	return s, true
}
