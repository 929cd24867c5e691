package bl0942

import (
	"errors"
	"fmt"
)

// ErrNoData indicates a read was attempted with no buffered input.
var ErrNoData = errors.New("no data available")

// ChecksumError indicates a received packet failed checksum validation.
type ChecksumError struct {
	Expected byte
	Received byte
}

// Error implements error.
func (e *ChecksumError) Error() string {
	return fmt.Sprintf("invalid checksum 0x%02X != 0x%02X", e.Expected, e.Received)
}

// ResyncError indicates a byte was dropped while waiting for a packet header.
type ResyncError struct {
	Byte byte
}

// Error implements error.
func (e *ResyncError) Error() string {
	return fmt.Sprintf("header mismatch: 0x%02X", e.Byte)
}

// Reporter receives the non-fatal protocol errors.
type Reporter interface {
	ReportError(error)
}

// ReportErrorFunc is func form of Reporter.
type ReportErrorFunc func(error)

// ReportError implements Reporter.
func (f ReportErrorFunc) ReportError(err error) {
	f(err)
}
