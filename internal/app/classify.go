package app

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/bft-labs/fieldsync/internal/domain"
)

// ErrorClass tells the queue what to do with a failed remote call.
type ErrorClass int

const (
	// ClassLogical failures are reported to the caller and never retried.
	ClassLogical ErrorClass = iota
	// ClassConnectivity failures are queued and retried later.
	ClassConnectivity
)

// String returns a human-readable representation of the class.
func (c ErrorClass) String() string {
	switch c {
	case ClassConnectivity:
		return "connectivity"
	default:
		return "logical"
	}
}

// connectivityErrnos are the socket errors that mean the peer was unreachable.
var connectivityErrnos = []syscall.Errno{
	syscall.ECONNREFUSED,
	syscall.ECONNRESET,
	syscall.ECONNABORTED,
	syscall.ENETUNREACH,
	syscall.EHOSTUNREACH,
	syscall.ENETDOWN,
	syscall.EPIPE,
	syscall.ETIMEDOUT,
}

// Classify sorts err into a closed set of connectivity signatures; anything
// outside the set is logical. context.Canceled is logical because the caller
// gave up, not the network.
func Classify(err error) ErrorClass {
	if err == nil {
		return ClassLogical
	}
	if errors.Is(err, context.Canceled) {
		return ClassLogical
	}
	var logical *domain.LogicalError
	if errors.As(err, &logical) {
		return ClassLogical
	}

	if errors.Is(err, domain.ErrConnectivity) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return ClassConnectivity
	}
	for _, errno := range connectivityErrnos {
		if errors.Is(err, errno) {
			return ClassConnectivity
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ClassConnectivity
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ClassConnectivity
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassConnectivity
	}
	return ClassLogical
}

// IsConnectivity reports whether err should be queued for retry.
func IsConnectivity(err error) bool {
	return Classify(err) == ClassConnectivity
}
