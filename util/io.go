package util

import (
	"errors"
	"io"
	"net"
	"syscall"
)

// IsHarmless returns true for errors that mean the peer or the server
// closed the stream in an orderly way: nothing worth logging at error
// level.
func IsHarmless(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return true
	}
	// Terminals are often power-cycled rather than disconnected.
	if errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Is(opErr.Err, net.ErrClosed)
	}
	return false
}

// WriteAll writes every part to w in order, stopping at the first
// error.  It returns the number of bytes written.
func WriteAll(w io.Writer, parts ...[]byte) (int, error) {
	total := 0
	for _, p := range parts {
		n, err := w.Write(p)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
