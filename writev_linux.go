//go:build linux

package binio

import (
	"io"

	"golang.org/x/sys/unix"
)

// descriptor matches *os.File and anything else exposing a raw fd.
type descriptor interface {
	Fd() uintptr
}

// writevAt retires bufs at off with positioned vectored writes when dst
// exposes a file descriptor, falling back to one WriteAt per segment.
func writevAt(dst io.WriterAt, bufs [][]byte, off int64) (int, error) {
	d, ok := dst.(descriptor)
	if !ok {
		return writevAtFallback(dst, bufs, off)
	}
	fd := int(d.Fd())
	total := 0
	for len(bufs) > 0 {
		n, err := unix.Pwritev(fd, bufs, off)
		if n > 0 {
			total += n
			off += int64(n)
			bufs = dropWritten(bufs, n)
		}
		if err != nil {
			switch err {
			case unix.EINTR:
				continue
			case unix.ENOSYS, unix.EOPNOTSUPP:
				rest, ferr := writevAtFallback(dst, bufs, off)
				return total + rest, ferr
			}
			return total, err
		}
		if n == 0 && len(bufs) > 0 {
			return total, io.ErrShortWrite
		}
	}
	return total, nil
}

// dropWritten trims n retired bytes off the front of the iovec list.
func dropWritten(bufs [][]byte, n int) [][]byte {
	for n > 0 && len(bufs) > 0 {
		if n < len(bufs[0]) {
			bufs[0] = bufs[0][n:]
			break
		}
		n -= len(bufs[0])
		bufs = bufs[1:]
	}
	return bufs
}
