// Package io provides the line-oriented byte-stream reader the SMTP engine
// builds on: one CRLF-terminated line at a time, with a caller-supplied
// per-line size cap.
package io

import (
	"bufio"
	"errors"
)

// ErrLineTooLong is returned when a line exceeds the caller's max,
// including the trailing CRLF.
var ErrLineTooLong = errors.New("smtp: line too long")

// ReadLine reads a single CRLF-terminated line, stripping the trailing CRLF.
// max bounds the line length including the CRLF. The same reader is reused
// across calls for command lines (max=512) and DATA lines (max=1000); the
// caller picks max per spec.md §4.2.
//
// A bare LF (not preceded by CR) is never treated as a terminator: ReadLine
// keeps buffering past it until a real CRLF appears or the cap is hit.
func ReadLine(reader *bufio.Reader, max int) (string, error) {
	var buf []byte
	overflowed := false
	for {
		chunk, err := reader.ReadSlice('\n')
		if !overflowed {
			if len(buf)+len(chunk) > max {
				overflowed = true
			} else {
				buf = append(buf, chunk...)
			}
		}

		if err == nil {
			// chunk ends in '\n': either the real terminator or a bare LF.
			if overflowed {
				return "", ErrLineTooLong
			}
			if len(buf) >= 2 && buf[len(buf)-2] == '\r' {
				return string(buf[:len(buf)-2]), nil
			}
			continue
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		// EOF or another read error before a '\n' was ever found.
		return "", err
	}
}
