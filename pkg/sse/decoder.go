package sse

import (
	"bytes"
	"errors"
	"io"
	"iter"
)

// Decoder turns a sequence of raw byte chunks into complete lines.
//
// Chunks may split a line anywhere, including in the middle of a multi-byte
// rune; the partial tail is buffered until a later chunk completes it. A
// Decoder is single-use: once Close is called it yields nothing further.
//
// ┌──────────────┐   ┌──────────────┐   ┌──────────────┐
// │  raw chunks  │──▶│ Decoder.Write│──▶│ []string line│
// └──────────────┘   └──────────────┘   └──────────────┘
type Decoder struct {
	buf    []byte
	closed bool
}

// NewDecoder returns an empty Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Write pushes one chunk into the decoder and returns every line the chunk
// completed, in order. The "\n" terminator is stripped, as is a single "\r"
// before it so CRLF framed streams decode identically.
func (d *Decoder) Write(chunk []byte) []string {
	if d.closed || len(chunk) == 0 {
		return nil
	}

	d.buf = append(d.buf, chunk...)

	var lines []string
	start := 0
	for {
		i := bytes.IndexByte(d.buf[start:], '\n')
		if i < 0 {
			break
		}

		line := d.buf[start : start+i]
		line = bytes.TrimSuffix(line, []byte{'\r'})
		lines = append(lines, string(line))
		start += i + 1
	}

	// Shift the unterminated tail to the front of the buffer.
	if start > 0 {
		n := copy(d.buf, d.buf[start:])
		d.buf = d.buf[:n]
	}

	return lines
}

// Buffered returns the number of bytes held for an incomplete line.
func (d *Decoder) Buffered() int {
	return len(d.buf)
}

// Close signals end of input. Any unterminated fragment is discarded, never
// yielded: a line without its terminator is protocol noise. Close returns the
// number of discarded bytes.
func (d *Decoder) Close() int {
	if d.closed {
		return 0
	}

	d.closed = true
	discarded := len(d.buf)
	d.buf = nil

	return discarded
}

// Lines drives the decoder from r, reading at most size bytes per call, and
// yields each completed line. A read error other than io.EOF is yielded once
// and ends the sequence. The sequence is single-use.
func (d *Decoder) Lines(r io.Reader, size int) iter.Seq2[string, error] {
	if size <= 0 {
		size = 4096
	}

	return func(yield func(string, error) bool) {
		defer d.Close()

		buf := make([]byte, size)
		for {
			n, err := r.Read(buf)
			for _, line := range d.Write(buf[:n]) {
				if !yield(line, nil) {
					return
				}
			}

			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", err)
				return
			}
		}
	}
}
