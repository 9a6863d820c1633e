package protocol

import (
	"bufio"
	"errors"
	"io"
)

// MaxFrameSize is the default cap on a single frame, including its newline
// terminator. Chat messages are far smaller; the cap exists so a misbehaving
// peer cannot grow the read buffer without bound.
const MaxFrameSize = 4096

// ErrFrameTooLarge is returned when a peer sends a frame longer than the
// reader's configured cap. The error is fatal to the session: without the
// newline the stream can no longer be resynchronized.
var ErrFrameTooLarge = errors.New("protocol: frame exceeds maximum size")

// FrameReader splits a byte stream into newline-delimited frames. One frame
// is one logical protocol message; the terminator is stripped before frames
// are handed to the caller.
type FrameReader struct {
	r   *bufio.Reader
	max int
}

// NewFrameReader wraps r with a frame splitter capped at max bytes per frame.
// A non-positive max falls back to MaxFrameSize.
func NewFrameReader(r io.Reader, max int) *FrameReader {
	if max <= 0 {
		max = MaxFrameSize
	}
	return &FrameReader{
		r:   bufio.NewReaderSize(r, max),
		max: max,
	}
}

// ReadFrame returns the next frame without its trailing newline. A trailing
// carriage return is also stripped so telnet-style clients work. Returns
// ErrFrameTooLarge when the peer exceeds the frame cap, and the underlying
// read error (including io.EOF) once the stream ends. The returned slice is
// owned by the caller.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	line, err := fr.r.ReadSlice('\n')
	if err != nil {
		if errors.Is(err, bufio.ErrBufferFull) {
			return nil, ErrFrameTooLarge
		}
		if len(line) > 0 && errors.Is(err, io.EOF) {
			// Final frame without a terminator; accept it so a peer that
			// closes immediately after writing is not silently dropped.
			return copyFrame(trimEOL(line)), nil
		}
		return nil, err
	}
	return copyFrame(trimEOL(line)), nil
}

func copyFrame(line []byte) []byte {
	// ReadSlice hands out a view into the internal buffer; detach it so the
	// frame survives the next read.
	frame := make([]byte, len(line))
	copy(frame, line)
	return frame
}

func trimEOL(line []byte) []byte {
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line
}

// WriteFrame writes payload as a single frame, appending the newline
// terminator. The payload and terminator go out in one Write call so a frame
// is never split across writes from the caller's perspective.
func WriteFrame(w io.Writer, payload []byte) error {
	frame := make([]byte, 0, len(payload)+1)
	frame = append(frame, payload...)
	frame = append(frame, '\n')
	_, err := w.Write(frame)
	return err
}
