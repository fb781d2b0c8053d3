package protocol

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MaxFrameSize caps a single payload frame. Frames above this are
// rejected before any allocation, bounding memory per connection.
const MaxFrameSize = 16 << 20

// MaxLineLength caps a command or argument line.
const MaxLineLength = 4096

// ErrFrameTooLarge indicates a frame header announcing more than
// MaxFrameSize bytes.
var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// ErrLineTooLong indicates a command or argument line longer than
// MaxLineLength.
var ErrLineTooLong = errors.New("line exceeds maximum length")

// WriteFrame writes one payload frame: a 4-byte big-endian length
// header followed by the payload bytes. Empty payloads are not valid
// data frames; use WriteDone for the end-of-stream marker.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// WriteDone writes the zero-length frame that terminates a payload
// stream.
func WriteDone(w io.Writer) error {
	var header [4]byte
	_, err := w.Write(header[:])
	return err
}

// ReadFrame reads one frame. It returns io.EOF (with a nil payload)
// only when the explicit zero-length end-of-stream frame is read; a
// connection that ends without one surfaces as io.ErrUnexpectedEOF, so
// a dropped sender is never mistaken for a completed stream.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, io.ErrUnexpectedEOF
		}
		return nil, err
	}
	n := binary.BigEndian.Uint32(header[:])
	if n == 0 {
		return nil, io.EOF
	}
	if n > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("short frame: %w", err)
	}
	return payload, nil
}

// WriteFrames splits src into chunkSize frames, writes them to w, and
// finishes with the end-of-stream frame. It returns the number of
// payload bytes written.
func WriteFrames(w io.Writer, src io.Reader, chunkSize int) (int64, error) {
	buf := make([]byte, chunkSize)
	var total int64
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if werr := WriteFrame(w, buf[:n]); werr != nil {
				return total, werr
			}
			total += int64(n)
		}
		if err == io.EOF {
			return total, WriteDone(w)
		}
		if err != nil {
			return total, err
		}
	}
}

// ReadFrames copies payload frames from src to dst until the
// end-of-stream frame. It returns the number of payload bytes copied.
func ReadFrames(dst io.Writer, src io.Reader) (int64, error) {
	var total int64
	for {
		payload, err := ReadFrame(src)
		if err == io.EOF {
			return total, nil
		}
		if err != nil {
			return total, err
		}
		n, err := dst.Write(payload)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
}

// ReadLine reads one newline-terminated UTF-8 line, with CR/LF and
// surrounding whitespace trimmed.
func ReadLine(r *bufio.Reader) (string, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		line = append(line, chunk...)
		if len(line) > MaxLineLength {
			return "", ErrLineTooLong
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		if err != nil && len(line) == 0 {
			return "", err
		}
		return strings.TrimSpace(string(line)), nil
	}
}

// WriteLine writes s followed by a newline.
func WriteLine(w io.Writer, s string) error {
	_, err := io.WriteString(w, s+"\n")
	return err
}
