package proto

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrFrameTooLarge is returned when a record exceeds the decoder limit.
// The stream cannot be resynchronised after it.
var ErrFrameTooLarge = errors.New("proto: frame exceeds maximum size")

// SyntaxError reports a complete frame that is not a valid record.
// It is not fatal: the frame has been consumed and decoding may continue.
type SyntaxError struct {
	Err error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("proto: malformed record: %v", e.Err)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// Marshal encodes a record without the trailing delimiter.
func Marshal(rec Record) ([]byte, error) {
	return json.Marshal(rec)
}

// Unmarshal decodes a single frame. Invalid input yields a *SyntaxError.
func Unmarshal(frame []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(frame, &rec); err != nil {
		return Record{}, &SyntaxError{Err: err}
	}
	return rec, nil
}

// Decoder reads newline-delimited records from a stream, buffering partial
// frames across reads.
type Decoder struct {
	r   *bufio.Reader
	max int
	buf []byte
}

// NewDecoder wraps r. maxFrame <= 0 selects DefaultMaxFrameBytes.
func NewDecoder(r io.Reader, maxFrame int) *Decoder {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameBytes
	}
	return &Decoder{r: bufio.NewReader(r), max: maxFrame}
}

// Decode returns the next record. Blank lines are skipped. A stream that ends
// in the middle of a frame returns io.ErrUnexpectedEOF.
func (d *Decoder) Decode() (Record, error) {
	for {
		frame, err := d.readFrame()
		if err != nil {
			return Record{}, err
		}
		frame = bytes.TrimSpace(frame)
		if len(frame) == 0 {
			continue
		}
		return Unmarshal(frame)
	}
}

func (d *Decoder) readFrame() ([]byte, error) {
	d.buf = d.buf[:0]
	for {
		chunk, err := d.r.ReadSlice('\n')

		n := len(d.buf) + len(chunk)
		if err == nil {
			n-- // delimiter
		}
		if n > d.max {
			return nil, ErrFrameTooLarge
		}
		d.buf = append(d.buf, chunk...)

		switch {
		case err == nil:
			return d.buf[:len(d.buf)-1], nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if len(bytes.TrimSpace(d.buf)) > 0 {
				return nil, io.ErrUnexpectedEOF
			}
			return nil, io.EOF
		default:
			return nil, err
		}
	}
}

// Encoder writes one record per line. Safe for concurrent use.
type Encoder struct {
	mu sync.Mutex
	w  io.Writer
}

// NewEncoder wraps w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes rec followed by the delimiter in a single Write.
func (e *Encoder) Encode(rec Record) error {
	data, err := Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	data = append(data, '\n')

	e.mu.Lock()
	defer e.mu.Unlock()
	if _, err := e.w.Write(data); err != nil {
		return err
	}
	return nil
}
