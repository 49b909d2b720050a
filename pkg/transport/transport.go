// Package transport delivers protocol messages to and from a node.
package transport

import (
	"bufio"
	"fmt"
	"io"
	"sync"

	"github.com/andydunstall/rumor/pkg/protocol"
)

const (
	maxLineSize = 1 << 20
)

// Transport receives inbound messages one at a time and sends outbound
// messages.
//
// There is no ordering guarantee between messages sent to different
// destinations.
type Transport interface {
	// Recv blocks until the next inbound message is available. Returns
	// io.EOF when there are no more messages.
	//
	// If a message can't be decoded a *DecodeError is returned and the
	// following call to Recv reads the next message.
	Recv() (*protocol.Message, error)

	// Send sends the given message. Send is safe to call concurrently.
	Send(m *protocol.Message) error
}

// DecodeError is returned when an inbound message can't be decoded, such as
// if the body type is unknown.
type DecodeError struct {
	Line []byte
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode: %s", e.Err.Error())
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Stream is a Transport that reads and writes newline delimited JSON
// messages, such as over the processes stdin and stdout.
type Stream struct {
	scanner *bufio.Scanner

	w io.Writer
	// mu protects writes to w.
	mu sync.Mutex
}

func NewStream(r io.Reader, w io.Writer) *Stream {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &Stream{
		scanner: scanner,
		w:       w,
	}
}

func (s *Stream) Recv() (*protocol.Message, error) {
	for s.scanner.Scan() {
		line := s.scanner.Bytes()
		if len(line) == 0 {
			// Ignore empty lines.
			continue
		}

		m, err := protocol.Decode(line)
		if err != nil {
			// Copy the line since the scanner reuses its buffer.
			return nil, &DecodeError{
				Line: append([]byte(nil), line...),
				Err:  err,
			}
		}
		return m, nil
	}
	if err := s.scanner.Err(); err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return nil, io.EOF
}

func (s *Stream) Send(m *protocol.Message) error {
	b, err := protocol.Encode(m)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	b = append(b, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.w.Write(b); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

var _ Transport = &Stream{}
