package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnknownType is returned when decoding a message whose body type
	// isn't supported.
	ErrUnknownType = errors.New("unknown body type")
)

// Message is an envelope addressed from one node to another.
type Message struct {
	Src  string
	Dest string
	Body Body
}

// Reply returns a message in reply to req, addressed to the sender of req.
func Reply(req *Message, body Response) *Message {
	return &Message{
		Src:  req.Dest,
		Dest: req.Src,
		Body: body,
	}
}

// WithRequestID returns a copy of the message with the request body
// re-identified with the given ID.
//
// Returns false if the message body isn't a request.
func (m *Message) WithRequestID(id MessageID) (*Message, bool) {
	req, ok := m.Body.(Request)
	if !ok {
		return nil, false
	}
	return &Message{
		Src:  m.Src,
		Dest: m.Dest,
		Body: req.WithRequestID(id),
	}, true
}

type envelope struct {
	Src  string          `json:"src"`
	Dest string          `json:"dest"`
	Body json.RawMessage `json:"body"`
}

func (m *Message) MarshalJSON() ([]byte, error) {
	if m.Body == nil {
		return nil, fmt.Errorf("missing body")
	}

	b, err := json.Marshal(m.Body)
	if err != nil {
		return nil, fmt.Errorf("body: %w", err)
	}

	// Add the type discriminator to the body fields.
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return nil, fmt.Errorf("body: %w", err)
	}
	t, _ := json.Marshal(m.Body.Type())
	fields["type"] = t

	b, err = json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("body: %w", err)
	}

	return json.Marshal(&envelope{
		Src:  m.Src,
		Dest: m.Dest,
		Body: b,
	})
}

func (m *Message) UnmarshalJSON(b []byte) error {
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return err
	}
	if len(env.Body) == 0 {
		return fmt.Errorf("missing body")
	}

	var header struct {
		Type Type `json:"type"`
	}
	if err := json.Unmarshal(env.Body, &header); err != nil {
		return fmt.Errorf("body: %w", err)
	}

	body, ok := newBody(header.Type)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownType, header.Type)
	}
	if err := json.Unmarshal(env.Body, body); err != nil {
		return fmt.Errorf("body: %s: %w", header.Type, err)
	}

	m.Src = env.Src
	m.Dest = env.Dest
	m.Body = body
	return nil
}

// Encode encodes the message as a single line of JSON (excluding the
// trailing newline).
func Encode(m *Message) ([]byte, error) {
	return json.Marshal(m)
}

// Decode decodes a single line of JSON.
func Decode(b []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
