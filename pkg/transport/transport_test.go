package transport

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andydunstall/rumor/pkg/protocol"
)

func TestStream_Recv(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		r := strings.NewReader(
			`{"src":"c1","dest":"n1","body":{"type":"read","msg_id":1}}
{"src":"c1","dest":"n1","body":{"type":"broadcast","msg_id":2,"message":5}}
`)
		s := NewStream(r, io.Discard)

		m, err := s.Recv()
		require.NoError(t, err)
		assert.Equal(t, &protocol.Read{MsgID: 1}, m.Body)

		m, err = s.Recv()
		require.NoError(t, err)
		assert.Equal(t, &protocol.Broadcast{MsgID: 2, Message: 5}, m.Body)

		_, err = s.Recv()
		assert.Equal(t, io.EOF, err)
	})

	t.Run("skip empty lines", func(t *testing.T) {
		r := strings.NewReader(`

{"src":"c1","dest":"n1","body":{"type":"read","msg_id":1}}`)
		s := NewStream(r, io.Discard)

		m, err := s.Recv()
		require.NoError(t, err)
		assert.Equal(t, &protocol.Read{MsgID: 1}, m.Body)
	})

	t.Run("decode error", func(t *testing.T) {
		r := strings.NewReader(
			`{"src":"c1","dest":"n1","body":{"type":"unknown","msg_id":1}}
{"src":"c1","dest":"n1","body":{"type":"read","msg_id":2}}
`)
		s := NewStream(r, io.Discard)

		_, err := s.Recv()
		var decodeErr *DecodeError
		require.True(t, errors.As(err, &decodeErr))
		assert.True(t, errors.Is(err, protocol.ErrUnknownType))
		assert.Contains(t, string(decodeErr.Line), "unknown")

		// The next message should still be readable.
		m, err := s.Recv()
		require.NoError(t, err)
		assert.Equal(t, &protocol.Read{MsgID: 2}, m.Body)
	})
}

func TestStream_Send(t *testing.T) {
	var buf bytes.Buffer
	s := NewStream(strings.NewReader(""), &buf)

	require.NoError(t, s.Send(&protocol.Message{
		Src:  "n1",
		Dest: "c1",
		Body: &protocol.TopologyOK{MsgID: 1, InReplyTo: 2},
	}))
	require.NoError(t, s.Send(&protocol.Message{
		Src:  "n1",
		Dest: "n2",
		Body: &protocol.Broadcast{MsgID: 2, Message: 3},
	}))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Equal(t, 2, len(lines))
	assert.JSONEq(
		t,
		`{"src":"n1","dest":"c1","body":{"type":"topology_ok","msg_id":1,"in_reply_to":2}}`,
		lines[0],
	)
	assert.JSONEq(
		t,
		`{"src":"n1","dest":"n2","body":{"type":"broadcast","msg_id":2,"message":3}}`,
		lines[1],
	)
}

type errWriter struct{}

func (w *errWriter) Write(_ []byte) (int, error) {
	return 0, errors.New("closed")
}

func TestStream_SendError(t *testing.T) {
	s := NewStream(strings.NewReader(""), &errWriter{})
	assert.Error(t, s.Send(&protocol.Message{
		Src:  "n1",
		Dest: "c1",
		Body: &protocol.Read{MsgID: 1},
	}))
}
