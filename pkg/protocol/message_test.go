package protocol

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage_Decode(t *testing.T) {
	t.Run("init", func(t *testing.T) {
		m, err := Decode([]byte(
			`{"src":"c0","dest":"n1","body":{"type":"init","msg_id":1,"node_id":"n1","node_ids":["n1","n2","n3"]}}`,
		))
		require.NoError(t, err)

		assert.Equal(t, "c0", m.Src)
		assert.Equal(t, "n1", m.Dest)
		assert.Equal(t, &Init{
			MsgID:   1,
			NodeID:  "n1",
			NodeIDs: []string{"n1", "n2", "n3"},
		}, m.Body)
	})

	t.Run("broadcast", func(t *testing.T) {
		m, err := Decode([]byte(
			`{"src":"c1","dest":"n1","body":{"type":"broadcast","msg_id":4,"message":1000}}`,
		))
		require.NoError(t, err)

		assert.Equal(t, &Broadcast{MsgID: 4, Message: 1000}, m.Body)
	})

	t.Run("topology", func(t *testing.T) {
		m, err := Decode([]byte(
			`{"src":"c1","dest":"n1","body":{"type":"topology","msg_id":2,"topology":{"n1":["n2","n3"],"n2":["n1"],"n3":["n1"]}}}`,
		))
		require.NoError(t, err)

		assert.Equal(t, &Topology{
			MsgID: 2,
			Topology: map[string][]string{
				"n1": {"n2", "n3"},
				"n2": {"n1"},
				"n3": {"n1"},
			},
		}, m.Body)
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := Decode([]byte(
			`{"src":"c1","dest":"n1","body":{"type":"txn","msg_id":1}}`,
		))
		assert.True(t, errors.Is(err, ErrUnknownType))
	})

	t.Run("missing body", func(t *testing.T) {
		_, err := Decode([]byte(`{"src":"c1","dest":"n1"}`))
		assert.Error(t, err)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := Decode([]byte(`{"src":`))
		assert.Error(t, err)
	})
}

func TestMessage_Encode(t *testing.T) {
	t.Run("broadcast ok", func(t *testing.T) {
		b, err := Encode(&Message{
			Src:  "n1",
			Dest: "c1",
			Body: &BroadcastOK{MsgID: 5, InReplyTo: 4},
		})
		require.NoError(t, err)

		assert.JSONEq(
			t,
			`{"src":"n1","dest":"c1","body":{"type":"broadcast_ok","msg_id":5,"in_reply_to":4}}`,
			string(b),
		)
	})

	t.Run("read ok empty", func(t *testing.T) {
		b, err := Encode(&Message{
			Src:  "n1",
			Dest: "c1",
			Body: &ReadOK{MsgID: 2, InReplyTo: 1, Messages: []Value{}},
		})
		require.NoError(t, err)

		var decoded map[string]map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(b, &decoded))
		assert.Equal(t, "[]", string(decoded["body"]["messages"]))
		assert.Equal(t, `"read_ok"`, string(decoded["body"]["type"]))
	})

	t.Run("missing body", func(t *testing.T) {
		_, err := Encode(&Message{Src: "n1", Dest: "c1"})
		assert.Error(t, err)
	})

	t.Run("round trip", func(t *testing.T) {
		m := &Message{
			Src:  "n1",
			Dest: "n2",
			Body: &Broadcast{MsgID: 8, Message: 12},
		}
		b, err := Encode(m)
		require.NoError(t, err)

		decoded, err := Decode(b)
		require.NoError(t, err)
		assert.Equal(t, m, decoded)
	})
}

func TestMessage_WithRequestID(t *testing.T) {
	t.Run("request", func(t *testing.T) {
		m := &Message{
			Src:  "n1",
			Dest: "n2",
			Body: &Broadcast{MsgID: 8, Message: 12},
		}

		resent, ok := m.WithRequestID(20)
		require.True(t, ok)
		assert.Equal(t, &Broadcast{MsgID: 20, Message: 12}, resent.Body)
		assert.Equal(t, "n1", resent.Src)
		assert.Equal(t, "n2", resent.Dest)

		// The original message must not be modified.
		assert.Equal(t, &Broadcast{MsgID: 8, Message: 12}, m.Body)
	})

	t.Run("response", func(t *testing.T) {
		m := &Message{
			Src:  "n1",
			Dest: "n2",
			Body: &BroadcastOK{MsgID: 8, InReplyTo: 3},
		}

		_, ok := m.WithRequestID(20)
		assert.False(t, ok)
	})
}

func TestReply(t *testing.T) {
	req := &Message{
		Src:  "c1",
		Dest: "n1",
		Body: &Read{MsgID: 3},
	}
	resp := Reply(req, &ReadOK{MsgID: 7, InReplyTo: 3, Messages: []Value{1}})
	assert.Equal(t, "n1", resp.Src)
	assert.Equal(t, "c1", resp.Dest)
	assert.Equal(t, MessageID(3), resp.Body.(Response).ReplyTo())
}
