package protocol

// MessageID identifies a message sent by a node. IDs are never reused by
// the sender.
type MessageID uint64

// Value is a value broadcast across the cluster.
type Value int

// Type is the body type discriminator.
type Type string

const (
	TypeInit        Type = "init"
	TypeInitOK      Type = "init_ok"
	TypeEcho        Type = "echo"
	TypeEchoOK      Type = "echo_ok"
	TypeGenerate    Type = "generate"
	TypeGenerateOK  Type = "generate_ok"
	TypeBroadcast   Type = "broadcast"
	TypeBroadcastOK Type = "broadcast_ok"
	TypeRead        Type = "read"
	TypeReadOK      Type = "read_ok"
	TypeTopology    Type = "topology"
	TypeTopologyOK  Type = "topology_ok"
)

// Body is the payload of a message.
type Body interface {
	Type() Type
}

// Request is a body that expects a response from the receiver.
type Request interface {
	Body
	RequestID() MessageID
	// WithRequestID returns a copy of the request with the given message ID.
	WithRequestID(id MessageID) Request
}

// Response is a body sent in reply to a request.
type Response interface {
	Body
	ReplyTo() MessageID
}

// Init is the first message received by a node, assigning its ID and the
// IDs of all nodes in the cluster.
type Init struct {
	MsgID   MessageID `json:"msg_id"`
	NodeID  string    `json:"node_id"`
	NodeIDs []string  `json:"node_ids"`
}

func (b *Init) Type() Type { return TypeInit }

func (b *Init) RequestID() MessageID { return b.MsgID }

func (b *Init) WithRequestID(id MessageID) Request {
	c := *b
	c.MsgID = id
	return &c
}

type InitOK struct {
	MsgID     MessageID `json:"msg_id"`
	InReplyTo MessageID `json:"in_reply_to"`
}

func (b *InitOK) Type() Type { return TypeInitOK }

func (b *InitOK) ReplyTo() MessageID { return b.InReplyTo }

type Echo struct {
	MsgID MessageID `json:"msg_id"`
	Echo  string    `json:"echo"`
}

func (b *Echo) Type() Type { return TypeEcho }

func (b *Echo) RequestID() MessageID { return b.MsgID }

func (b *Echo) WithRequestID(id MessageID) Request {
	c := *b
	c.MsgID = id
	return &c
}

type EchoOK struct {
	MsgID     MessageID `json:"msg_id"`
	InReplyTo MessageID `json:"in_reply_to"`
	Echo      string    `json:"echo"`
}

func (b *EchoOK) Type() Type { return TypeEchoOK }

func (b *EchoOK) ReplyTo() MessageID { return b.InReplyTo }

// Generate requests a cluster-wide unique ID.
type Generate struct {
	MsgID MessageID `json:"msg_id"`
}

func (b *Generate) Type() Type { return TypeGenerate }

func (b *Generate) RequestID() MessageID { return b.MsgID }

func (b *Generate) WithRequestID(id MessageID) Request {
	c := *b
	c.MsgID = id
	return &c
}

type GenerateOK struct {
	MsgID     MessageID `json:"msg_id"`
	InReplyTo MessageID `json:"in_reply_to"`
	ID        string    `json:"id"`
}

func (b *GenerateOK) Type() Type { return TypeGenerateOK }

func (b *GenerateOK) ReplyTo() MessageID { return b.InReplyTo }

// Broadcast requests the receiver adds the value to its known set. It is
// sent both by clients and by nodes propagating a value to their peers.
type Broadcast struct {
	MsgID   MessageID `json:"msg_id"`
	Message Value     `json:"message"`
}

func (b *Broadcast) Type() Type { return TypeBroadcast }

func (b *Broadcast) RequestID() MessageID { return b.MsgID }

func (b *Broadcast) WithRequestID(id MessageID) Request {
	c := *b
	c.MsgID = id
	return &c
}

// BroadcastOK acknowledges a broadcast.
type BroadcastOK struct {
	MsgID     MessageID `json:"msg_id"`
	InReplyTo MessageID `json:"in_reply_to"`
}

func (b *BroadcastOK) Type() Type { return TypeBroadcastOK }

func (b *BroadcastOK) ReplyTo() MessageID { return b.InReplyTo }

type Read struct {
	MsgID MessageID `json:"msg_id"`
}

func (b *Read) Type() Type { return TypeRead }

func (b *Read) RequestID() MessageID { return b.MsgID }

func (b *Read) WithRequestID(id MessageID) Request {
	c := *b
	c.MsgID = id
	return &c
}

type ReadOK struct {
	MsgID     MessageID `json:"msg_id"`
	InReplyTo MessageID `json:"in_reply_to"`
	Messages  []Value   `json:"messages"`
}

func (b *ReadOK) Type() Type { return TypeReadOK }

func (b *ReadOK) ReplyTo() MessageID { return b.InReplyTo }

// Topology assigns the adjacent peers of every node in the cluster.
type Topology struct {
	MsgID    MessageID           `json:"msg_id"`
	Topology map[string][]string `json:"topology"`
}

func (b *Topology) Type() Type { return TypeTopology }

func (b *Topology) RequestID() MessageID { return b.MsgID }

func (b *Topology) WithRequestID(id MessageID) Request {
	c := *b
	c.MsgID = id
	return &c
}

type TopologyOK struct {
	MsgID     MessageID `json:"msg_id"`
	InReplyTo MessageID `json:"in_reply_to"`
}

func (b *TopologyOK) Type() Type { return TypeTopologyOK }

func (b *TopologyOK) ReplyTo() MessageID { return b.InReplyTo }

// newBody returns an empty body for the given type, or false if the type is
// unknown.
func newBody(t Type) (Body, bool) {
	switch t {
	case TypeInit:
		return &Init{}, true
	case TypeInitOK:
		return &InitOK{}, true
	case TypeEcho:
		return &Echo{}, true
	case TypeEchoOK:
		return &EchoOK{}, true
	case TypeGenerate:
		return &Generate{}, true
	case TypeGenerateOK:
		return &GenerateOK{}, true
	case TypeBroadcast:
		return &Broadcast{}, true
	case TypeBroadcastOK:
		return &BroadcastOK{}, true
	case TypeRead:
		return &Read{}, true
	case TypeReadOK:
		return &ReadOK{}, true
	case TypeTopology:
		return &Topology{}, true
	case TypeTopologyOK:
		return &TopologyOK{}, true
	default:
		return nil, false
	}
}

var _ Request = &Init{}
var _ Request = &Echo{}
var _ Request = &Generate{}
var _ Request = &Broadcast{}
var _ Request = &Read{}
var _ Request = &Topology{}

var _ Response = &InitOK{}
var _ Response = &EchoOK{}
var _ Response = &GenerateOK{}
var _ Response = &BroadcastOK{}
var _ Response = &ReadOK{}
var _ Response = &TopologyOK{}
