package domain

import "errors"

const (
	TypeDraw      = "draw"
	TypeClear     = "clear"
	TypeUserCount = "userCount"
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendBufferFull   = errors.New("send buffer full")
)

// Envelope is the part of every frame the relay looks at. Everything else in
// the payload is forwarded untouched.
type Envelope struct {
	Type string `json:"type"`
}

// DrawMessage is a single line segment in canvas-fraction coordinates.
type DrawMessage struct {
	Type  string  `json:"type"`
	X1    float64 `json:"x1"`
	Y1    float64 `json:"y1"`
	X2    float64 `json:"x2"`
	Y2    float64 `json:"y2"`
	Color string  `json:"color"`
	Size  float64 `json:"size"`
}

type ClearMessage struct {
	Type string `json:"type"`
}

// PresenceMessage is generated by the server only.
type PresenceMessage struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

func NewPresenceMessage(count int) PresenceMessage {
	return PresenceMessage{Type: TypeUserCount, Count: count}
}

type Stats struct {
	Participants int    `json:"participants"`
	Relayed      uint64 `json:"relayed"`
	Evicted      uint64 `json:"evicted"`
}

type Connection interface {
	ID() string
	Send(data []byte) error
	Close() error
}

type Broadcaster interface {
	Register(conn Connection)
	Unregister(conn Connection)
	Broadcast(sender Connection, data []byte)
	Size() int
}

type MessageHandler interface {
	Handle(conn Connection, data []byte)
}
