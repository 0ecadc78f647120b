// Package codec frames the control protocol between a node and the
// coordination server: a 4-byte big-endian length prefix followed by a
// JSON body. Encode and decode are symmetric; a decode failure on any
// frame terminates the connection.
package codec

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"io"
	"time"

	"github.com/yanun0323/errors"

	"botnode/internal/model"
	"botnode/pkg/exception"
)

const (
	headerSize = 4

	// MaxFrameSize bounds a single control frame. Control messages are
	// tiny; anything larger is a corrupt stream.
	MaxFrameSize = 64 << 10
)

// Message kinds understood by this node. Anything else is an opaque
// server message, kept raw for logging.
const (
	KindHello = "hello"
	KindPing  = "ping"
)

// Message is one control frame.
type Message struct {
	Kind  string      `json:"kind"`
	BotID model.BotID `json:"botId,omitempty"`
	Time  int64       `json:"time,omitempty"`

	// Raw holds the undecoded body of inbound frames.
	Raw json.RawMessage `json:"-"`
}

// Hello is the first outbound message after connecting.
func Hello(id model.BotID) Message {
	return Message{Kind: KindHello, BotID: id}
}

// Ping is the periodic keepalive.
func Ping() Message {
	return Message{Kind: KindPing, Time: time.Now().UnixNano()}
}

// WriteMessage encodes msg and writes one frame.
func WriteMessage(w io.Writer, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "encode control message")
	}
	if len(body) > MaxFrameSize {
		return exception.ErrFrameTooLarge
	}

	var header [headerSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))
	if _, err := w.Write(header[:]); err != nil {
		return errors.Wrap(err, "write frame header")
	}
	if _, err := w.Write(body); err != nil {
		return errors.Wrap(err, "write frame body")
	}
	return nil
}

// ReadMessage reads and decodes one frame.
func ReadMessage(r *bufio.Reader) (Message, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.EOF {
			return Message{}, exception.ErrConnectionClose
		}
		return Message{}, errors.Wrap(err, "read frame header")
	}

	size := binary.BigEndian.Uint32(header[:])
	if size == 0 {
		return Message{}, exception.ErrInvalidFrame
	}
	if size > MaxFrameSize {
		return Message{}, exception.ErrFrameTooLarge
	}

	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return Message{}, errors.Wrap(err, "read frame body")
	}

	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return Message{}, errors.Wrap(err, "decode control message")
	}
	msg.Raw = body
	return msg, nil
}
