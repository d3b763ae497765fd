// Package proto is the JSON wire schema between clients and the chat server.
// Every document is an envelope {"type": ..., "payload": ...}.
package proto

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/Chat/internal/domain"
)

var (
	ErrMalformed   = errors.New("malformed payload")
	ErrUnknownType = errors.New("unknown request type")
)

const (
	TypeJoin   = "join"
	TypeLeave  = "leave"
	TypePost   = "post"
	TypeTyping = "typing"
)

type TypingStatus string

const (
	TypingStarted TypingStatus = "started"
	TypingStopped TypingStatus = "stopped"
)

func (s TypingStatus) Valid() bool { return s == TypingStarted || s == TypingStopped }

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Request is one decoded inbound message.
type Request interface {
	RequestType() string
}

type JoinRequest struct {
	Username string        `json:"username"`
	Room     domain.RoomID `json:"room"`
}

type LeaveRequest struct{}

type PostRequest struct {
	Message string `json:"message"`
}

type TypingRequest struct {
	Status TypingStatus `json:"status"`
}

func (JoinRequest) RequestType() string   { return TypeJoin }
func (LeaveRequest) RequestType() string  { return TypeLeave }
func (PostRequest) RequestType() string   { return TypePost }
func (TypingRequest) RequestType() string { return TypeTyping }

// Decode parses one inbound frame. Errors wrap ErrMalformed or ErrUnknownType.
func Decode(data []byte) (Request, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case TypeJoin:
		var p JoinRequest
		if err := decodePayload(env.Payload, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TypeLeave:
		return LeaveRequest{}, nil
	case TypePost:
		var p PostRequest
		if err := decodePayload(env.Payload, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TypeTyping:
		return decodeTyping(env.Payload)
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return fmt.Errorf("%w: missing payload", ErrMalformed)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// decodeTyping accepts {"status":"started"} and the bare "started" form.
func decodeTyping(raw json.RawMessage) (Request, error) {
	var status TypingStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		var p TypingRequest
		if err := decodePayload(raw, &p); err != nil {
			return nil, err
		}
		status = p.Status
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: typing status %q", ErrMalformed, status)
	}
	return TypingRequest{Status: status}, nil
}
