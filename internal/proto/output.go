package proto

import (
	"encoding/json"

	"github.com/dkeye/Chat/internal/domain"
)

const (
	TypeError      = "error"
	TypeRooms      = "rooms"
	TypeJoined     = "joined"
	TypeUserJoined = "user-joined"
	TypeUserLeft   = "user-left"
	TypePosted     = "posted"
	TypeUserPosted = "user-posted"
	TypeUserTyping = "user-typing"
)

type ErrorCode string

const (
	CodeNameTaken          ErrorCode = "name-taken"
	CodeInvalidName        ErrorCode = "invalid-name"
	CodeNotJoined          ErrorCode = "not-joined"
	CodeInvalidMessageBody ErrorCode = "invalid-message-body"
	CodeRoomFull           ErrorCode = "room-full"
	CodeInvalidPayload     ErrorCode = "invalid-payload"
)

// Event is one outbound message.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type ErrorPayload struct {
	Code ErrorCode `json:"code"`
}

type RoomsPayload struct {
	Rooms []domain.RoomInfo `json:"rooms"`
}

type JoinedPayload struct {
	User     domain.User      `json:"user"`
	Others   []domain.User    `json:"others"`
	Messages []domain.Message `json:"messages"`
	Typing   []domain.User    `json:"typing,omitempty"`
}

type UserPayload struct {
	User domain.User `json:"user"`
}

type MessagePayload struct {
	Message domain.Message `json:"message"`
}

type TypingPayload struct {
	Status TypingStatus `json:"status"`
	User   domain.User  `json:"user"`
}

func Error(code ErrorCode) Event {
	return Event{Type: TypeError, Payload: ErrorPayload{Code: code}}
}

func Rooms(rooms []domain.RoomInfo) Event {
	if rooms == nil {
		rooms = []domain.RoomInfo{}
	}
	return Event{Type: TypeRooms, Payload: RoomsPayload{Rooms: rooms}}
}

func Joined(user domain.User, others []domain.User, messages []domain.Message, typing []domain.User) Event {
	if others == nil {
		others = []domain.User{}
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	return Event{Type: TypeJoined, Payload: JoinedPayload{
		User:     user,
		Others:   others,
		Messages: messages,
		Typing:   typing,
	}}
}

func UserJoined(user domain.User) Event {
	return Event{Type: TypeUserJoined, Payload: UserPayload{User: user}}
}

func UserLeft(user domain.User) Event {
	return Event{Type: TypeUserLeft, Payload: UserPayload{User: user}}
}

func Posted(m domain.Message) Event {
	return Event{Type: TypePosted, Payload: MessagePayload{Message: m}}
}

func UserPosted(m domain.Message) Event {
	return Event{Type: TypeUserPosted, Payload: MessagePayload{Message: m}}
}

func UserTyping(status TypingStatus, user domain.User) Event {
	return Event{Type: TypeUserTyping, Payload: TypingPayload{Status: status, User: user}}
}

// Encode marshals ev into a single text frame.
func Encode(ev Event) ([]byte, error) {
	return json.Marshal(ev)
}
