package domain

import "fmt"

const DefaultMaxClients = 10

type (
	RoomName string
	RoomID   string
)

type Room struct {
	ID         RoomID
	Name       RoomName
	MaxClients int
}

// DerivedRoomName names a room created implicitly by a join.
func DerivedRoomName(username string) RoomName {
	return RoomName(fmt.Sprintf("%s's room", username))
}

// RoomInfo is the listing entry sent to browsing clients.
type RoomInfo struct {
	ID               RoomID   `json:"id"`
	Name             RoomName `json:"name"`
	ConnectedClients int      `json:"connectedClients"`
	MaxClients       int      `json:"maxClients"`
}
