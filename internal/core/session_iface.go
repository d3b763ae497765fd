package core

import "github.com/dkeye/Chat/internal/domain"

type SessionID string

// UserID is the public id of the session's user.
func (sid SessionID) UserID() domain.UserID { return domain.UserID(sid) }
