package session

import "errors"

// ErrSessionNotEstablished is returned by Send/SendWithAck when no
// session_id has been latched yet: the data model forbids sending a
// session-bound frame before the server's connection-ack assigns one.
var ErrSessionNotEstablished = errors.New("session-not-established")
