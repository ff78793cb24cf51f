package realtime

import "errors"

var (
	ErrProtocolDecode = errors.New("protocol decode")
	ErrPersistence    = errors.New("persistence failed")
	ErrDelivery       = errors.New("delivery failed")
	ErrSessionClosed  = errors.New("session closed")
	ErrInvalidGroup   = errors.New("invalid group key")
	ErrRegistryClosed = errors.New("registry closed")
)
