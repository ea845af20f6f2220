package domain

import "time"

type ConnectionState string

const (
	StateIdle        ConnectionState = "idle"
	StateProbing     ConnectionState = "probing"
	StateSelecting   ConnectionState = "selecting"
	StateHandshaking ConnectionState = "handshaking"
	StateConnected   ConnectionState = "connected"
	StateFailed      ConnectionState = "failed"
)

// Busy reports whether an attempt occupies the state machine.
func (s ConnectionState) Busy() bool {
	switch s {
	case StateProbing, StateSelecting, StateHandshaking:
		return true
	default:
		return false
	}
}

type AttemptStatus string

const (
	AttemptIdle                 AttemptStatus = "idle"
	AttemptProbing              AttemptStatus = "probing"
	AttemptAwaitingUserApproval AttemptStatus = "awaitingUserApproval"
	AttemptEstablishing         AttemptStatus = "establishing"
	AttemptSucceeded            AttemptStatus = "succeeded"
	AttemptFailed               AttemptStatus = "failed"
)

type ConnectionAttempt struct {
	ID            uint64
	Requested     WalletType
	Selected      WalletType
	Status        AttemptStatus
	FailureReason string
	StartedAt     time.Time
}
