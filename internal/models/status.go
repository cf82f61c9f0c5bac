package models

import "fmt"

// Status is the processing state of a ledger entry. A row moves
// PENDING → ACK_SENT → SUCCESS (reversal path) or is written once as
// STORED (original path) and never regresses.
type Status string

const (
	// StatusPending marks a reversal that has been detected but not yet
	// acknowledged to the source network.
	StatusPending Status = "PENDING"

	// StatusAckSent marks a reversal whose acknowledgement has been
	// accepted by the source network but whose funds are not yet forwarded.
	StatusAckSent Status = "ACK_SENT"

	// StatusSuccess marks a reversal that has been acknowledged, forwarded
	// and recorded. Terminal.
	StatusSuccess Status = "SUCCESS"

	// StatusStored marks a non-reversal payment kept for content pairing.
	// Terminal.
	StatusStored Status = "STORED"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAckSent, StatusSuccess, StatusStored:
		return true
	}
	return false
}

// Terminal reports whether no further transition is expected from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusStored:
		return true
	case StatusPending, StatusAckSent:
		return false
	}
	return false
}

// ParseStatus converts a stored string into a Status, rejecting unknown values.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", fmt.Errorf("unknown transaction status %q", raw)
	}
	return s, nil
}
