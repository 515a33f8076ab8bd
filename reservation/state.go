package reservation

import (
	"chargeset/models"
	"chargeset/types"
	"context"

	"github.com/looplab/fsm"
)

const (
	EventBegin    = "begin"
	EventStart    = "start"
	EventComplete = "complete"
	EventExpire   = "expire"
	EventCancel   = "cancel"
)

// Verdict maps a reservation status to the authorization verdict returned to
// the station. Only WAITING admits a session; COMPLETED intentionally maps to
// ConcurrentTx until product clarifies whether a spent reservation should
// read as Invalid instead.
func Verdict(status string) types.AuthorizationStatus {
	switch status {
	case models.ReservationStatusActive:
		return types.AuthorizationStatusNotAtThisTime
	case models.ReservationStatusWaiting:
		return types.AuthorizationStatusAccepted
	case models.ReservationStatusOngoing:
		return types.AuthorizationStatusConcurrentTx
	case models.ReservationStatusExpired:
		return types.AuthorizationStatusExpired
	case models.ReservationStatusCompleted:
		return types.AuthorizationStatusConcurrentTx
	case models.ReservationStatusCancelled:
		return types.AuthorizationStatusInvalid
	default:
		return types.AuthorizationStatusUnknown
	}
}

// State guards the legal reservation transitions in memory. The persistent
// store stays authoritative: every transition is still written as a
// conditional single-document update, this machine only rejects requests that
// could never succeed.
type State struct {
	machine *fsm.FSM
}

func NewState(status string) *State {
	return &State{
		machine: fsm.NewFSM(
			status,
			fsm.Events{
				{Name: EventBegin, Src: []string{models.ReservationStatusActive}, Dst: models.ReservationStatusWaiting},
				{Name: EventStart, Src: []string{models.ReservationStatusWaiting}, Dst: models.ReservationStatusOngoing},
				{Name: EventComplete, Src: []string{models.ReservationStatusOngoing}, Dst: models.ReservationStatusCompleted},
				{Name: EventExpire, Src: []string{models.ReservationStatusActive, models.ReservationStatusWaiting}, Dst: models.ReservationStatusExpired},
				{Name: EventCancel, Src: []string{models.ReservationStatusActive, models.ReservationStatusWaiting}, Dst: models.ReservationStatusCancelled},
			},
			fsm.Callbacks{},
		),
	}
}

func (s *State) Current() string {
	return s.machine.Current()
}

func (s *State) Can(event string) bool {
	return s.machine.Can(event)
}

func (s *State) Fire(ctx context.Context, event string) error {
	return s.machine.Event(ctx, event)
}

func (s *State) Verdict() types.AuthorizationStatus {
	return Verdict(s.machine.Current())
}
