package engine

import (
	"errors"
	"fmt"
)

// RejectReason identifies the single check that failed for a candidate bid.
type RejectReason string

const (
	ReasonSquadFull          RejectReason = "SquadFull"
	ReasonCategoryMaxReached RejectReason = "CategoryMaxReached"
	ReasonReserveBreach      RejectReason = "ReserveBreach"
	ReasonInsufficientFunds  RejectReason = "InsufficientFunds"
	ReasonAlreadyLeading     RejectReason = "AlreadyLeading"
	ReasonPaused             RejectReason = "Paused"
	ReasonNotIncreasing      RejectReason = "NotIncreasing"
)

// BidRejected is returned when a candidate bid fails validation. It is
// local and non-retryable; the reason is surfaced verbatim to the bidder.
type BidRejected struct {
	Reason RejectReason
	Detail string
}

func (e *BidRejected) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("bid rejected: %s", e.Reason)
	}
	return fmt.Sprintf("bid rejected: %s (%s)", e.Reason, e.Detail)
}

// NotFoundError reports a missing referenced entity; the whole operation
// aborts.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

var (
	// ErrNoLotsRemaining means the available pool is empty.
	ErrNoLotsRemaining = errors.New("no lots remaining in the pool")

	// ErrNoWinner means sellLot was called with no highest bidder and no
	// explicit override.
	ErrNoWinner = errors.New("no winning team for the current lot")

	// ErrBusy is surfaced after a bounded number of transaction conflict
	// retries; the caller may try the whole command again.
	ErrBusy = errors.New("auction is busy, try again")

	// ErrForbidden means the caller's role does not permit the command.
	ErrForbidden = errors.New("forbidden")

	// ErrNoLiveLot guards operations that require an in-progress lot.
	ErrNoLiveLot = errors.New("no lot is currently in progress")

	// ErrAuctionFinished guards lot operations after endAuction.
	ErrAuctionFinished = errors.New("auction is finished")

	// ErrLotInProgress guards corrections against the live lot.
	ErrLotInProgress = errors.New("lot is still in progress")
)

func reject(reason RejectReason, format string, args ...any) *BidRejected {
	return &BidRejected{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}
