// README: Coordinator errors. The message texts are part of the client
// contract and must not be reworded.
package order

import "errors"

var (
	ErrOrderNotFound      = errors.New("Order not found")
	ErrOrderNotAvailable  = errors.New("Order is not available")
	ErrWorkerNotAvailable = errors.New("Worker is not available")
	ErrNotNotified        = errors.New("Worker was not notified or already responded")
	ErrAlreadyAccepted    = errors.New("You have already accepted this order, you cannot reject it")
	ErrNotConfirmable     = errors.New("Order is not available for confirmation")
	ErrNotParticipant     = errors.New("You are not part of this order")
	ErrNotCancellable     = errors.New("Order not in cancellable status")
	ErrPermissionDenied   = errors.New("Permission denied")
	ErrNoWorkersToCancel  = errors.New("No workers to cancel")

	// ErrBadRequest covers malformed input rejected before any state is
	// touched; not part of the fixed-string contract.
	ErrBadRequest = errors.New("bad request")
)
