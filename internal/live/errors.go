package live

import "errors"

var (
	// ErrSessionNotFound is returned for ids that are not registered.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidTransition is returned by Promote for anything other than
	// listener to broadcaster.
	ErrInvalidTransition = errors.New("invalid role transition")

	// ErrNotBroadcaster is returned when a listener tries to start a broadcast.
	ErrNotBroadcaster = errors.New("session is not a broadcaster")

	// ErrAlreadyLive is returned when a broadcast is already running.
	ErrAlreadyLive = errors.New("a broadcast is already live")

	// ErrNotLive is returned when stopping while no broadcast is running.
	ErrNotLive = errors.New("no broadcast is live")

	// ErrNotOwner is returned when a session other than the broadcaster tries
	// to stop the broadcast.
	ErrNotOwner = errors.New("session does not own the broadcast")

	// ErrInvalidBroadcast is returned for a missing or oversized title or description.
	ErrInvalidBroadcast = errors.New("invalid broadcast metadata")

	// ErrInvalidChat is returned for empty or oversized chat fields.
	ErrInvalidChat = errors.New("invalid chat message")

	// ErrDeliveryFailed is returned by SendTo when the recipient could not
	// accept the event and was dropped.
	ErrDeliveryFailed = errors.New("event delivery failed")
)

// clientMessage maps an error to the text sent to realtime clients. Nothing
// internal leaks through.
func clientMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotBroadcaster):
		return "Join as broadcaster before starting a broadcast"
	case errors.Is(err, ErrAlreadyLive):
		return "A broadcast is already live"
	case errors.Is(err, ErrNotLive):
		return "No broadcast is live"
	case errors.Is(err, ErrNotOwner):
		return "Only the broadcaster can stop this broadcast"
	case errors.Is(err, ErrInvalidBroadcast):
		return "Broadcast title is required and must be under 200 characters"
	case errors.Is(err, ErrInvalidChat):
		return "Chat messages need a username (max 80) and a message (max 2000)"
	case errors.Is(err, ErrInvalidTransition):
		return "Role change not allowed"
	case errors.Is(err, ErrSessionNotFound):
		return "Session is no longer connected"
	default:
		return "Request failed"
	}
}
