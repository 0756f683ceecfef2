package actor

import "errors"

var (
	// ErrBehaviourNotFound is returned by Call when no behaviour is
	// attached under the requested id.
	ErrBehaviourNotFound = errors.New("behaviour not attached")

	// ErrBehaviourAttached is returned by Attach when the id is already
	// taken on this actor.
	ErrBehaviourAttached = errors.New("behaviour already attached")

	// ErrActorDown is reported to callers whose message reached an actor
	// that terminated before (or while) processing it.
	ErrActorDown = errors.New("actor is down")
)
