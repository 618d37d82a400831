package contracts

import (
	"context"

	"github.com/julienschmidt/httprouter"
)

type Handler interface {
	RegisterRoutes(*httprouter.Router)
}

// Job is a background task owned by the application. Stop must return only
// after any in-flight work has finished.
type Job interface {
	Start()
	Stop()
}

// Closer releases a resource during shutdown, in the order it was added.
type Closer interface {
	Close(ctx context.Context) error
}

// CloserFunc adapts a function to Closer.
type CloserFunc func(ctx context.Context) error

func (f CloserFunc) Close(ctx context.Context) error { return f(ctx) }
