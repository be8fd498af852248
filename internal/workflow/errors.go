package workflow

import (
	"errors"
	"log"
	"net/url"

	"library_desk/internal/service"
)

var (
	// ErrStale: a newer request for the same container was issued meanwhile;
	// the result was dropped.
	ErrStale = errors.New("superseded by a newer request")

	ErrUnknownReader = errors.New("unknown reader")
)

// logFailure logs the kind of failure without URLs, queries or payloads.
func logFailure(scope string, err error) {
	var se *service.StatusError
	var ue *url.Error
	switch {
	case errors.As(err, &se):
		log.Printf("%s: backend status %d", scope, se.Code)
	case errors.As(err, &ue):
		log.Printf("%s: transport error (%s): %v", scope, ue.Op, ue.Err)
	default:
		log.Printf("%s: unreadable response", scope)
	}
}
