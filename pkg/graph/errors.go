package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrService is returned by Extract once every attempt against the
	// text-generation service has failed.
	ErrService = errors.New("text-generation service failed")

	// ErrEmptyResponse is returned when the cleaned response is blank.
	ErrEmptyResponse = errors.New("empty response from text-generation service")

	ErrInvalidFragment = errors.New("invalid fragment")
	ErrUnknownLabel    = errors.New("unknown node label")
	ErrUnknownEdgeType = errors.New("unknown edge type")
	ErrDroppedEndpoint = errors.New("edge endpoint dropped")
)

// MalformedJSONError reports a response that could not be parsed as a
// fragment. Raw holds the cleaned response text exactly as parsed.
type MalformedJSONError struct {
	Raw string
	Err error
}

func (e *MalformedJSONError) Error() string {
	return fmt.Sprintf("malformed fragment json: %v", e.Err)
}

func (e *MalformedJSONError) Unwrap() error {
	return e.Err
}
