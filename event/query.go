package event

import (
	"fmt"

	"github.com/coaty-io/coaty-go/filter"
	"github.com/coaty-io/coaty-go/object"
)

// QueryEvent asks the fleet for objects matching Filter.
type QueryEvent struct {
	Base
	Filter filter.ObjectFilter `json:"filter"`

	// retrieve, when non-nil, is wired by the Communication Manager on
	// the receiving side; never marshaled.
	retrieve func(RetrieveEvent) error
}

func (e *QueryEvent) Validate() error {
	return nil // an empty filter matching everything is a legal query
}

// WithRetriever returns a copy of e with its reply callback attached.
func (e QueryEvent) WithRetriever(fn func(RetrieveEvent) error) QueryEvent {
	e.retrieve = fn
	return e
}

// Retrieve replies to this Query event at most once.
func (e *QueryEvent) Retrieve(r RetrieveEvent) error {
	if e.retrieve == nil {
		return fmt.Errorf("event: Retrieve called on a Query event with no attached responder")
	}
	fn := e.retrieve
	e.retrieve = nil
	return fn(r)
}

// RetrieveEvent answers a Query request with the matching objects.
type RetrieveEvent struct {
	Base
	Objects []object.Object `json:"objects"`
}

func (e *RetrieveEvent) Validate() error {
	if e.Objects == nil {
		return &ValidationError{"Retrieve", "objects must not be nil (use an empty slice for zero results)"}
	}
	return nil
}

// UpdateEvent proposes a full replacement of Object. A receiver applies
// the update and answers with Complete.
type UpdateEvent struct {
	Base
	Object object.Object `json:"object"`

	// complete, when non-nil, is wired by the Communication Manager on
	// the receiving side; never marshaled.
	complete func(CompleteEvent) error
}

func (e *UpdateEvent) Validate() error {
	if e.Object == nil {
		return &ValidationError{"Update", "object must not be nil"}
	}
	return nil
}

// WithCompleter returns a copy of e with its reply callback attached.
func (e UpdateEvent) WithCompleter(fn func(CompleteEvent) error) UpdateEvent {
	e.complete = fn
	return e
}

// Complete replies to this Update event at most once.
func (e *UpdateEvent) Complete(c CompleteEvent) error {
	if e.complete == nil {
		return fmt.Errorf("event: Complete called on an Update event with no attached responder")
	}
	fn := e.complete
	e.complete = nil
	return fn(c)
}

// CompleteEvent answers an Update request with the object as it exists
// after the update was applied.
type CompleteEvent struct {
	Base
	Object object.Object `json:"object"`
}

func (e *CompleteEvent) Validate() error {
	if e.Object == nil {
		return &ValidationError{"Complete", "object must not be nil"}
	}
	return nil
}
