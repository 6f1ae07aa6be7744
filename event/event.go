// Package event defines the typed envelopes for Coaty's nine
// communication event patterns (Advertise, Channel, Discover/Resolve,
// Query/Retrieve, Update/Complete, Call/Return, IoValue) plus the Raw
// escape hatch, and the topic-tag grammar used to encode them (§4.1).
package event

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/coaty-io/coaty-go/object"
)

// Type is the event-pattern discriminator. Its short string form is
// also used as the topic-tag segment in the wire encoding.
type Type string

const (
	TypeAdvertise   Type = "ADV"
	TypeDeadvertise Type = "DAD"
	TypeChannel     Type = "CHN"
	TypeDiscover    Type = "DSC"
	TypeResolve     Type = "RSV"
	TypeQuery       Type = "QRY"
	TypeRetrieve    Type = "RTV"
	TypeUpdate      Type = "UPD"
	TypeComplete    Type = "CPL"
	TypeCall        Type = "CLL"
	TypeReturn      Type = "RTN"
	TypeIoValue     Type = "IOV"
	TypeRaw         Type = "RAW"

	// TypeAssociate carries IO Router Associate/Disassociate notifications
	// (spec §4.2). It is fire-and-forget like Advertise — no correlation,
	// no filter segment — since an Associate's recipients (the source's
	// and actor's controllers, wherever their containers run) filter
	// locally on SourceID/ActorID rather than on a topic-grammar segment.
	TypeAssociate Type = "ASC"
)

// IsResponse reports whether t is a response half of a correlated
// request/response pair (Resolve, Retrieve, Complete, Return). Response
// events carry a correlationId topic segment (§4.1 segment 4).
func (t Type) IsResponse() bool {
	switch t {
	case TypeResolve, TypeRetrieve, TypeComplete, TypeReturn:
		return true
	default:
		return false
	}
}

// HasFilterSegment reports whether t carries a §4.1 segment 5
// (channel-id for Channel, operation-name for Call). Advertise topics
// carry no segment 5; coreType/objectType filtering of Advertise events
// happens locally after receipt.
func (t Type) HasFilterSegment() bool {
	switch t {
	case TypeChannel, TypeCall:
		return true
	default:
		return false
	}
}

// Base holds the fields common to every event envelope: the originating
// container's Identity object ID and, for correlated requests/responses,
// the shared correlationId.
type Base struct {
	SourceID      uuid.UUID  `json:"sourceId"`
	CorrelationID *uuid.UUID `json:"correlationId,omitempty"`
}

// NewCorrelationID allocates a fresh correlator for a request that
// expects one or more correlated responses.
func NewCorrelationID() uuid.UUID {
	return uuid.New()
}

// ValidationError reports a malformed event envelope. The Communication
// Manager drops inbound payloads that fail validation, per spec §4.1
// "Malformed inbound payloads are dropped with a warning."
type ValidationError struct {
	Event  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s event: %s", e.Event, e.Reason)
}

// AdvertiseEvent announces the existence of obj to the fleet.
type AdvertiseEvent struct {
	Base
	Object object.Object `json:"object"`
}

// Validate checks the invariants an Advertise envelope must satisfy
// before it is published or dispatched to observers.
func (e *AdvertiseEvent) Validate() error {
	if e.Object == nil {
		return &ValidationError{"Advertise", "object must not be nil"}
	}
	if e.Object.Base().ObjectID == uuid.Nil {
		return &ValidationError{"Advertise", "object.objectId must not be the nil UUID"}
	}
	return nil
}

// DeadvertiseEvent retracts previously advertised objects by ID —
// Coaty's last-will equivalent for an Identity, and the general
// mechanism for announcing an object's retirement.
type DeadvertiseEvent struct {
	Base
	ObjectIDs []uuid.UUID `json:"objectIds"`
}

func (e *DeadvertiseEvent) Validate() error {
	if len(e.ObjectIDs) == 0 {
		return &ValidationError{"Deadvertise", "objectIds must not be empty"}
	}
	return nil
}

// ChannelEvent broadcasts obj on a named channel.
type ChannelEvent struct {
	Base
	ChannelID string        `json:"-"`
	Object    object.Object `json:"object"`
}

func (e *ChannelEvent) Validate() error {
	if e.ChannelID == "" {
		return &ValidationError{"Channel", "channelId must not be empty"}
	}
	if e.Object == nil {
		return &ValidationError{"Channel", "object must not be nil"}
	}
	return nil
}

// DiscoverEvent asks the fleet to resolve a described object. Exactly
// one of ObjectID, (CoreTypes/ObjectTypes), or ExternalID should be set;
// a receiver replies by calling Resolve at most once.
type DiscoverEvent struct {
	Base
	ObjectID    *uuid.UUID        `json:"objectId,omitempty"`
	ExternalID  string            `json:"externalId,omitempty"`
	CoreTypes   []object.CoreType `json:"coreTypes,omitempty"`
	ObjectTypes []string          `json:"objectTypes,omitempty"`

	// resolve, when non-nil, is wired by the Communication Manager on
	// the *receiving* side so observers can reply without knowing
	// anything about topic encoding. It is never marshaled.
	resolve func(ResolveEvent) error
}

func (e *DiscoverEvent) Validate() error {
	if e.ObjectID == nil && e.ExternalID == "" && len(e.CoreTypes) == 0 && len(e.ObjectTypes) == 0 {
		return &ValidationError{"Discover", "must specify objectId, externalId, coreTypes, or objectTypes"}
	}
	return nil
}

// WithResolver returns a copy of e with its reply callback attached.
// Used internally by the Communication Manager; not part of the public
// construction API.
func (e DiscoverEvent) WithResolver(fn func(ResolveEvent) error) DiscoverEvent {
	e.resolve = fn
	return e
}

// Resolve replies to this Discover event. It is safe to call at most
// once; a second call returns an error. Calling Resolve on an event
// that was not received through the Communication Manager (resolve is
// nil) returns an error.
func (e *DiscoverEvent) Resolve(r ResolveEvent) error {
	if e.resolve == nil {
		return fmt.Errorf("event: Resolve called on a Discover event with no attached responder")
	}
	fn := e.resolve
	e.resolve = nil
	return fn(r)
}

// ResolveEvent answers a Discover request.
type ResolveEvent struct {
	Base
	Object object.Object `json:"object"`
}

func (e *ResolveEvent) Validate() error {
	if e.Object == nil {
		return &ValidationError{"Resolve", "object must not be nil"}
	}
	return nil
}

// CallEvent invokes a named remote operation.
type CallEvent struct {
	Base
	Operation  string         `json:"-"`
	Parameters map[string]any `json:"parameters,omitempty"`

	returnFn func(ReturnEvent) error
}

func (e *CallEvent) Validate() error {
	if e.Operation == "" {
		return &ValidationError{"Call", "operation must not be empty"}
	}
	return nil
}

// WithReturner attaches the reply callback; used internally by the
// Communication Manager on the receiving side.
func (e CallEvent) WithReturner(fn func(ReturnEvent) error) CallEvent {
	e.returnFn = fn
	return e
}

// Return replies to this Call event at most once.
func (e *CallEvent) Return(r ReturnEvent) error {
	if e.returnFn == nil {
		return fmt.Errorf("event: Return called on a Call event with no attached responder")
	}
	fn := e.returnFn
	e.returnFn = nil
	return fn(r)
}

// CallError carries a remote operation failure, JSON-RPC-shaped.
type CallError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *CallError) Error() string { return fmt.Sprintf("call error %d: %s", e.Code, e.Message) }

// ReturnEvent answers a Call request with either a result or an error,
// never both.
type ReturnEvent struct {
	Base
	Result any        `json:"result,omitempty"`
	Error  *CallError `json:"error,omitempty"`
}

func (e *ReturnEvent) Validate() error {
	if e.Error == nil && e.Result == nil {
		return &ValidationError{"Return", "must set result or error"}
	}
	if e.Error != nil && e.Result != nil {
		return &ValidationError{"Return", "must not set both result and error"}
	}
	return nil
}

// IoValueEvent carries one data sample published on a source's
// negotiated IO-value topic. Raw holds the wire bytes; if the source's
// UseRawIoValues is false, Raw is the JSON encoding of Value and the
// receiving actor controller decodes it before delivery.
type IoValueEvent struct {
	Base
	Raw []byte `json:"-"`
}

// RawEvent is the escape hatch for binding-native payloads that bypass
// Coaty's JSON envelope entirely (e.g. externalRoute traffic).
type RawEvent struct {
	TopicSuffix string
	Payload     []byte
}

// AssociateEvent is published by an IO Router whenever its matching
// algorithm diffs in a new, changed, or vanished (source, actor) pair
// (spec §4.2 "Diff against current"). Associated false is a
// Disassociate; Rate and Topic are only meaningful when Associated is
// true. Topic, when non-empty, is the source's ExternalRoute — the
// receiving controllers bypass the default IoValue topic in favor of
// it (spec §9 Open Question on external-topic routing precedence).
type AssociateEvent struct {
	Base
	SourceID   uuid.UUID `json:"sourceId"`
	ActorID    uuid.UUID `json:"actorId"`
	Associated bool      `json:"associated"`
	Rate       *int      `json:"updateRate,omitempty"`
	Topic      string    `json:"topic,omitempty"`
}

func (e *AssociateEvent) Validate() error {
	if e.SourceID == uuid.Nil || e.ActorID == uuid.Nil {
		return &ValidationError{"Associate", "sourceId and actorId must not be the nil UUID"}
	}
	return nil
}
