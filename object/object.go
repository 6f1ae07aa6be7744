// Package object defines Coaty's domain model: CoatyObject, the root
// record every Coaty object extends, and the closed set of core object
// types agents exchange over the communication substrate.
package object

import "github.com/google/uuid"

// CoreType is the closed tag set identifying a CoatyObject's structural
// kind. It is the discriminator a decoder uses to pick the concrete Go
// type a JSON payload unmarshals into.
type CoreType string

// The complete, closed set of core types. Application-defined object
// types always carry one of these as their CoreType, with ObjectType
// distinguishing custom subtypes (e.g. "com.example.SmartLight" with
// CoreType IoActor).
const (
	CoreTypeCoatyObject CoreType = "CoatyObject"
	CoreTypeUser        CoreType = "User"
	CoreTypeDevice      CoreType = "Device"
	CoreTypeAnnotation  CoreType = "Annotation"
	CoreTypeTask        CoreType = "Task"
	CoreTypeIoSource    CoreType = "IoSource"
	CoreTypeIoActor     CoreType = "IoActor"
	CoreTypeIdentity    CoreType = "Identity"
	CoreTypeIoNode      CoreType = "IoNode"
	CoreTypeLocation    CoreType = "Location"
	CoreTypeLog         CoreType = "Log"
	CoreTypeSnapshot    CoreType = "Snapshot"
)

// IsValid reports whether c is one of the closed core types.
func (c CoreType) IsValid() bool {
	switch c {
	case CoreTypeCoatyObject, CoreTypeUser, CoreTypeDevice, CoreTypeAnnotation,
		CoreTypeTask, CoreTypeIoSource, CoreTypeIoActor, CoreTypeIdentity,
		CoreTypeIoNode, CoreTypeLocation, CoreTypeLog, CoreTypeSnapshot:
		return true
	default:
		return false
	}
}

// CoatyObjectType returns the namespaced default ObjectType for a core
// object of this CoreType, e.g. "coaty.IoSource".
func (c CoreType) CoatyObjectType() string {
	return "coaty." + string(c)
}

// CoatyObject is the root record of Coaty's object model. Every domain
// object embeds it. ObjectID uniquely and permanently identifies the
// object across the fleet — the core never reassigns or mutates an
// ObjectID once created.
type CoatyObject struct {
	ObjectID   uuid.UUID `json:"objectId"`
	CoreType   CoreType  `json:"coreType"`
	ObjectType string    `json:"objectType"`
	Name       string    `json:"name"`

	ParentObjectID *uuid.UUID `json:"parentObjectId,omitempty"`
	ExternalID     string     `json:"externalId,omitempty"`
	LocationID     *uuid.UUID `json:"locationId,omitempty"`
	IsDeactivated  bool       `json:"isDeactivated,omitempty"`
}

// NewObjectID generates a fresh UUID v4 object identifier. Application
// code calls this when constructing new domain objects; the core never
// generates object IDs on the caller's behalf, only on its own
// internally-created objects (e.g. a container's Identity).
func NewObjectID() uuid.UUID {
	return uuid.New()
}

// ParseObjectID parses s as an ObjectID. Storage adapters use this to
// turn the string form decoded from a JSON object tree back into a
// uuid.UUID for lookups keyed by ObjectID.
func ParseObjectID(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}

// Base returns o itself — every concrete domain type embeds CoatyObject
// and so already satisfies this by promotion; Base exists so generic
// code can accept an interface instead of a concrete embedding.
func (o *CoatyObject) Base() *CoatyObject { return o }

// Object is satisfied by every concrete domain type through its
// embedded CoatyObject. It lets generic code (the matcher, the
// communication manager, storage adapters) operate uniformly over any
// Coaty object without a type switch.
type Object interface {
	Base() *CoatyObject
}

var _ Object = (*CoatyObject)(nil)
