package object

import "github.com/google/uuid"

// Identity is the per-container self-identifier, advertised on
// container start and deadvertised on clean stop (the Communication
// Manager's last-will equivalent, §4.1).
type Identity struct {
	CoatyObject
}

// NewIdentity creates an Identity for a container named name. The
// ObjectID is freshly generated; callers wanting a stable identity
// across restarts should persist and reuse it (mirrors the teacher's
// LoadOrCreateInstanceID pattern for a stable HA device identifier).
func NewIdentity(name string) *Identity {
	return &Identity{CoatyObject{
		ObjectID:   NewObjectID(),
		CoreType:   CoreTypeIdentity,
		ObjectType: CoreTypeIdentity.CoatyObjectType(),
		Name:       name,
	}}
}

// UpdateStrategy governs how an IoSource regulates outbound IoValue
// publication rate once it is associated to one or more actors (§4.4).
type UpdateStrategy string

const (
	UpdateStrategyDefault  UpdateStrategy = "Default"
	UpdateStrategyNone     UpdateStrategy = "None"
	UpdateStrategySample   UpdateStrategy = "Sample"
	UpdateStrategyThrottle UpdateStrategy = "Throttle"
)

// IoPoint holds the fields shared by IoSource and IoActor: a semantic
// value type, an optional desired update rate, an optional
// binding-native external route, and the raw-vs-JSON payload encoding
// flag.
type IoPoint struct {
	CoatyObject

	// ValueType is a non-empty namespaced string identifying the kind
	// of value this point produces or consumes (e.g. "coaty.temp").
	ValueType string `json:"valueType"`

	// UpdateRate is the point's desired update interval in
	// milliseconds. nil means unconstrained.
	UpdateRate *int `json:"updateRate,omitempty"`

	// ExternalRoute is a binding-native topic string used instead of a
	// router-assigned Coaty topic. Not used for Coaty-routed flows. See
	// spec §9 Open Question on external-topic routing precedence.
	ExternalRoute string `json:"externalRoute,omitempty"`

	// UseRawIoValues governs payload encoding on the negotiated
	// IO-value topic: true means raw bytes, false means JSON.
	UseRawIoValues bool `json:"useRawIoValues,omitempty"`
}

// IoSource is an IO value producer.
type IoSource struct {
	IoPoint

	// UpdateStrategy selects the backpressure regulator applied when
	// publishing (§4.4). Empty string is treated as Default.
	UpdateStrategy UpdateStrategy `json:"updateStrategy,omitempty"`
}

// EffectiveUpdateStrategy returns s.UpdateStrategy, normalizing the
// empty value to UpdateStrategyDefault.
func (s IoSource) EffectiveUpdateStrategy() UpdateStrategy {
	if s.UpdateStrategy == "" {
		return UpdateStrategyDefault
	}
	return s.UpdateStrategy
}

// IoActor is an IO value consumer.
type IoActor struct {
	IoPoint
}

// IoNode is a named aggregation of one container's IoSources and
// IoActors, plus free-form characteristics IO routers may consult when
// evaluating rules.
type IoNode struct {
	CoatyObject

	Sources         []IoSource     `json:"ioSources,omitempty"`
	Actors          []IoActor      `json:"ioActors,omitempty"`
	Characteristics map[string]any `json:"characteristics,omitempty"`
}

// IoContext is the named node-set scope within which a single IO router
// evaluates its rules.
type IoContext struct {
	CoatyObject
}

// NewIoContext creates an IoContext object with the given name.
func NewIoContext(name string) *IoContext {
	return &IoContext{CoatyObject{
		ObjectID:   NewObjectID(),
		CoreType:   CoreTypeCoatyObject,
		ObjectType: "coaty.IoContext",
		Name:       name,
	}}
}

// Snapshot is an immutable point-in-time capture of another object.
// Snapshots are never mutated once created.
type Snapshot struct {
	CoatyObject

	ObjectId  string         `json:"snapshotObjectId"`
	Timestamp int64          `json:"timestamp"`
	Value     map[string]any `json:"value,omitempty"`
}

// LogLevel mirrors common severity levels for Log objects.
type LogLevel int

const (
	LogLevelDebug LogLevel = iota
	LogLevelInfo
	LogLevelWarning
	LogLevelError
	LogLevelFatal
)

// Log is a structured log record exchanged as a CoatyObject, typically
// carrying the agentInfo metadata configured via common.agentInfo
// (spec §6).
type Log struct {
	CoatyObject

	LogLevel   LogLevel       `json:"logLevel"`
	LogMessage string         `json:"logMessage"`
	LogDate    string         `json:"logDate"`
	LogTags    []string       `json:"logTags,omitempty"`
	LogHost    map[string]any `json:"logHost,omitempty"`
}

// Device represents a physical or virtual device participating in the
// fleet.
type Device struct {
	CoatyObject

	DisplayType int `json:"displayType,omitempty"`
}

// Location represents a geographic or logical location referenced by
// CoatyObject.LocationID.
type Location struct {
	CoatyObject

	GeoLocation map[string]any `json:"geoLocation,omitempty"`
}

// Annotation attaches a free-form note to another object.
type Annotation struct {
	CoatyObject

	Type      string         `json:"type"`
	Creator   map[string]any `json:"creatorId,omitempty"`
	CreationTimestamp int64  `json:"creationTimestamp"`
}

// Task represents a unit of work assigned between agents/users.
type Task struct {
	CoatyObject

	Status           int    `json:"status"`
	CreationTimestamp int64 `json:"creationTimestamp"`
	DueTimestamp     *int64 `json:"dueTimestamp,omitempty"`
	AssigneeUserID   *uuid.UUID `json:"assigneeUserId,omitempty"`
}

// User represents a human user scoping device discovery (spec §6,
// common.associatedUser).
type User struct {
	CoatyObject

	Names map[string]string `json:"names,omitempty"`
}
