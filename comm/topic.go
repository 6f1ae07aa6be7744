// Package comm implements Coaty's Communication Manager: the sole owner
// of a container's broker connection and subscription state, the §4.1
// topic-grammar codec, event correlation with deduplication, the
// Initial→Starting→Online⇄Offline→Stopping→Stopped connection state
// machine, and the bounded offline publish buffer.
package comm

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/coaty-io/coaty-go/event"
)

// protocolName is segment 0 of every Coaty topic.
const protocolName = "coaty"

// defaultNamespace is used when a container is not configured with an
// explicit namespace.
const defaultNamespace = "-"

// topic is a parsed §4.1 topic: coaty/<namespace>/<eventTypeTag>/<sourceId>[/<correlationId>][/<filterTag>].
type topic struct {
	Namespace     string
	EventType     event.Type
	SourceID      string // UUID or, in readable-topic mode, a name
	CorrelationID string // empty when the event type carries none
	FilterTag     string // channel-id / operation-name; empty for event types without segment 5
}

// encodeTopic renders t per the positional grammar. SourceID and
// CorrelationID are taken verbatim so readable-topic mode (names
// instead of UUIDs) is transparent to the codec.
func encodeTopic(t topic) string {
	segs := []string{protocolName, ns(t.Namespace), string(t.EventType), t.SourceID}
	if t.EventType.IsResponse() {
		segs = append(segs, t.CorrelationID)
	}
	if t.EventType.HasFilterSegment() {
		segs = append(segs, escapeFilterTag(t.FilterTag))
	}
	return strings.Join(segs, "/")
}

func ns(namespace string) string {
	if namespace == "" {
		return defaultNamespace
	}
	return namespace
}

// escapeFilterTag replaces MQTT topic wildcard and separator characters
// that must never appear literally in a filter-tag segment. Channel IDs,
// operation names, and object types are application-chosen strings and
// could otherwise break the positional grammar or collide with MQTT's
// '+'/'#' wildcards.
func escapeFilterTag(s string) string {
	r := strings.NewReplacer("/", "%2F", "+", "%2B", "#", "%23")
	return r.Replace(s)
}

func unescapeFilterTag(s string) string {
	r := strings.NewReplacer("%2F", "/", "%2B", "+", "%23", "#")
	return r.Replace(s)
}

// decodeTopic parses a received MQTT topic string into its segments. It
// returns an error for anything that does not conform to the grammar;
// callers drop the inbound message with a warning rather than propagate
// it to observers (spec §4.1 "malformed inbound payloads are dropped").
func decodeTopic(raw string) (topic, error) {
	segs := strings.Split(raw, "/")
	if len(segs) < 4 {
		return topic{}, fmt.Errorf("comm: topic %q has too few segments", raw)
	}
	if segs[0] != protocolName {
		return topic{}, fmt.Errorf("comm: topic %q missing %q prefix", raw, protocolName)
	}

	et := event.Type(segs[2])
	t := topic{
		Namespace: segs[1],
		EventType: et,
		SourceID:  segs[3],
	}

	idx := 4
	if et.IsResponse() {
		if len(segs) <= idx {
			return topic{}, fmt.Errorf("comm: topic %q missing correlationId segment for %s", raw, et)
		}
		t.CorrelationID = segs[idx]
		idx++
	}
	if et.HasFilterSegment() {
		if len(segs) <= idx {
			return topic{}, fmt.Errorf("comm: topic %q missing filter segment for %s", raw, et)
		}
		t.FilterTag = unescapeFilterTag(segs[idx])
		idx++
	}
	if idx != len(segs) {
		return topic{}, fmt.Errorf("comm: topic %q has unexpected trailing segments", raw)
	}

	return t, nil
}

// advertiseFilterTag builds the "<coreType>:<objectType>" key that
// Advertise-by-objectType observers are registered under locally.
// Advertise topics carry no segment 5, so this key never appears on the
// wire; objectType may be empty.
func advertiseFilterTag(coreType, objectType string) string {
	return coreType + ":" + objectType
}

// subscriptionFilter is an MQTT subscription topic filter using '+'
// wildcards for segments the subscriber does not constrain.
func subscriptionFilter(namespace string, et event.Type, sourceFilter, correlationFilter, filterTagFilter string) string {
	segs := []string{protocolName, ns(namespace), string(et), orWildcard(sourceFilter)}
	if et.IsResponse() {
		segs = append(segs, orWildcard(correlationFilter))
	}
	if et.HasFilterSegment() {
		segs = append(segs, orWildcard(filterTagFilter))
	}
	return strings.Join(segs, "/")
}

func orWildcard(s string) string {
	if s == "" {
		return "+"
	}
	return s
}

// parseUUIDSegment parses a topic segment expected to be a UUID,
// returning uuid.Nil and false for readable-topic names or malformed
// values rather than erroring — callers that need the sender identity
// for correlation reject non-UUID segments explicitly.
func parseUUIDSegment(s string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
