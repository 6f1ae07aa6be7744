// Package iorouter implements Coaty's context-driven IO routing engine
// (spec §4.2): discovery of IoNodes via Advertise/Deadvertise, rule-based
// matching of IoSources to IoActors, cumulative update-rate resolution,
// and the Associate/Disassociate diff against the router's current
// association set.
package iorouter

import (
	"github.com/coaty-io/coaty-go/object"
)

// Rule decides whether one (source, actor) pair should be associated.
// ValueType scopes the rule to pairs of that value type; the empty
// string makes it a global rule, consulted only when no rule is
// registered for the pair's own value type (spec §4.2 "Rule selection
// per pair").
type Rule struct {
	Name      string
	ValueType string
	Condition func(ctx RuleContext) bool
}

// RuleContext is the full context a Rule's Condition evaluates against:
// the candidate source and actor, each paired with the IoNode that
// advertised it, the router's current IoContext (may be nil if none is
// set), and the Router itself for rules that want to consult other
// currently-managed nodes.
type RuleContext struct {
	Source     object.IoSource
	SourceNode *object.IoNode
	Actor      object.IoActor
	ActorNode  *object.IoNode
	IoContext  *object.IoContext
	Router     *Router
}
