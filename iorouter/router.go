package iorouter

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/coaty-io/coaty-go/object"
)

// Change is one entry of a Reevaluate diff: a newly associated pair, a
// pair whose cumulated rate changed, or a disassociated pair (spec §4.2
// "Diff against current"). Associated false is a Disassociate; Rate and
// Topic are unset (zero value) in that case.
type Change struct {
	SourceID   uuid.UUID
	ActorID    uuid.UUID
	Associated bool
	Rate       *int
	Topic      string
}

// pairKey identifies one (source, actor) association.
type pairKey struct {
	sourceID uuid.UUID
	actorID  uuid.UUID
}

// managedNode is one currently-managed IoNode plus its original
// Advertise-received copy, kept verbatim so re-Advertising the same
// node updates its sources/actors in place.
type managedNode struct {
	node *object.IoNode
}

// Router is the rule-based IO routing core (spec §4.2): it owns no
// broker connection and performs no I/O — it is driven by Advertise/
// Deadvertise/IoContext-update notifications fed in by a caller (the
// Controller in basic.go, ordinarily) and reports association diffs
// through a registered OnChange callback. Kept broker-free so the
// matching algorithm can be tested deterministically without a fake
// MQTT connection.
type Router struct {
	mu sync.Mutex

	logger  *slog.Logger
	rules   []Rule
	context *object.IoContext

	nodes          map[uuid.UUID]*managedNode // by IoNode.ObjectID
	externalRoutes map[string]uuid.UUID       // externalRoute -> claiming sourceId
	current        map[pairKey]Change         // current associations, Associated always true

	onChange func(Change)
}

// New creates an empty Router. logger defaults to slog.Default() if nil.
func New(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		logger:         logger,
		nodes:          make(map[uuid.UUID]*managedNode),
		externalRoutes: make(map[string]uuid.UUID),
		current:        make(map[pairKey]Change),
	}
}

// AddRule registers rule. Rules are evaluated in registration order
// within their value-type bucket (spec §4.2 "Rule selection per pair").
func (r *Router) AddRule(rule Rule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules = append(r.rules, rule)
}

// OnChange registers fn to be invoked, synchronously and in diff order,
// once per Change produced by a Reevaluate call. Only one listener is
// supported; callers needing fan-out compose it themselves.
func (r *Router) OnChange(fn func(Change)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onChange = fn
}

// IoContext returns the router's current context, or nil if none is
// set.
func (r *Router) IoContext() *object.IoContext {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.context
}

// SetIoContext installs ctx as the router's IoContext and re-evaluates
// (spec §4.2 "a context-change hook (onIoContextChanged) triggered by
// Update-Complete on the context object").
func (r *Router) SetIoContext(ctx *object.IoContext) {
	r.mu.Lock()
	r.context = ctx
	r.mu.Unlock()
	r.Reevaluate()
}

// AdvertiseNode registers node as managed (or updates it in place if
// already managed, e.g. a re-Advertise) and re-evaluates. It returns a
// *ConfigurationError and leaves the router's state unchanged if node
// declares an ExternalRoute already claimed by a different source (spec
// §9 Open Question).
func (r *Router) AdvertiseNode(node *object.IoNode) error {
	if node == nil {
		return nil
	}

	r.mu.Lock()
	// Release this node's own prior claims first so a re-Advertise of
	// the same node with the same externalRoute does not spuriously
	// conflict with itself.
	if existing, ok := r.nodes[node.ObjectID]; ok {
		r.releaseExternalRoutesLocked(existing.node)
	}

	for _, s := range node.Sources {
		if s.ExternalRoute == "" {
			continue
		}
		if claimant, claimed := r.externalRoutes[s.ExternalRoute]; claimed && claimant != s.ObjectID {
			// Roll back: nothing was committed for this node yet.
			if existing, ok := r.nodes[node.ObjectID]; ok {
				r.claimExternalRoutesLocked(existing.node)
			}
			r.mu.Unlock()
			return duplicateExternalRouteError(s.ExternalRoute)
		}
	}
	r.claimExternalRoutesLocked(node)
	r.nodes[node.ObjectID] = &managedNode{node: node}
	r.mu.Unlock()

	r.Reevaluate()
	return nil
}

// DeadvertiseNode stops managing the IoNode identified by nodeID (its
// Deadvertise was received, or its publishing container went offline —
// spec §4.2 "An IoNode is managed from the moment its Advertise is
// received until its Deadvertise or the publishing container goes
// offline") and re-evaluates.
func (r *Router) DeadvertiseNode(nodeID uuid.UUID) {
	r.mu.Lock()
	existing, ok := r.nodes[nodeID]
	if !ok {
		r.mu.Unlock()
		return
	}
	r.releaseExternalRoutesLocked(existing.node)
	delete(r.nodes, nodeID)
	r.mu.Unlock()

	r.Reevaluate()
}

func (r *Router) claimExternalRoutesLocked(node *object.IoNode) {
	for _, s := range node.Sources {
		if s.ExternalRoute != "" {
			r.externalRoutes[s.ExternalRoute] = s.ObjectID
		}
	}
}

func (r *Router) releaseExternalRoutesLocked(node *object.IoNode) {
	for _, s := range node.Sources {
		if s.ExternalRoute != "" {
			delete(r.externalRoutes, s.ExternalRoute)
		}
	}
}

// candidateSource/candidateActor pair a point with the node that
// advertised it, for rule evaluation and node-characteristic lookups.
type candidateSource struct {
	source object.IoSource
	node   *object.IoNode
}

type candidateActor struct {
	actor object.IoActor
	node  *object.IoNode
}

// Reevaluate runs the full matching algorithm (spec §4.2 steps 1-5)
// against the router's current managed nodes, rules, and context, and
// emits the resulting diff via OnChange. The new association set is
// computed in full before the router's current state is replaced, so a
// panicking rule never leaves a partial diff applied (spec §4.2
// "Re-evaluation is total").
func (r *Router) Reevaluate() {
	r.mu.Lock()
	sources, actors := r.collectLocked()
	rules := append([]Rule(nil), r.rules...)
	ctx := r.context
	prior := r.current
	r.mu.Unlock()

	next := r.computeAssociations(sources, actors, rules, ctx)

	changes := diff(prior, next)

	r.mu.Lock()
	r.current = next
	onChange := r.onChange
	r.mu.Unlock()

	if onChange == nil {
		return
	}
	for _, c := range changes {
		onChange(c)
	}
}

func (r *Router) collectLocked() ([]candidateSource, []candidateActor) {
	var sources []candidateSource
	var actors []candidateActor
	for _, mn := range r.nodes {
		for _, s := range mn.node.Sources {
			sources = append(sources, candidateSource{source: s, node: mn.node})
		}
		for _, a := range mn.node.Actors {
			actors = append(actors, candidateActor{actor: a, node: mn.node})
		}
	}
	return sources, actors
}

// compatible reports whether source and actor may ever be associated
// (spec §4.2 step 2).
func compatible(s object.IoSource, a object.IoActor) bool {
	return s.ValueType == a.ValueType && s.UseRawIoValues == a.UseRawIoValues
}

// selectRule picks the first matching rule for one (source, actor)
// candidate pair, falling back to global rules (spec §4.2 step 3). A
// panicking Condition is caught, logged, and treated as non-matching.
func (r *Router) selectRule(rules []Rule, rc RuleContext) bool {
	specific := make([]Rule, 0, len(rules))
	global := make([]Rule, 0, len(rules))
	for _, rule := range rules {
		if rule.ValueType == rc.Source.ValueType {
			specific = append(specific, rule)
		} else if rule.ValueType == "" {
			global = append(global, rule)
		}
	}

	bucket := specific
	if len(bucket) == 0 {
		bucket = global
	}
	for _, rule := range bucket {
		if r.evalSafely(rule, rc) {
			return true
		}
	}
	return false
}

func (r *Router) evalSafely(rule Rule, rc RuleContext) (matched bool) {
	if rule.Condition == nil {
		return false
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("iorouter: rule panicked, treating pair as non-matching",
				"rule", rule.Name, "panic", rec)
			matched = false
		}
	}()
	return rule.Condition(rc)
}

// computeAssociations runs steps 2-4 of the matching algorithm and
// returns the full new association set, keyed by pair.
func (r *Router) computeAssociations(sources []candidateSource, actors []candidateActor, rules []Rule, ctx *object.IoContext) map[pairKey]Change {
	next := make(map[pairKey]Change)

	for _, cs := range sources {
		var matchedActors []candidateActor
		for _, ca := range actors {
			if !compatible(cs.source, ca.actor) {
				continue
			}
			rc := RuleContext{
				Source:     cs.source,
				SourceNode: cs.node,
				Actor:      ca.actor,
				ActorNode:  ca.node,
				IoContext:  ctx,
				Router:     r,
			}
			if r.selectRule(rules, rc) {
				matchedActors = append(matchedActors, ca)
			}
		}
		if len(matchedActors) == 0 {
			continue
		}

		rate := cumulatedRate(cs.source, matchedActors)
		topic := cs.source.ExternalRoute

		for _, ca := range matchedActors {
			key := pairKey{sourceID: cs.source.ObjectID, actorID: ca.actor.ObjectID}
			next[key] = Change{
				SourceID:   cs.source.ObjectID,
				ActorID:    ca.actor.ObjectID,
				Associated: true,
				Rate:       rate,
				Topic:      topic,
			}
		}
	}

	return next
}

// cumulatedRate implements spec §4.2 step 4: the cumulated rate is
// defined only when the source and every one of its matched actors
// declares an UpdateRate; if any one of them is unconstrained
// (UpdateRate nil), the spec's "max(... ?? ∞ ...)" collapses the result
// to unconstrained (nil) too — "undefined in both source and all its
// actors yields undefined" is the special case of this general rule
// where every participant happens to be nil.
func cumulatedRate(source object.IoSource, actors []candidateActor) *int {
	if source.UpdateRate == nil {
		return nil
	}
	max := *source.UpdateRate
	for _, ca := range actors {
		if ca.actor.UpdateRate == nil {
			return nil
		}
		if *ca.actor.UpdateRate > max {
			max = *ca.actor.UpdateRate
		}
	}
	return &max
}

// diff compares prior and next association sets and returns the
// Associate/Disassociate changes: new or changed pairs first, then
// vanished pairs. Order within each group follows Go map iteration and
// is not defined.
func diff(prior, next map[pairKey]Change) []Change {
	var changes []Change

	for key, n := range next {
		p, existed := prior[key]
		if !existed || !rateEqual(p.Rate, n.Rate) || p.Topic != n.Topic {
			changes = append(changes, n)
		}
	}
	for key, p := range prior {
		if _, stillThere := next[key]; !stillThere {
			changes = append(changes, Change{
				SourceID:   p.SourceID,
				ActorID:    p.ActorID,
				Associated: false,
			})
		}
	}

	return changes
}

func rateEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Associations returns a snapshot of every currently associated pair.
func (r *Router) Associations() []Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Change, 0, len(r.current))
	for _, c := range r.current {
		out = append(out, c)
	}
	return out
}
