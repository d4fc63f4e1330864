// Package registry stores the offload and passthrough intents clients
// have registered and answers which of them should currently be
// materialised on each interface.
//
// Storage is independent of the allow-list: an intent whose owner is
// not allowed is kept, it is only hidden from the read side used for
// reconciliation. A Registry is not safe for concurrent use; callers
// serialise access through the manager's event loop.
package registry

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/frobware/go-mdnsoffload"
	"github.com/frobware/go-mdnsoffload/priority"
)

// Registry holds all registered intents.
type Registry struct {
	resolver    *priority.Resolver
	lastKey     mdnsoffload.RecordKey
	offload     map[mdnsoffload.RecordKey]mdnsoffload.OffloadIntent
	passthrough []mdnsoffload.PassthroughIntent
	allowed     map[mdnsoffload.AppID]struct{}
}

// New returns an empty Registry ranking intents with resolver. The
// allow-list starts empty.
func New(resolver *priority.Resolver) *Registry {
	return &Registry{
		resolver: resolver,
		offload:  make(map[mdnsoffload.RecordKey]mdnsoffload.OffloadIntent),
		allowed:  make(map[mdnsoffload.AppID]struct{}),
	}
}

// RegisterOffload stores a new offload intent under the next record
// key. The record key doubles as the fallback priority so that unlisted
// intents rank in arrival order.
func (r *Registry) RegisterOffload(iface string, data mdnsoffload.ProtocolData, owner mdnsoffload.OwnerToken, app mdnsoffload.AppID) (mdnsoffload.OffloadIntent, error) {
	key := r.lastKey + 1
	prio, err := r.resolver.ProtocolDataPriority(data, int64(key))
	if err != nil {
		return mdnsoffload.OffloadIntent{}, fmt.Errorf("ranking offload intent: %w", err)
	}
	r.lastKey = key

	intent := mdnsoffload.OffloadIntent{
		Interface:    iface,
		RecordKey:    key,
		ProtocolData: data,
		Owner:        owner,
		Priority:     prio,
		AppID:        app,
	}
	r.offload[key] = intent
	return intent, nil
}

// OffloadIntentsFor returns the allowed offload intents for iface in
// record key order.
func (r *Registry) OffloadIntentsFor(iface string) []mdnsoffload.OffloadIntent {
	var out []mdnsoffload.OffloadIntent
	for _, intent := range r.offload {
		if intent.Interface == iface && r.isAllowed(intent.AppID) {
			out = append(out, intent)
		}
	}
	slices.SortFunc(out, byRecordKey)
	return out
}

// RemoveOffload removes the intent stored under key if owner registered
// it. Any other case returns ErrOwnershipMismatch and leaves the
// registry untouched.
func (r *Registry) RemoveOffload(key mdnsoffload.RecordKey, owner mdnsoffload.OwnerToken) (mdnsoffload.OffloadIntent, error) {
	intent, ok := r.offload[key]
	if !ok {
		return mdnsoffload.OffloadIntent{}, fmt.Errorf("record key %d: %w", key, mdnsoffload.ErrOwnershipMismatch)
	}
	if intent.Owner != owner {
		return mdnsoffload.OffloadIntent{}, fmt.Errorf("record key %d held by another owner: %w", key, mdnsoffload.ErrOwnershipMismatch)
	}
	delete(r.offload, key)
	return intent, nil
}

// RegisterPassthrough appends a passthrough intent. Listed names rank by
// the priority list; all others share priority zero and keep insertion
// order.
func (r *Registry) RegisterPassthrough(iface, qname string, owner mdnsoffload.OwnerToken, app mdnsoffload.AppID) mdnsoffload.PassthroughIntent {
	canonical := priority.CanonicalQName(qname)
	intent := mdnsoffload.PassthroughIntent{
		Interface:      iface,
		OriginalQName:  qname,
		CanonicalQName: canonical,
		Owner:          owner,
		Priority:       r.resolver.Priority(canonical, 0),
		AppID:          app,
	}
	r.passthrough = append(r.passthrough, intent)
	return intent
}

// RemovePassthrough removes the first passthrough intent whose
// canonical name matches qname and whose owner is owner. It reports the
// removed intent and whether a removal happened.
func (r *Registry) RemovePassthrough(qname string, owner mdnsoffload.OwnerToken) (mdnsoffload.PassthroughIntent, bool) {
	canonical := priority.CanonicalQName(qname)
	i := slices.IndexFunc(r.passthrough, func(pt mdnsoffload.PassthroughIntent) bool {
		return pt.CanonicalQName == canonical && pt.Owner == owner
	})
	if i < 0 {
		return mdnsoffload.PassthroughIntent{}, false
	}
	removed := r.passthrough[i]
	r.passthrough = slices.Delete(r.passthrough, i, i+1)
	return removed, true
}

// PassthroughIntentsFor returns the allowed passthrough intents for
// iface in insertion order.
func (r *Registry) PassthroughIntentsFor(iface string) []mdnsoffload.PassthroughIntent {
	var out []mdnsoffload.PassthroughIntent
	for _, pt := range r.passthrough {
		if pt.Interface == iface && r.isAllowed(pt.AppID) {
			out = append(out, pt)
		}
	}
	return out
}

// RemoveOwner drops every intent registered by owner and returns the
// sorted set of interfaces that lost at least one intent.
func (r *Registry) RemoveOwner(owner mdnsoffload.OwnerToken) []string {
	affected := make(map[string]struct{})

	for key, intent := range r.offload {
		if intent.Owner == owner {
			affected[intent.Interface] = struct{}{}
			delete(r.offload, key)
		}
	}
	r.passthrough = slices.DeleteFunc(r.passthrough, func(pt mdnsoffload.PassthroughIntent) bool {
		if pt.Owner != owner {
			return false
		}
		affected[pt.Interface] = struct{}{}
		return true
	})

	return slices.Sorted(maps.Keys(affected))
}

// SetAllowList replaces the allow-list. It does not trigger any
// reconciliation.
func (r *Registry) SetAllowList(ids []mdnsoffload.AppID) {
	clear(r.allowed)
	for _, id := range ids {
		r.allowed[id] = struct{}{}
	}
}

// AllowList returns the allowed app ids in ascending order.
func (r *Registry) AllowList() []mdnsoffload.AppID {
	return slices.Sorted(maps.Keys(r.allowed))
}

func (r *Registry) isAllowed(app mdnsoffload.AppID) bool {
	_, ok := r.allowed[app]
	return ok
}

// RecordKeys returns every stored record key in ascending order,
// regardless of the allow-list.
func (r *Registry) RecordKeys() []mdnsoffload.RecordKey {
	return slices.Sorted(maps.Keys(r.offload))
}

// Interfaces returns every interface named by a stored intent.
func (r *Registry) Interfaces() []string {
	set := make(map[string]struct{})
	for _, intent := range r.offload {
		set[intent.Interface] = struct{}{}
	}
	for _, pt := range r.passthrough {
		set[pt.Interface] = struct{}{}
	}
	return slices.Sorted(maps.Keys(set))
}

// Snapshot is a copy of the registry contents for inspection.
type Snapshot struct {
	Offload     []mdnsoffload.OffloadIntent
	Passthrough []mdnsoffload.PassthroughIntent
	AllowList   []mdnsoffload.AppID
}

// Snapshot copies all stored intents, ignoring the allow-list.
func (r *Registry) Snapshot() Snapshot {
	offload := slices.Collect(maps.Values(r.offload))
	slices.SortFunc(offload, byRecordKey)
	return Snapshot{
		Offload:     offload,
		Passthrough: slices.Clone(r.passthrough),
		AllowList:   r.AllowList(),
	}
}

func byRecordKey(a, b mdnsoffload.OffloadIntent) int {
	return cmp.Compare(a.RecordKey, b.RecordKey)
}
