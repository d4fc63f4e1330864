// Package compute contains pure functions for reconciliation planning.
// Functions in this package perform no I/O - they transform desired and
// tracked state into ordered device actions.
package compute

import (
	"cmp"
	"slices"
	"strings"

	"github.com/frobware/go-mdnsoffload"
	"github.com/frobware/go-mdnsoffload/action"
)

// SortOffloadIntents returns a copy of intents ordered by ascending
// priority, ties broken by ascending record key. Pure function.
func SortOffloadIntents(intents []mdnsoffload.OffloadIntent) []mdnsoffload.OffloadIntent {
	sorted := slices.Clone(intents)
	slices.SortFunc(sorted, func(a, b mdnsoffload.OffloadIntent) int {
		return cmp.Or(
			cmp.Compare(a.Priority, b.Priority),
			cmp.Compare(a.RecordKey, b.RecordKey),
		)
	})
	return sorted
}

// SortPassthroughIntents returns a copy of intents stably ordered by
// ascending priority, so equal priorities keep registration order. Pure
// function.
func SortPassthroughIntents(intents []mdnsoffload.PassthroughIntent) []mdnsoffload.PassthroughIntent {
	sorted := slices.Clone(intents)
	slices.SortStableFunc(sorted, func(a, b mdnsoffload.PassthroughIntent) int {
		return cmp.Compare(a.Priority, b.Priority)
	})
	return sorted
}

// SimpleName strips one trailing "." from qname, the form the device
// expects. Pure function.
func SimpleName(qname string) string {
	return strings.TrimSuffix(qname, ".")
}

// PlanOffload computes the actions that replace everything tracked on
// iface with desired: every tracked key is removed, then every desired
// intent is added in priority order. When the device cannot hold all of
// desired, the additions that fail are the lowest ranked ones. Pure
// function.
func PlanOffload(iface string, tracked []mdnsoffload.DeviceKey, desired []mdnsoffload.OffloadIntent) []action.Action {
	actions := make([]action.Action, 0, len(tracked)+len(desired))

	keys := slices.Clone(tracked)
	slices.Sort(keys)
	for _, key := range keys {
		actions = append(actions, action.RemoveProtocolResponse{Interface: iface, Key: key})
	}
	for _, intent := range SortOffloadIntents(desired) {
		actions = append(actions, action.AddProtocolResponse{
			Interface: iface,
			RecordKey: intent.RecordKey,
			Data:      intent.ProtocolData,
		})
	}
	return actions
}

// PlanPassthrough computes the actions that replace the passthrough list
// of iface with desired. The mode is always set first: drop-all when
// desired is empty, explicit-list otherwise. Pure function.
func PlanPassthrough(iface string, tracked []string, desired []mdnsoffload.PassthroughIntent) []action.Action {
	actions := make([]action.Action, 0, 1+len(tracked)+len(desired))

	mode := mdnsoffload.PassthroughExplicitList
	if len(desired) == 0 {
		mode = mdnsoffload.PassthroughDropAll
	}
	actions = append(actions, action.SetPassthroughMode{Interface: iface, Mode: mode})

	names := slices.Clone(tracked)
	slices.Sort(names)
	for _, name := range names {
		actions = append(actions, action.RemovePassthroughEntry{
			Interface:  iface,
			QName:      name,
			SimpleName: SimpleName(name),
		})
	}
	for _, pt := range SortPassthroughIntents(desired) {
		actions = append(actions, action.AddPassthroughEntry{
			Interface:  iface,
			QName:      pt.OriginalQName,
			SimpleName: SimpleName(pt.OriginalQName),
		})
	}
	return actions
}
