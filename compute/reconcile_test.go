package compute_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-mdnsoffload"
	"github.com/frobware/go-mdnsoffload/action"
	"github.com/frobware/go-mdnsoffload/compute"
)

func offload(key mdnsoffload.RecordKey, prio int64) mdnsoffload.OffloadIntent {
	return mdnsoffload.OffloadIntent{Interface: "eth0", RecordKey: key, Priority: prio}
}

func passthrough(name string, prio int64) mdnsoffload.PassthroughIntent {
	return mdnsoffload.PassthroughIntent{Interface: "eth0", OriginalQName: name, Priority: prio}
}

func TestSortOffloadIntents_PriorityListFirst(t *testing.T) {
	// Priority list [P1, P2]; registered C, P1, P2, D with keys 1..4.
	intents := []mdnsoffload.OffloadIntent{
		offload(1, 1),
		offload(2, -2),
		offload(3, -1),
		offload(4, 4),
	}

	sorted := compute.SortOffloadIntents(intents)

	var got []mdnsoffload.RecordKey
	for _, i := range sorted {
		got = append(got, i.RecordKey)
	}
	assert.Equal(t, []mdnsoffload.RecordKey{2, 3, 1, 4}, got)
	assert.Equal(t, mdnsoffload.RecordKey(1), intents[0].RecordKey, "input must not be reordered")
}

func TestSortOffloadIntents_TiesByRecordKey(t *testing.T) {
	intents := []mdnsoffload.OffloadIntent{offload(5, -1), offload(2, -1), offload(9, -1)}

	sorted := compute.SortOffloadIntents(intents)

	assert.Equal(t, mdnsoffload.RecordKey(2), sorted[0].RecordKey)
	assert.Equal(t, mdnsoffload.RecordKey(5), sorted[1].RecordKey)
	assert.Equal(t, mdnsoffload.RecordKey(9), sorted[2].RecordKey)
}

func TestSortPassthroughIntents_Stable(t *testing.T) {
	intents := []mdnsoffload.PassthroughIntent{
		passthrough("c", 0),
		passthrough("a", 0),
		passthrough("listed", -1),
		passthrough("b", 0),
	}

	sorted := compute.SortPassthroughIntents(intents)

	var got []string
	for _, i := range sorted {
		got = append(got, i.OriginalQName)
	}
	assert.Equal(t, []string{"listed", "c", "a", "b"}, got)
}

func TestSimpleName(t *testing.T) {
	assert.Equal(t, "atv", compute.SimpleName("atv."))
	assert.Equal(t, "Atv", compute.SimpleName("Atv"))
	assert.Equal(t, "atv.", compute.SimpleName("atv.."))
	assert.Equal(t, "", compute.SimpleName("."))
}

func TestPlanOffload_RemovesThenAddsInPriorityOrder(t *testing.T) {
	actions := compute.PlanOffload("eth0",
		[]mdnsoffload.DeviceKey{7, 3},
		[]mdnsoffload.OffloadIntent{offload(1, 1), offload(2, -1)},
	)

	require.Len(t, actions, 4)
	assert.Equal(t, action.RemoveProtocolResponse{Interface: "eth0", Key: 3}, actions[0])
	assert.Equal(t, action.RemoveProtocolResponse{Interface: "eth0", Key: 7}, actions[1])

	first, ok := actions[2].(action.AddProtocolResponse)
	require.True(t, ok, "expected AddProtocolResponse, got %T", actions[2])
	assert.Equal(t, mdnsoffload.RecordKey(2), first.RecordKey)

	second, ok := actions[3].(action.AddProtocolResponse)
	require.True(t, ok, "expected AddProtocolResponse, got %T", actions[3])
	assert.Equal(t, mdnsoffload.RecordKey(1), second.RecordKey)
}

func TestPlanOffload_EmptyDesiredOnlyRemoves(t *testing.T) {
	actions := compute.PlanOffload("eth0", []mdnsoffload.DeviceKey{1}, nil)

	assert.Equal(t, []action.Action{action.RemoveProtocolResponse{Interface: "eth0", Key: 1}}, actions)
}

func TestPlanPassthrough(t *testing.T) {
	tests := []struct {
		name    string
		tracked []string
		desired []mdnsoffload.PassthroughIntent
		want    []action.Action
	}{
		{
			name: "empty desired drops all",
			want: []action.Action{
				action.SetPassthroughMode{Interface: "eth0", Mode: mdnsoffload.PassthroughDropAll},
			},
		},
		{
			name:    "mode set before removals and additions",
			tracked: []string{"old."},
			desired: []mdnsoffload.PassthroughIntent{passthrough("Atv.", 0), passthrough("gtv", -1)},
			want: []action.Action{
				action.SetPassthroughMode{Interface: "eth0", Mode: mdnsoffload.PassthroughExplicitList},
				action.RemovePassthroughEntry{Interface: "eth0", QName: "old.", SimpleName: "old"},
				action.AddPassthroughEntry{Interface: "eth0", QName: "gtv", SimpleName: "gtv"},
				action.AddPassthroughEntry{Interface: "eth0", QName: "Atv.", SimpleName: "Atv"},
			},
		},
		{
			name:    "lost interface removes tracked",
			tracked: []string{"b", "a"},
			want: []action.Action{
				action.SetPassthroughMode{Interface: "eth0", Mode: mdnsoffload.PassthroughDropAll},
				action.RemovePassthroughEntry{Interface: "eth0", QName: "a", SimpleName: "a"},
				action.RemovePassthroughEntry{Interface: "eth0", QName: "b", SimpleName: "b"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := compute.PlanPassthrough("eth0", tt.tracked, tt.desired)
			assert.Equal(t, tt.want, got)
		})
	}
}
