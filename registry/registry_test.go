package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-mdnsoffload"
	"github.com/frobware/go-mdnsoffload/internal/testpackets"
	"github.com/frobware/go-mdnsoffload/priority"
	"github.com/frobware/go-mdnsoffload/registry"
	"github.com/frobware/go-mdnsoffload/wire"
)

const (
	ownerA mdnsoffload.OwnerToken = "owner-a"
	ownerB mdnsoffload.OwnerToken = "owner-b"

	appA mdnsoffload.AppID = 10001
	appB mdnsoffload.AppID = 10002
)

func newRegistry(t *testing.T, prioritised ...string) *registry.Registry {
	t.Helper()
	r := registry.New(priority.NewResolver(prioritised))
	r.SetAllowList([]mdnsoffload.AppID{appA, appB})
	return r
}

func parse(t *testing.T, packet []byte) mdnsoffload.ProtocolData {
	t.Helper()
	pd, err := wire.ParseProtocolData(packet)
	require.NoError(t, err)
	return pd
}

func keys(intents []mdnsoffload.OffloadIntent) []mdnsoffload.RecordKey {
	var out []mdnsoffload.RecordKey
	for _, i := range intents {
		out = append(out, i.RecordKey)
	}
	return out
}

func qnames(intents []mdnsoffload.PassthroughIntent) []string {
	var out []string
	for _, i := range intents {
		out = append(out, i.OriginalQName)
	}
	return out
}

func TestRegisterOffload_AssignsIncreasingKeys(t *testing.T) {
	r := newRegistry(t)

	first, err := r.RegisterOffload("eth0", parse(t, testpackets.ATV()), ownerA, appA)
	require.NoError(t, err)
	second, err := r.RegisterOffload("eth0", parse(t, testpackets.Airplay()), ownerA, appA)
	require.NoError(t, err)

	assert.Equal(t, mdnsoffload.RecordKey(1), first.RecordKey)
	assert.Equal(t, mdnsoffload.RecordKey(2), second.RecordKey)
	assert.Equal(t, int64(1), first.Priority, "unlisted intents rank by record key")
	assert.Equal(t, int64(2), second.Priority)
}

func TestRegisterOffload_KeysNeverReused(t *testing.T) {
	r := newRegistry(t)

	first, err := r.RegisterOffload("eth0", parse(t, testpackets.ATV()), ownerA, appA)
	require.NoError(t, err)
	_, err = r.RemoveOffload(first.RecordKey, ownerA)
	require.NoError(t, err)

	next, err := r.RegisterOffload("eth0", parse(t, testpackets.ATV()), ownerA, appA)
	require.NoError(t, err)
	assert.Equal(t, mdnsoffload.RecordKey(2), next.RecordKey)
}

func TestRegisterOffload_PriorityListWins(t *testing.T) {
	r := newRegistry(t, "_googlecast._tcp.local")

	plain, err := r.RegisterOffload("eth0", parse(t, testpackets.ATV()), ownerA, appA)
	require.NoError(t, err)
	listed, err := r.RegisterOffload("eth0", parse(t, testpackets.GoogleCast()), ownerA, appA)
	require.NoError(t, err)

	assert.Equal(t, int64(1), plain.Priority)
	assert.Equal(t, int64(-1), listed.Priority)
}

func TestOffloadIntentsFor_FiltersInterfaceAndAllowList(t *testing.T) {
	r := newRegistry(t)

	_, err := r.RegisterOffload("eth0", parse(t, testpackets.ATV()), ownerA, appA)
	require.NoError(t, err)
	_, err = r.RegisterOffload("wlan0", parse(t, testpackets.ATV()), ownerA, appA)
	require.NoError(t, err)
	_, err = r.RegisterOffload("eth0", parse(t, testpackets.GTV()), ownerB, appB)
	require.NoError(t, err)
	_, err = r.RegisterOffload("eth0", parse(t, testpackets.Airplay()), ownerB, 99)
	require.NoError(t, err)

	assert.Equal(t, []mdnsoffload.RecordKey{1, 3}, keys(r.OffloadIntentsFor("eth0")))
	assert.Equal(t, []mdnsoffload.RecordKey{2}, keys(r.OffloadIntentsFor("wlan0")))
	assert.Empty(t, r.OffloadIntentsFor("eth1"))

	r.SetAllowList([]mdnsoffload.AppID{appB, 99})
	assert.Equal(t, []mdnsoffload.RecordKey{3, 4}, keys(r.OffloadIntentsFor("eth0")))

	// Hidden intents are still stored.
	assert.Equal(t, []mdnsoffload.RecordKey{1, 2, 3, 4}, r.RecordKeys())
	assert.Equal(t, []mdnsoffload.AppID{appB, 99}, r.AllowList())
}

func TestRemoveOffload(t *testing.T) {
	r := newRegistry(t)
	intent, err := r.RegisterOffload("eth0", parse(t, testpackets.ATV()), ownerA, appA)
	require.NoError(t, err)

	t.Run("wrong owner", func(t *testing.T) {
		_, err := r.RemoveOffload(intent.RecordKey, ownerB)
		require.ErrorIs(t, err, mdnsoffload.ErrOwnershipMismatch)
		assert.Len(t, r.OffloadIntentsFor("eth0"), 1)
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := r.RemoveOffload(42, ownerA)
		require.ErrorIs(t, err, mdnsoffload.ErrOwnershipMismatch)
		assert.Len(t, r.OffloadIntentsFor("eth0"), 1)
	})

	t.Run("owner", func(t *testing.T) {
		removed, err := r.RemoveOffload(intent.RecordKey, ownerA)
		require.NoError(t, err)
		assert.Equal(t, intent.RecordKey, removed.RecordKey)
		assert.Equal(t, "eth0", removed.Interface)
		assert.Empty(t, r.OffloadIntentsFor("eth0"))
	})
}

func TestRegisterPassthrough_PreservesOrderAndCase(t *testing.T) {
	r := newRegistry(t, "gtv")

	first := r.RegisterPassthrough("eth0", "Atv", ownerA, appA)
	second := r.RegisterPassthrough("eth0", "gtv.", ownerA, appA)
	r.RegisterPassthrough("eth0", "airplay", ownerB, appB)

	assert.Equal(t, "ATV.", first.CanonicalQName)
	assert.Equal(t, int64(0), first.Priority)
	assert.Equal(t, int64(-1), second.Priority)
	assert.Equal(t, []string{"Atv", "gtv.", "airplay"}, qnames(r.PassthroughIntentsFor("eth0")))
}

func TestRemovePassthrough(t *testing.T) {
	r := newRegistry(t)
	r.RegisterPassthrough("eth0", "atv", ownerA, appA)
	r.RegisterPassthrough("eth0", "airplay", ownerA, appA)
	r.RegisterPassthrough("wlan0", "ATV.", ownerA, appA)

	_, ok := r.RemovePassthrough("atv", ownerB)
	assert.False(t, ok, "wrong owner")
	_, ok = r.RemovePassthrough("gtv", ownerA)
	assert.False(t, ok, "unknown name")

	removed, ok := r.RemovePassthrough("Atv.", ownerA)
	require.True(t, ok)
	assert.Equal(t, "eth0", removed.Interface, "first match wins")
	assert.Equal(t, []string{"airplay"}, qnames(r.PassthroughIntentsFor("eth0")))
	assert.Equal(t, []string{"ATV."}, qnames(r.PassthroughIntentsFor("wlan0")))
}

func TestPassthroughIntentsFor_AllowList(t *testing.T) {
	r := newRegistry(t)
	r.RegisterPassthrough("eth0", "atv", ownerA, appA)
	r.RegisterPassthrough("eth0", "airplay", ownerB, appB)

	r.SetAllowList([]mdnsoffload.AppID{appB})
	assert.Equal(t, []string{"airplay"}, qnames(r.PassthroughIntentsFor("eth0")))

	r.SetAllowList(nil)
	assert.Empty(t, r.PassthroughIntentsFor("eth0"))
}

func TestRemoveOwner(t *testing.T) {
	r := newRegistry(t)
	_, err := r.RegisterOffload("eth0", parse(t, testpackets.ATV()), ownerA, appA)
	require.NoError(t, err)
	_, err = r.RegisterOffload("eth0", parse(t, testpackets.GTV()), ownerB, appB)
	require.NoError(t, err)
	r.RegisterPassthrough("wlan0", "atv", ownerA, appA)
	r.RegisterPassthrough("eth0", "airplay", ownerB, appB)

	affected := r.RemoveOwner(ownerA)

	assert.Equal(t, []string{"eth0", "wlan0"}, affected)
	assert.Equal(t, []mdnsoffload.RecordKey{2}, r.RecordKeys())
	assert.Empty(t, r.PassthroughIntentsFor("wlan0"))
	assert.Equal(t, []string{"airplay"}, qnames(r.PassthroughIntentsFor("eth0")))

	assert.Empty(t, r.RemoveOwner(ownerA))
}

func TestSnapshot(t *testing.T) {
	r := newRegistry(t)
	_, err := r.RegisterOffload("eth0", parse(t, testpackets.ATV()), ownerA, appA)
	require.NoError(t, err)
	r.RegisterPassthrough("wlan0", "atv", ownerA, 7)

	snap := r.Snapshot()
	require.Len(t, snap.Offload, 1)
	require.Len(t, snap.Passthrough, 1, "snapshot ignores the allow-list")
	assert.Equal(t, []mdnsoffload.AppID{appA, appB}, snap.AllowList)
	assert.Equal(t, []string{"eth0", "wlan0"}, r.Interfaces())
}
