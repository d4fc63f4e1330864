package fake_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frobware/go-mdnsoffload"
	"github.com/frobware/go-mdnsoffload/device"
	"github.com/frobware/go-mdnsoffload/device/fake"
)

var _ device.Device = (*fake.Device)(nil)

func TestAddProtocolResponse_Capacity(t *testing.T) {
	ctx := context.Background()
	d := fake.New(fake.WithOffloadCapacity(2))

	k0, err := d.AddProtocolResponse(ctx, "eth0", mdnsoffload.ProtocolData{RawPacket: []byte{0}})
	require.NoError(t, err)
	k1, err := d.AddProtocolResponse(ctx, "eth0", mdnsoffload.ProtocolData{RawPacket: []byte{1}})
	require.NoError(t, err)
	full, err := d.AddProtocolResponse(ctx, "eth0", mdnsoffload.ProtocolData{RawPacket: []byte{2}})
	require.NoError(t, err)
	other, err := d.AddProtocolResponse(ctx, "wlan0", mdnsoffload.ProtocolData{RawPacket: []byte{3}})
	require.NoError(t, err)

	assert.Equal(t, mdnsoffload.DeviceKey(0), k0)
	assert.Equal(t, mdnsoffload.DeviceKey(1), k1)
	assert.Equal(t, mdnsoffload.InvalidDeviceKey, full)
	assert.Equal(t, mdnsoffload.DeviceKey(2), other, "capacity is per interface")

	require.NoError(t, d.RemoveProtocolResponse(ctx, k0))
	assert.Equal(t, [][]byte{{1}}, d.OffloadedPackets("eth0"))
}

func TestPassthrough(t *testing.T) {
	ctx := context.Background()
	d := fake.New()

	assert.Equal(t, mdnsoffload.PassthroughDropAll, d.PassthroughMode("eth0"))
	require.NoError(t, d.SetPassthroughMode(ctx, "eth0", mdnsoffload.PassthroughExplicitList))
	assert.Equal(t, mdnsoffload.PassthroughExplicitList, d.PassthroughMode("eth0"))
	require.Error(t, d.SetPassthroughMode(ctx, "eth0", mdnsoffload.PassthroughMode(9)))

	for _, name := range []string{"a", "b", "c", "d"} {
		ok, err := d.AddPassthroughEntry(ctx, "eth0", name)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := d.AddPassthroughEntry(ctx, "eth0", "e")
	require.NoError(t, err)
	assert.False(t, ok, "fifth entry exceeds capacity")

	ok, err = d.AddPassthroughEntry(ctx, "wlan0", strings.Repeat("x", 256))
	require.NoError(t, err)
	assert.False(t, ok, "name too long")

	require.NoError(t, d.RemovePassthroughEntry(ctx, "eth0", "b"))
	assert.Equal(t, []string{"a", "c", "d"}, d.PassthroughNames("eth0"))
}

func TestResetAll(t *testing.T) {
	ctx := context.Background()
	d := fake.New()

	_, err := d.AddProtocolResponse(ctx, "eth0", mdnsoffload.ProtocolData{})
	require.NoError(t, err)
	d.RecordMisses(4)
	require.NoError(t, d.ResetAll(ctx))

	assert.Empty(t, d.OffloadedPackets("eth0"))
	misses, err := d.TakeAndResetMissCounter(ctx)
	require.NoError(t, err)
	assert.Zero(t, misses)

	key, err := d.AddProtocolResponse(ctx, "eth0", mdnsoffload.ProtocolData{})
	require.NoError(t, err)
	assert.Equal(t, mdnsoffload.DeviceKey(0), key, "keys restart after reset")
}

func TestFailOn(t *testing.T) {
	ctx := context.Background()
	d := fake.New()
	boom := errors.New("boom")

	d.FailOn("ResetAll", boom)
	require.ErrorIs(t, d.ResetAll(ctx), boom)

	d.FailOn("ResetAll", nil)
	require.NoError(t, d.ResetAll(ctx))

	ops := d.Operations()
	require.Len(t, ops, 2)
	assert.Equal(t, boom, ops[0].Err)
	assert.NoError(t, ops[1].Err)
}

func TestCounters(t *testing.T) {
	ctx := context.Background()
	d := fake.New()

	d.RecordHits(3, 2)
	d.RecordHits(3, 1)
	hits, err := d.TakeAndResetHitCounter(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, hits)

	hits, err = d.TakeAndResetHitCounter(ctx, 3)
	require.NoError(t, err)
	assert.Zero(t, hits)

	require.NoError(t, d.SetGlobalOffloadEnabled(ctx, true))
	assert.True(t, d.OffloadEnabled())
}
