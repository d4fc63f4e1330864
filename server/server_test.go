package server_test

import (
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"github.com/frobware/go-mdnsoffload/internal/testpackets"
	"github.com/frobware/go-mdnsoffload/server"
	pb "github.com/frobware/go-mdnsoffload/server/pb"
)

func TestSession_ReturnsTokenAndCallerAppID(t *testing.T) {
	f := newTestFixture(t)
	s0 := f.openSession("first")
	s1 := f.openSession("second")

	assert.NotEqual(t, s0.Token, s1.Token)
	assert.Equal(t, uint32(selfAppID()), s0.AppID)
	assert.Equal(t, 2, f.Server.SessionCount())
}

func TestAddOffload_IsProgrammedOnDevice(t *testing.T) {
	f := newTestFixture(t)
	s := f.openSession("publisher")

	k0 := f.offload(s, ifc0, testpackets.ATV())
	k1 := f.offload(s, ifc0, testpackets.Airplay())
	assert.Less(t, k0, k1)

	f.dump()
	assert.Equal(t, [][]byte{testpackets.ATV(), testpackets.Airplay()}, f.Device.OffloadedPackets(ifc0))
}

func TestRemoveOffload(t *testing.T) {
	f := newTestFixture(t)
	s := f.openSession("publisher")
	key := f.offload(s, ifc0, testpackets.ATV())

	_, err := f.Client.RemoveOffload(f.as(s), &pb.RemoveOffloadRequest{RecordKey: key})
	require.NoError(t, err)

	f.dump()
	assert.Empty(t, f.Device.OffloadedPackets(ifc0))
}

func TestRemoveOffload_ZeroKeyIsInvalid(t *testing.T) {
	f := newTestFixture(t)
	s := f.openSession("publisher")

	_, err := f.Client.RemoveOffload(f.as(s), &pb.RemoveOffloadRequest{})
	requireStatus(t, err, codes.InvalidArgument, pb.ReasonInvalidRequest)
}

func TestRemoveOffload_OtherSessionsRecordIsUntouched(t *testing.T) {
	f := newTestFixture(t)
	owner := f.openSession("owner")
	other := f.openSession("other")
	key := f.offload(owner, ifc0, testpackets.ATV())

	_, err := f.Client.RemoveOffload(f.as(other), &pb.RemoveOffloadRequest{RecordKey: key})
	require.NoError(t, err)

	f.dump()
	assert.Equal(t, [][]byte{testpackets.ATV()}, f.Device.OffloadedPackets(ifc0))
}

func TestAddOffload_MalformedPacket(t *testing.T) {
	f := newTestFixture(t)
	s := f.openSession("publisher")

	_, err := f.Client.AddOffload(f.as(s), &pb.AddOffloadRequest{Interface: ifc0, Packet: []byte{0, 1, 2}})
	requireStatus(t, err, codes.InvalidArgument, pb.ReasonMalformedPacket)
}

func TestAddOffload_OversizedRequestIsRefused(t *testing.T) {
	f := newTestFixture(t)
	s := f.openSession("publisher")

	_, err := f.Client.AddOffload(f.as(s), &pb.AddOffloadRequest{Interface: ifc0, Packet: make([]byte, 2*server.MaxRequestSize)})
	requireStatus(t, err, codes.ResourceExhausted, "")
	assert.Empty(t, f.dump().Offload)
}

func TestAddOffload_RequiresInterface(t *testing.T) {
	f := newTestFixture(t)
	s := f.openSession("publisher")

	_, err := f.Client.AddOffload(f.as(s), &pb.AddOffloadRequest{Packet: testpackets.ATV()})
	requireStatus(t, err, codes.InvalidArgument, pb.ReasonInvalidRequest)
}

func TestOwnerCalls_RequireOpenSession(t *testing.T) {
	f := newTestFixture(t)

	_, err := f.Client.AddOffload(f.ctx, &pb.AddOffloadRequest{Interface: ifc0, Packet: testpackets.ATV()})
	requireStatus(t, err, codes.FailedPrecondition, pb.ReasonUnknownOwner)

	stale := &testSession{Token: "not-a-session"}
	_, err = f.Client.AddPassthrough(f.as(stale), &pb.PassthroughRequest{Interface: ifc0, QName: "atv"})
	requireStatus(t, err, codes.FailedPrecondition, pb.ReasonUnknownOwner)
}

func TestSessionEnd_WithdrawsIntents(t *testing.T) {
	f := newTestFixture(t)
	s := f.openSession("publisher")
	f.offload(s, ifc0, testpackets.ATV())
	_, err := f.Client.AddPassthrough(f.as(s), &pb.PassthroughRequest{Interface: ifc0, QName: "_googlecast._tcp.local"})
	require.NoError(t, err)

	f.dump()
	require.Len(t, f.Device.OffloadedPackets(ifc0), 1)

	s.Close()
	require.Eventually(t, func() bool {
		d := f.dump()
		return len(d.Offload) == 0 && len(d.Passthrough) == 0
	}, 5*time.Second, 10*time.Millisecond)
	assert.Empty(t, f.Device.OffloadedPackets(ifc0))
	assert.Empty(t, f.Device.PassthroughNames(ifc0))
	assert.Eventually(t, func() bool { return f.Server.SessionCount() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestSessionEnd_TokenIsRejectedAfterwards(t *testing.T) {
	f := newTestFixture(t)
	s := f.openSession("publisher")
	s.Close()
	require.Eventually(t, func() bool { return f.Server.SessionCount() == 0 }, 5*time.Second, 10*time.Millisecond)

	_, err := f.Client.AddOffload(f.as(s), &pb.AddOffloadRequest{Interface: ifc0, Packet: testpackets.ATV()})
	requireStatus(t, err, codes.FailedPrecondition, pb.ReasonUnknownOwner)
}

func TestPassthrough_AddAndRemove(t *testing.T) {
	f := newTestFixture(t)
	s := f.openSession("browser")

	for _, name := range []string{"_googlecast._tcp.local.", "_airplay._tcp.local"} {
		_, err := f.Client.AddPassthrough(f.as(s), &pb.PassthroughRequest{Interface: ifc0, QName: name})
		require.NoError(t, err)
	}
	f.dump()
	assert.Equal(t, []string{"_googlecast._tcp.local", "_airplay._tcp.local"}, f.Device.PassthroughNames(ifc0))

	_, err := f.Client.RemovePassthrough(f.as(s), &pb.PassthroughRequest{Interface: ifc0, QName: "_googlecast._tcp.local."})
	require.NoError(t, err)
	f.dump()
	assert.Equal(t, []string{"_airplay._tcp.local"}, f.Device.PassthroughNames(ifc0))
}

func TestPassthrough_RequiresQName(t *testing.T) {
	f := newTestFixture(t)
	s := f.openSession("browser")

	_, err := f.Client.AddPassthrough(f.as(s), &pb.PassthroughRequest{Interface: ifc0})
	requireStatus(t, err, codes.InvalidArgument, pb.ReasonInvalidRequest)
}

func TestSetAllowList_ExcludingCallerClearsDevice(t *testing.T) {
	f := newTestFixture(t)
	s := f.openSession("publisher")
	f.offload(s, ifc0, testpackets.ATV())

	_, err := f.Client.SetAllowList(f.ctx, &pb.SetAllowListRequest{AppIDs: []uint32{uint32(selfAppID()) + 1}})
	require.NoError(t, err)

	d := f.dump()
	assert.Empty(t, f.Device.OffloadedPackets(ifc0))
	assert.Len(t, d.Offload, 1, "intent stays registered")
	assert.Equal(t, []uint32{uint32(selfAppID()) + 1}, d.AllowList)
}

func TestSetInteractive(t *testing.T) {
	f := newTestFixture(t)
	require.True(t, f.dump().OffloadEnabled)

	_, err := f.Client.SetInteractive(f.ctx, &pb.SetInteractiveRequest{Interactive: true})
	require.NoError(t, err)

	d := f.dump()
	assert.True(t, d.Interactive)
	assert.False(t, d.OffloadEnabled)
	assert.False(t, f.Device.OffloadEnabled())
}

func TestAdminCalls_RequireAdminUID(t *testing.T) {
	f := newTestFixture(t, server.WithAdminUIDs(uint32(os.Getuid())+1))

	_, err := f.Client.Dump(f.ctx, &pb.Empty{})
	requireStatus(t, err, codes.PermissionDenied, "")
	_, err = f.Client.SetInteractive(f.ctx, &pb.SetInteractiveRequest{Interactive: true})
	requireStatus(t, err, codes.PermissionDenied, "")
	_, err = f.Client.SetAllowList(f.ctx, &pb.SetAllowListRequest{})
	requireStatus(t, err, codes.PermissionDenied, "")
}

func TestDump(t *testing.T) {
	f := newTestFixture(t)
	s := f.openSession("publisher")
	key := f.offload(s, ifc0, testpackets.GTV())
	_, err := f.Client.AddPassthrough(f.as(s), &pb.PassthroughRequest{Interface: ifc0, QName: "Living Room._googlecast._tcp.local."})
	require.NoError(t, err)

	d := f.dump()
	assert.True(t, d.Connected)
	require.Len(t, d.Offload, 1)
	assert.Equal(t, key, d.Offload[0].RecordKey)
	assert.Equal(t, ifc0, d.Offload[0].Interface)
	assert.Equal(t, uint32(selfAppID()), d.Offload[0].AppID)
	assert.Equal(t, []string{"atv.", "gtv.atv."}, d.Offload[0].QNames)
	assert.Equal(t, testpackets.GTV(), d.Offload[0].Packet)

	require.Len(t, d.Passthrough, 1)
	assert.Equal(t, "Living Room._googlecast._tcp.local.", d.Passthrough[0].QName)

	require.Len(t, d.Interfaces, 1)
	iface := d.Interfaces[0]
	assert.Equal(t, ifc0, iface.Name)
	assert.True(t, iface.Available)
	require.Len(t, iface.Offloaded, 1)
	assert.Equal(t, key, iface.Offloaded[0].RecordKey)
	assert.Equal(t, []string{"Living Room._googlecast._tcp.local"}, iface.Passthrough)
}

func TestShutdown_EndsSessions(t *testing.T) {
	f := newTestFixture(t)
	s := f.openSession("publisher")

	f.Server.Shutdown()

	_, err := s.stream.Recv()
	assert.True(t, errors.Is(err, io.EOF), "got %v", err)
}
