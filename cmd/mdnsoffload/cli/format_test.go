package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/frobware/go-mdnsoffload"
	"github.com/frobware/go-mdnsoffload/internal/testpackets"
	"github.com/frobware/go-mdnsoffload/reconciler"
	"github.com/frobware/go-mdnsoffload/server/pb"
	"github.com/frobware/go-mdnsoffload/store/sqlite"
)

func sampleDump() *pb.DumpResponse {
	return &pb.DumpResponse{
		Connected:      true,
		OffloadEnabled: true,
		AllowList:      []uint32{1234},
		Offload: []pb.OffloadIntentInfo{{
			RecordKey: 1,
			Interface: "wlan0",
			Priority:  9223372036854775806,
			AppID:     1234,
			QNames:    []string{"atv."},
			Packet:    testpackets.ATV(),
		}},
		Passthrough: []pb.PassthroughIntentInfo{{
			Interface: "wlan0",
			QName:     "_googlecast._tcp.local.",
			AppID:     1234,
		}},
		Interfaces: []pb.InterfaceInfo{{
			Name:        "wlan0",
			Available:   true,
			Offloaded:   []pb.LiveRecord{{DeviceKey: 0, RecordKey: 1}},
			Passthrough: []string{"_googlecast._tcp.local"},
		}},
	}
}

func TestFormatDumpTree(t *testing.T) {
	out := formatDumpTree(sampleDump(), false)

	assert.Contains(t, out, "Device connected: true")
	assert.Contains(t, out, "Offload:          on")
	assert.Contains(t, out, "└─ key 1 on wlan0")
	assert.Contains(t, out, "qnames: atv.")
	assert.Contains(t, out, "└─ _googlecast._tcp.local. on wlan0")
	assert.Contains(t, out, "└─ wlan0 (available)")
	assert.Contains(t, out, "offloaded:   0=>1")
	assert.NotContains(t, out, "records:")
}

func TestFormatDumpTree_ProtocolData(t *testing.T) {
	out := formatDumpTree(sampleDump(), true)

	assert.Contains(t, out, "records:")
	assert.Contains(t, out, "100.80.40.20")
	assert.Contains(t, out, "00000000  00 00 00 00 00 00 00 01")
}

func TestFormatTotals(t *testing.T) {
	out := formatTotals(sqlite.Totals{
		Harvests: 2,
		Misses:   5,
		Last:     time.Unix(1700000000, 0),
		Records: []sqlite.RecordTotal{
			{Interface: "wlan0", RecordKey: mdnsoffload.RecordKey(3), Hits: 11},
		},
	})
	assert.Contains(t, out, "Harvests: 2")
	assert.Contains(t, out, "Misses:   5")
	assert.Regexp(t, `wlan0\s+3\s+11`, out)

	assert.Contains(t, formatTotals(sqlite.Totals{}), "last never")
}

func TestFormatHarvests(t *testing.T) {
	out := formatHarvests([]sqlite.Harvest{{
		ID:     4,
		At:     time.Unix(1700000000, 0),
		Misses: 2,
		Hits:   []reconciler.HitCount{{Interface: "eth0", DeviceKey: 1, RecordKey: 2, Hits: 7}},
	}})
	assert.Contains(t, out, "#4 ")
	assert.Contains(t, out, "misses=2")
	assert.Regexp(t, `eth0\s+device=1\s+record=2\s+hits=7`, out)
}
