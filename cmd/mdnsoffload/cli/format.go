package cli

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/frobware/go-mdnsoffload/server/pb"
	"github.com/frobware/go-mdnsoffload/store/sqlite"
	"github.com/frobware/go-mdnsoffload/wire"
)

// OutputFlags provides output formatting flags.
type OutputFlags struct {
	Output string `short:"o" help:"Output format: tree or json." enum:"tree,json" default:"tree"`
}

func formatJSON(v any) (string, error) {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	return string(output) + "\n", nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// formatDumpTree renders a dump the way an operator reads it: global
// state first, then every registered intent, then what each interface
// has on the device.
func formatDumpTree(d *pb.DumpResponse, protocolData bool) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Device connected: %t\n", d.Connected)
	fmt.Fprintf(&b, "Offload:          %s\n", onOff(d.OffloadEnabled))
	fmt.Fprintf(&b, "Interactive:      %t\n", d.Interactive)
	fmt.Fprintf(&b, "Allow-list:       %v\n", d.AllowList)

	fmt.Fprintf(&b, "\nOffload intents (%d)\n", len(d.Offload))
	for i, o := range d.Offload {
		branch, indent := treeBranch(i, len(d.Offload))
		fmt.Fprintf(&b, "%s key %d on %s, priority %d, app %d\n", branch, o.RecordKey, o.Interface, o.Priority, o.AppID)
		fmt.Fprintf(&b, "%s   ├─ qnames: %s\n", indent, strings.Join(o.QNames, " "))
		if !protocolData {
			fmt.Fprintf(&b, "%s   └─ %d bytes\n", indent, len(o.Packet))
			continue
		}
		fmt.Fprintf(&b, "%s   ├─ records:\n", indent)
		rrs, err := wire.DecodeAnswers(o.Packet)
		if err != nil {
			fmt.Fprintf(&b, "%s   │    (undecodable: %v)\n", indent, err)
		}
		for _, rr := range rrs {
			fmt.Fprintf(&b, "%s   │    %s\n", indent, rr.String())
		}
		fmt.Fprintf(&b, "%s   └─ %d bytes:\n", indent, len(o.Packet))
		for _, line := range strings.Split(strings.TrimRight(hex.Dump(o.Packet), "\n"), "\n") {
			fmt.Fprintf(&b, "%s        %s\n", indent, line)
		}
	}

	fmt.Fprintf(&b, "\nPassthrough intents (%d)\n", len(d.Passthrough))
	for i, p := range d.Passthrough {
		branch, _ := treeBranch(i, len(d.Passthrough))
		fmt.Fprintf(&b, "%s %s on %s, priority %d, app %d\n", branch, p.QName, p.Interface, p.Priority, p.AppID)
	}

	fmt.Fprintf(&b, "\nInterfaces (%d)\n", len(d.Interfaces))
	for i, iface := range d.Interfaces {
		branch, indent := treeBranch(i, len(d.Interfaces))
		state := "unavailable"
		if iface.Available {
			state = "available"
		}
		fmt.Fprintf(&b, "%s %s (%s)\n", branch, iface.Name, state)
		live := make([]string, len(iface.Offloaded))
		for j, r := range iface.Offloaded {
			live[j] = fmt.Sprintf("%d=>%d", r.DeviceKey, r.RecordKey)
		}
		fmt.Fprintf(&b, "%s   ├─ offloaded:   %s\n", indent, strings.Join(live, " "))
		fmt.Fprintf(&b, "%s   └─ passthrough: %s\n", indent, strings.Join(iface.Passthrough, " "))
	}

	return b.String()
}

func treeBranch(i, n int) (branch, indent string) {
	if i == n-1 {
		return "└─", "  "
	}
	return "├─", "│ "
}

// formatTotals renders aggregated counters as a table.
func formatTotals(t sqlite.Totals) string {
	var b strings.Builder
	last := "never"
	if !t.Last.IsZero() {
		last = t.Last.Local().Format(time.RFC3339)
	}
	fmt.Fprintf(&b, "Harvests: %d (last %s)\n", t.Harvests, last)
	fmt.Fprintf(&b, "Misses:   %d\n\n", t.Misses)
	fmt.Fprintf(&b, "%-16s %-10s %s\n", "INTERFACE", "RECORD", "HITS")
	for _, r := range t.Records {
		fmt.Fprintf(&b, "%-16s %-10d %d\n", r.Interface, r.RecordKey, r.Hits)
	}
	return b.String()
}

// formatHarvests renders individual harvests, newest first.
func formatHarvests(hs []sqlite.Harvest) string {
	var b strings.Builder
	for _, h := range hs {
		fmt.Fprintf(&b, "#%d %s misses=%d\n", h.ID, h.At.Local().Format(time.RFC3339), h.Misses)
		for _, hit := range h.Hits {
			fmt.Fprintf(&b, "    %-16s device=%-4d record=%-6d hits=%d\n", hit.Interface, hit.DeviceKey, hit.RecordKey, hit.Hits)
		}
	}
	return b.String()
}
