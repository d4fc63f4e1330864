package server

import (
	"github.com/frobware/go-mdnsoffload"
	"github.com/frobware/go-mdnsoffload/manager"
	pb "github.com/frobware/go-mdnsoffload/server/pb"
	"github.com/frobware/go-mdnsoffload/wire"
)

func dumpToProto(d manager.Dump) *pb.DumpResponse {
	resp := &pb.DumpResponse{
		Connected:      d.Connected,
		OffloadEnabled: d.OffloadEnabled,
		Interactive:    d.Interactive,
	}
	for _, id := range d.Registry.AllowList {
		resp.AllowList = append(resp.AllowList, uint32(id))
	}
	for _, intent := range d.Registry.Offload {
		resp.Offload = append(resp.Offload, offloadIntentToProto(intent))
	}
	for _, intent := range d.Registry.Passthrough {
		resp.Passthrough = append(resp.Passthrough, pb.PassthroughIntentInfo{
			Interface: intent.Interface,
			QName:     intent.OriginalQName,
			Priority:  intent.Priority,
			AppID:     uint32(intent.AppID),
		})
	}
	for _, iface := range d.Interfaces {
		info := pb.InterfaceInfo{
			Name:        iface.Name,
			Available:   iface.State == manager.Available,
			Passthrough: iface.Passthrough,
		}
		for _, rec := range iface.Offloaded {
			info.Offloaded = append(info.Offloaded, pb.LiveRecord{
				DeviceKey: int32(rec.DeviceKey),
				RecordKey: uint32(rec.RecordKey),
			})
		}
		resp.Interfaces = append(resp.Interfaces, info)
	}
	return resp
}

func offloadIntentToProto(intent mdnsoffload.OffloadIntent) pb.OffloadIntentInfo {
	info := pb.OffloadIntentInfo{
		RecordKey: uint32(intent.RecordKey),
		Interface: intent.Interface,
		Priority:  intent.Priority,
		AppID:     uint32(intent.AppID),
		Packet:    intent.ProtocolData.RawPacket,
	}
	seen := make(map[string]struct{})
	for _, mc := range intent.ProtocolData.MatchCriteria {
		name, err := wire.ExtractFullName(intent.ProtocolData.RawPacket, int(mc.NameOffset))
		if err != nil {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		info.QNames = append(info.QNames, name)
	}
	return info
}
