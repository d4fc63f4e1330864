package netwatch

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// NetlinkSource reads link updates from the kernel over rtnetlink.
type NetlinkSource struct {
	Logger *slog.Logger
}

// Subscribe implements Source. The returned channel closes when ctx is
// done or the netlink socket fails.
func (s NetlinkSource) Subscribe(ctx context.Context) (<-chan Link, error) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}

	raw := make(chan netlink.LinkUpdate, 16)
	err := netlink.LinkSubscribeWithOptions(raw, ctx.Done(), netlink.LinkSubscribeOptions{
		ListExisting: true,
		ErrorCallback: func(err error) {
			logger.Error("netlink subscription error", "error", err)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to link updates: %w", err)
	}

	out := make(chan Link)
	go func() {
		defer close(out)
		for u := range raw {
			select {
			case out <- fromUpdate(u):
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func fromUpdate(u netlink.LinkUpdate) Link {
	attrs := u.Link.Attrs()
	return Link{
		Index:    attrs.Index,
		Name:     attrs.Name,
		Up:       attrs.Flags&net.FlagUp != 0 && operational(attrs.OperState),
		Loopback: attrs.Flags&net.FlagLoopback != 0,
		Deleted:  u.Header.Type == unix.RTM_DELLINK,
	}
}

// operational treats "unknown" as up; many virtual drivers never
// report an operational state.
func operational(s netlink.LinkOperState) bool {
	return s == netlink.OperUp || s == netlink.OperUnknown
}
