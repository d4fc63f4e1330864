package manager

import (
	"context"
	"log/slog"

	"github.com/frobware/go-mdnsoffload/reconciler"
	"github.com/frobware/go-mdnsoffload/registry"
)

// State is the availability of one interface.
type State int

const (
	Unavailable State = iota
	Available
)

func (s State) String() string {
	if s == Available {
		return "available"
	}
	return "unavailable"
}

// Controller drives reconciliation for one interface. Every transition
// is a full pass using the then-current registry contents; there are no
// timers and no retries.
type Controller struct {
	iface  string
	state  State
	reg    *registry.Registry
	rec    *reconciler.Reconciler
	logger *slog.Logger
}

// NewController returns an Unavailable controller for iface.
func NewController(iface string, reg *registry.Registry, rec *reconciler.Reconciler, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		iface:  iface,
		reg:    reg,
		rec:    rec,
		logger: logger.With("iface", iface),
	}
}

// Interface returns the interface name.
func (c *Controller) Interface() string { return c.iface }

// State returns the current availability.
func (c *Controller) State() State { return c.state }

// OnNetworkAvailable offloads everything stored for the interface.
func (c *Controller) OnNetworkAvailable(ctx context.Context) {
	c.logger.Debug("interface available, offloading stored intents")
	c.state = Available
	c.RefreshOffload(ctx)
	c.RefreshPassthrough(ctx)
}

// OnNetworkLost evicts everything tracked for the interface.
func (c *Controller) OnNetworkLost(ctx context.Context) {
	c.logger.Debug("interface lost, clearing device state")
	c.state = Unavailable
	c.rec.ReconcileOffload(ctx, c.iface, nil)
	c.rec.ReconcilePassthrough(ctx, c.iface, nil)
}

// OnDeviceConnected forgets tracked state, since the device starts
// empty, and reapplies desired state if the interface is up.
func (c *Controller) OnDeviceConnected(ctx context.Context) {
	c.rec.Forget(c.iface)
	c.RefreshOffload(ctx)
	c.RefreshPassthrough(ctx)
}

// OnDeviceDisconnected forgets tracked state without device calls.
func (c *Controller) OnDeviceDisconnected() {
	c.rec.Forget(c.iface)
}

// OnAllowListChanged reapplies desired state under the new allow-list.
func (c *Controller) OnAllowListChanged(ctx context.Context) {
	c.RefreshOffload(ctx)
	c.RefreshPassthrough(ctx)
}

// RefreshOffload reconciles offloaded responses if the interface is up.
func (c *Controller) RefreshOffload(ctx context.Context) {
	if c.state != Available {
		return
	}
	c.rec.ReconcileOffload(ctx, c.iface, c.reg.OffloadIntentsFor(c.iface))
}

// RefreshPassthrough reconciles the passthrough list if the interface
// is up.
func (c *Controller) RefreshPassthrough(ctx context.Context) {
	if c.state != Available {
		return
	}
	c.rec.ReconcilePassthrough(ctx, c.iface, c.reg.PassthroughIntentsFor(c.iface))
}
