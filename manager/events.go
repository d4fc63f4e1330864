package manager

import (
	"github.com/frobware/go-mdnsoffload"
	"github.com/frobware/go-mdnsoffload/device"
)

// event is one unit of work for the event loop. Every external trigger
// is reified as an event and handled strictly in arrival order.
type event interface {
	isEvent()
}

type addOffload struct {
	owner Owner
	iface string
	data  mdnsoffload.ProtocolData
}

type removeOffload struct {
	owner mdnsoffload.OwnerToken
	key   mdnsoffload.RecordKey
}

type addPassthrough struct {
	owner Owner
	iface string
	qname string
}

type removePassthrough struct {
	owner mdnsoffload.OwnerToken
	iface string
	qname string
}

type networkAvailable struct {
	iface string
}

type networkLost struct {
	iface string
}

type deviceConnected struct {
	dev device.Device
}

type deviceDisconnected struct{}

type allowListChanged struct {
	ids []mdnsoffload.AppID
}

type ownerGone struct {
	owner mdnsoffload.OwnerToken
}

type interactiveChanged struct {
	interactive bool
}

type dumpState struct{}

func (addOffload) isEvent()         {}
func (removeOffload) isEvent()      {}
func (addPassthrough) isEvent()     {}
func (removePassthrough) isEvent()  {}
func (networkAvailable) isEvent()   {}
func (networkLost) isEvent()        {}
func (deviceConnected) isEvent()    {}
func (deviceDisconnected) isEvent() {}
func (allowListChanged) isEvent()   {}
func (ownerGone) isEvent()          {}
func (interactiveChanged) isEvent() {}
func (dumpState) isEvent()          {}

// envelope carries an event and, for synchronous callers, the channel
// its result is delivered on.
type envelope struct {
	ev    event
	reply chan result
}

type result struct {
	value any
	err   error
}
