// Package action contains reified device effects - descriptions of what
// to do to the companion device without doing it. These are pure data
// structures produced by package compute and executed by the
// reconciler.
package action

import (
	"github.com/frobware/go-mdnsoffload"
)

// Action represents an effect to be executed against the device.
type Action interface {
	isAction()
}

// Offload actions

// RemoveProtocolResponse removes a previously offloaded response.
type RemoveProtocolResponse struct {
	Interface string
	Key       mdnsoffload.DeviceKey
}

func (RemoveProtocolResponse) isAction() {}

// AddProtocolResponse offloads the protocol data of one intent.
type AddProtocolResponse struct {
	Interface string
	RecordKey mdnsoffload.RecordKey
	Data      mdnsoffload.ProtocolData
}

func (AddProtocolResponse) isAction() {}

// Passthrough actions

// SetPassthroughMode selects the passthrough behaviour of an interface.
type SetPassthroughMode struct {
	Interface string
	Mode      mdnsoffload.PassthroughMode
}

func (SetPassthroughMode) isAction() {}

// RemovePassthroughEntry removes a name from the passthrough list.
// QName is the name as tracked; SimpleName is what the device is sent.
type RemovePassthroughEntry struct {
	Interface  string
	QName      string
	SimpleName string
}

func (RemovePassthroughEntry) isAction() {}

// AddPassthroughEntry adds a name to the passthrough list.
type AddPassthroughEntry struct {
	Interface  string
	QName      string
	SimpleName string
}

func (AddPassthroughEntry) isAction() {}
