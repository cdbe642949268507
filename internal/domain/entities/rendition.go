package entities

// RenditionState is the repository-side state of a derived rendition.
// It only moves forward: missing -> pending -> ready.
type RenditionState string

const (
	RenditionMissing RenditionState = "missing"
	RenditionPending RenditionState = "pending"
	RenditionReady   RenditionState = "ready"
)

// GateStatus is the answer the rendition gate gives an action.
type GateStatus string

const (
	// GateReady means the rendition exists and its content can be fetched.
	GateReady GateStatus = "ready"
	// GatePendingRequested means the rendition was missing and creation has just been requested.
	GatePendingRequested GateStatus = "pending_requested"
	// GatePendingAlreadyRequested means creation was requested earlier and is still running.
	GatePendingAlreadyRequested GateStatus = "pending_already_requested"
)

// Ready reports whether the rendition content can be fetched.
func (s GateStatus) Ready() bool {
	return s == GateReady
}
