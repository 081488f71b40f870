package core

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// MediaConnection is the offerer side of a peer connection.
type MediaConnection interface {
	// Start configures internal callbacks and binds the connection lifetime to ctx.
	Start(ctx context.Context) error
	// Close should stop all underlying media resources.
	Close()
	IsClosed() bool
	// AddICECandidate applies a remote ICE candidate.
	AddICECandidate(webrtc.ICECandidateInit) error
	ApplyAnswer(webrtc.SessionDescription) error
	// CreateAndSetOffer returns the local offer once ICE gathering completed.
	CreateAndSetOffer(ctx context.Context) (*webrtc.SessionDescription, error)
	// OnICECandidate sets a callback for newly gathered local ICE candidates.
	OnICECandidate(func(webrtc.ICECandidateInit))
	// OnTrack sets a callback that will be invoked when a new remote track arrives.
	OnTrack(func(ctx context.Context, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver))
	// AddLocalTrack attaches a local track to the underlying PeerConnection.
	AddLocalTrack(track webrtc.TrackLocal) (*webrtc.RTPSender, error)
	RemoveSender(sender *webrtc.RTPSender) error
	// AddRecvTransceiver asks the remote side for media of kind.
	AddRecvTransceiver(kind webrtc.RTPCodecType) error
	// OnClosed sets a callback for cleanup media session.
	OnClosed(func())
}
