package voice

import (
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

// EventKind classifies the low-level events a [Link] emits.
type EventKind int

const (
	// KindSpeakingStateUpdate is emitted when the gateway announces a user's
	// speaking flags together with their SSRC.
	KindSpeakingStateUpdate EventKind = iota

	// KindSpeakingUpdate is emitted when audio for an SSRC starts or stops
	// arriving.
	KindSpeakingUpdate

	// KindAudioPacket is emitted for every received audio packet.
	KindAudioPacket

	// KindControlPacket is emitted for every received RTCP packet.
	KindControlPacket

	// KindClientDisconnect is emitted when a user leaves the channel.
	KindClientDisconnect
)

// Kinds lists every event kind in declaration order.
var Kinds = []EventKind{
	KindSpeakingStateUpdate,
	KindSpeakingUpdate,
	KindAudioPacket,
	KindControlPacket,
	KindClientDisconnect,
}

// String returns the human-readable name of the event kind.
func (k EventKind) String() string {
	switch k {
	case KindSpeakingStateUpdate:
		return "speaking_state_update"
	case KindSpeakingUpdate:
		return "speaking_update"
	case KindAudioPacket:
		return "audio_packet"
	case KindControlPacket:
		return "control_packet"
	case KindClientDisconnect:
		return "client_disconnect"
	default:
		return "unknown"
	}
}

// Event is the tagged union of everything a [Link] can deliver. The concrete
// types are [SpeakingStateUpdate], [SpeakingUpdate], [AudioPacket],
// [ControlPacket] and [ClientDisconnect].
type Event interface {
	Kind() EventKind
}

// SpeakingStateUpdate announces which SSRC a user transmits on and whether
// they are flagged as speaking.
type SpeakingStateUpdate struct {
	UserID   string
	SSRC     uint32
	Speaking bool
}

// Kind implements [Event].
func (SpeakingStateUpdate) Kind() EventKind { return KindSpeakingStateUpdate }

// SpeakingUpdate reports that audio for SSRC started or stopped flowing.
type SpeakingUpdate struct {
	SSRC     uint32
	Speaking bool
}

// Kind implements [Event].
func (SpeakingUpdate) Kind() EventKind { return KindSpeakingUpdate }

// AudioPacket carries one received RTP audio packet.
type AudioPacket struct {
	// Header is the RTP header of the packet.
	Header rtp.Header

	// Opus is the decrypted Opus payload.
	Opus []byte

	// PCM holds the decoded interleaved samples. Nil when decoding failed.
	PCM []int16

	// ReceivedAt is the local receive time.
	ReceivedAt time.Time
}

// Kind implements [Event].
func (AudioPacket) Kind() EventKind { return KindAudioPacket }

// ControlPacket carries one received RTCP datagram.
type ControlPacket struct {
	// Packets are the parsed RTCP packets of a compound datagram. Empty when
	// the datagram could not be parsed.
	Packets []rtcp.Packet

	// Raw is the datagram as received.
	Raw []byte
}

// Kind implements [Event].
func (ControlPacket) Kind() EventKind { return KindControlPacket }

// ClientDisconnect reports that a user left the voice channel.
type ClientDisconnect struct {
	UserID string
}

// Kind implements [Event].
func (ClientDisconnect) Kind() EventKind { return KindClientDisconnect }
