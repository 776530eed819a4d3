package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pion/rtcp"

	"github.com/MrWong99/tailbot/internal/observe"
	"github.com/MrWong99/tailbot/pkg/voice"
)

// Multiplexer dispatches each voice event to the routine for its kind. It
// only logs and records metrics; it holds no state of its own.
type Multiplexer struct {
	metrics *observe.Metrics
	log     *slog.Logger
}

// NewMultiplexer returns a Multiplexer recording to met. A nil met uses
// [observe.DefaultMetrics].
func NewMultiplexer(met *observe.Metrics) *Multiplexer {
	if met == nil {
		met = observe.DefaultMetrics()
	}
	return &Multiplexer{
		metrics: met,
		log:     slog.Default().With("component", "voice_events"),
	}
}

// OnEvent implements [EventHandler]. It panics on an event type it does not
// know, since every producer is bound to the five kinds of [voice.Event].
func (m *Multiplexer) OnEvent(ev voice.Event) {
	switch e := ev.(type) {
	case voice.SpeakingStateUpdate:
		m.speakingState(e)
	case voice.SpeakingUpdate:
		m.speaking(e)
	case voice.AudioPacket:
		m.audio(e)
	case voice.ControlPacket:
		m.control(e)
	case voice.ClientDisconnect:
		m.disconnect(e)
	default:
		panic(fmt.Sprintf("session: unexpected voice event %T", ev))
	}
	m.metrics.RecordVoiceEvent(context.Background(), ev.Kind().String())
}

func (m *Multiplexer) speakingState(e voice.SpeakingStateUpdate) {
	m.log.Debug("speaking state changed", "user_id", e.UserID, "ssrc", e.SSRC, "speaking", e.Speaking)
}

func (m *Multiplexer) speaking(e voice.SpeakingUpdate) {
	if e.Speaking {
		m.log.Debug("source started speaking", "ssrc", e.SSRC)
		return
	}
	m.log.Debug("source stopped speaking", "ssrc", e.SSRC)
}

func (m *Multiplexer) audio(e voice.AudioPacket) {
	if len(e.PCM) == 0 {
		m.log.Debug("audio packet without decoded audio",
			"ssrc", e.Header.SSRC, "seq", e.Header.SequenceNumber, "opus_bytes", len(e.Opus))
		return
	}
	m.metrics.RecordAudio(context.Background(), len(e.PCM))
	m.log.Debug("audio packet",
		"ssrc", e.Header.SSRC,
		"seq", e.Header.SequenceNumber,
		"samples", len(e.PCM),
		"bytes", len(e.PCM)*2,
	)
}

func (m *Multiplexer) control(e voice.ControlPacket) {
	if len(e.Packets) == 0 {
		m.log.Debug("unparsed control packet", "bytes", len(e.Raw))
		return
	}
	for _, p := range e.Packets {
		m.log.Debug("control packet", "type", controlType(p), "ssrcs", p.DestinationSSRC())
	}
}

func (m *Multiplexer) disconnect(e voice.ClientDisconnect) {
	m.log.Info("user left voice channel", "user_id", e.UserID)
}

// controlType names an RTCP packet for logging.
func controlType(p rtcp.Packet) string {
	switch p.(type) {
	case *rtcp.SenderReport:
		return "sender_report"
	case *rtcp.ReceiverReport:
		return "receiver_report"
	case *rtcp.SourceDescription:
		return "source_description"
	case *rtcp.Goodbye:
		return "goodbye"
	default:
		return fmt.Sprintf("%T", p)
	}
}
