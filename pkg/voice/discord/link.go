package discord

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/tailbot/pkg/voice"
)

// Compile-time interface assertion.
var _ voice.Link = (*Link)(nil)

// ErrClosed is returned by [Link.Play] after the link terminated.
var ErrClosed = errors.New("discord: voice link closed")

// Link wraps a discordgo.VoiceConnection and adapts it to the [voice.Link]
// interface. It turns the raw receive channel and gateway callbacks into the
// five [voice.Event] kinds and encodes PCM playback to Opus.
//
// Link is safe for concurrent use.
type Link struct {
	vc        *discordgo.VoiceConnection
	session   *discordgo.Session
	guildID   string
	channelID string
	silence   time.Duration

	subsMu sync.RWMutex
	subs   map[voice.EventKind]map[uint64]voice.Handler
	nextID uint64

	tracks chan *track

	// speak sends speaking notifications. Defaults to vc.Speaking.
	speak func(bool) error

	done      chan struct{}
	closeOnce sync.Once

	removeHandler func() // removes the VoiceStateUpdate handler

	// disconnectVC is called during Disconnect to tear down the voice connection.
	// Defaults to vc.Disconnect; overridden in tests.
	disconnectVC func() error
}

// newLink initialises a Link for an already-joined voice channel and starts
// its receive loop.
func newLink(vc *discordgo.VoiceConnection, session *discordgo.Session, guildID, channelID string, silence time.Duration) *Link {
	l := &Link{
		vc:           vc,
		session:      session,
		guildID:      guildID,
		channelID:    channelID,
		silence:      silence,
		subs:         make(map[voice.EventKind]map[uint64]voice.Handler),
		done:         make(chan struct{}),
		tracks:       make(chan *track),
		speak:        vc.Speaking,
		disconnectVC: vc.Disconnect,
	}

	vc.AddHandler(l.handleSpeakingUpdate)
	l.removeHandler = session.AddHandler(l.handleVoiceStateUpdate)

	go l.recvLoop()
	go l.sendLoop()
	return l
}

// Subscribe implements [voice.Link].
func (l *Link) Subscribe(kind voice.EventKind, h voice.Handler) func() {
	l.subsMu.Lock()
	id := l.nextID
	l.nextID++
	if l.subs[kind] == nil {
		l.subs[kind] = make(map[uint64]voice.Handler)
	}
	l.subs[kind][id] = h
	l.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.subsMu.Lock()
			delete(l.subs[kind], id)
			l.subsMu.Unlock()
		})
	}
}

// Play implements [voice.Link]. Any track already playing is stopped and
// its source closed before the new one is sent.
func (l *Link) Play(src io.ReadCloser) error {
	select {
	case <-l.done:
		_ = src.Close()
		return ErrClosed
	default:
	}

	t := newTrack(src)
	select {
	case l.tracks <- t:
	case <-l.done:
		t.cancel()
		return ErrClosed
	}
	go t.run(l.guildID, l.done)
	return nil
}

// Done implements [voice.Link].
func (l *Link) Done() <-chan struct{} {
	return l.done
}

// Disconnect implements [voice.Link]. It is safe to call more than once;
// subsequent calls return nil.
func (l *Link) Disconnect() error {
	var err error
	l.closeOnce.Do(func() {
		l.terminate()
		if l.disconnectVC != nil {
			err = l.disconnectVC()
		}
	})
	return err
}

// drop marks the link terminated because the remote side went away. The
// voice connection is already gone, so it is not disconnected again.
func (l *Link) drop(reason string) {
	l.closeOnce.Do(func() {
		slog.Info("discord: voice link dropped", "guild_id", l.guildID, "channel_id", l.channelID, "reason", reason)
		l.terminate()
	})
}

func (l *Link) terminate() {
	close(l.done)
	if l.removeHandler != nil {
		l.removeHandler()
	}
}

// emit delivers ev to every handler subscribed to its kind, in the calling
// goroutine. Nothing is delivered after the link terminated.
func (l *Link) emit(ev voice.Event) {
	select {
	case <-l.done:
		return
	default:
	}

	l.subsMu.RLock()
	hs := make([]voice.Handler, 0, len(l.subs[ev.Kind()]))
	for _, h := range l.subs[ev.Kind()] {
		hs = append(hs, h)
	}
	l.subsMu.RUnlock()

	for _, h := range hs {
		h(ev)
	}
}

// recvLoop reads packets from the voice connection, splits RTCP from RTP,
// decodes audio per SSRC and derives speaking transitions.
func (l *Link) recvLoop() {
	decoders := make(map[uint32]*opusDecoder)
	speaking := newSpeakingTracker(l.silence)

	sweep := time.NewTicker(sweepInterval(l.silence))
	defer sweep.Stop()

	for {
		select {
		case <-l.done:
			return

		case now := <-sweep.C:
			for _, ssrc := range speaking.expire(now) {
				l.emit(voice.SpeakingUpdate{SSRC: ssrc, Speaking: false})
			}

		case pkt, ok := <-l.vc.OpusRecv:
			if !ok {
				l.drop("receive channel closed")
				return
			}
			if pkt == nil {
				continue
			}
			l.handlePacket(pkt, decoders, speaking)
		}
	}
}

// minSweep keeps the silence sweep ticker positive for tiny timeouts.
const minSweep = 5 * time.Millisecond

func sweepInterval(silence time.Duration) time.Duration {
	return max(silence/2, minSweep)
}

func (l *Link) handlePacket(pkt *discordgo.Packet, decoders map[uint32]*opusDecoder, speaking *speakingTracker) {
	if isControl(pkt) {
		packets, raw := controlDatagram(pkt)
		l.emit(voice.ControlPacket{Packets: packets, Raw: raw})
		return
	}

	now := time.Now()
	if speaking.observe(pkt.SSRC, now) {
		l.emit(voice.SpeakingUpdate{SSRC: pkt.SSRC, Speaking: true})
	}

	// Lazily create a decoder for this SSRC.
	dec, exists := decoders[pkt.SSRC]
	if !exists {
		var err error
		dec, err = newOpusDecoder()
		if err != nil {
			slog.Error("discord: failed to create opus decoder", "ssrc", pkt.SSRC, "error", err)
		} else {
			decoders[pkt.SSRC] = dec
		}
	}

	var pcm []int16
	if dec != nil {
		var err error
		if pcm, err = dec.decode(pkt.Opus); err != nil {
			slog.Debug("discord: opus decode error", "ssrc", pkt.SSRC, "error", err)
		}
	}

	l.emit(voice.AudioPacket{
		Header:     rtpHeader(pkt),
		Opus:       pkt.Opus,
		PCM:        pcm,
		ReceivedAt: now,
	})
}

// handleSpeakingUpdate forwards gateway speaking notifications.
func (l *Link) handleSpeakingUpdate(_ *discordgo.VoiceConnection, vs *discordgo.VoiceSpeakingUpdate) {
	l.emit(voice.SpeakingStateUpdate{
		UserID:   vs.UserID,
		SSRC:     uint32(vs.SSRC),
		Speaking: vs.Speaking,
	})
}

// handleVoiceStateUpdate detects users leaving the channel, including the
// bot itself being moved or kicked out of it.
func (l *Link) handleVoiceStateUpdate(s *discordgo.Session, vsu *discordgo.VoiceStateUpdate) {
	if vsu.GuildID != l.guildID || vsu.ChannelID == l.channelID {
		return
	}
	if vsu.BeforeUpdate != nil && vsu.BeforeUpdate.ChannelID != l.channelID {
		return
	}

	if s != nil && s.State != nil && s.State.User != nil && vsu.UserID == s.State.User.ID {
		l.drop("bot left voice channel")
		return
	}
	if vsu.BeforeUpdate == nil {
		return
	}
	l.emit(voice.ClientDisconnect{UserID: vsu.UserID})
}

// sendLoop is the only writer to vc.OpusSend and the only caller of
// setSpeaking. It plays one track at a time; a track handed over by Play
// replaces the current one without a speaking gap.
func (l *Link) sendLoop() {
	var (
		cur      *track
		speaking bool
	)
	speak := func(b bool) {
		if speaking != b {
			speaking = b
			l.setSpeaking(b)
		}
	}
	replace := func(t *track) {
		if cur != nil {
			l.drainSend()
			cur.cancel()
		}
		cur = t
	}
	defer func() {
		if cur != nil {
			cur.cancel()
		}
		speak(false)
	}()

	for {
		var frames <-chan []byte
		if cur != nil {
			frames = cur.frames
		}

		select {
		case <-l.done:
			return
		case t := <-l.tracks:
			replace(t)
		case opus, ok := <-frames:
			if !ok {
				cur = nil
				speak(false)
				continue
			}
			speak(true)
			select {
			case l.vc.OpusSend <- opus:
			case t := <-l.tracks:
				// The pending frame belongs to the replaced track.
				replace(t)
			case <-l.done:
				return
			}
		}
	}
}

// drainSend discards frames still queued for the voice connection.
func (l *Link) drainSend() {
	for {
		select {
		case <-l.vc.OpusSend:
		default:
			return
		}
	}
}

// setSpeaking sends a speaking notification to Discord, logging any errors.
func (l *Link) setSpeaking(b bool) {
	if err := l.speak(b); err != nil {
		slog.Warn("discord: speaking notification error", "speaking", b, "error", err)
	}
}

// track reads and encodes one playback source. frames is closed when the
// source ends or the track is cancelled.
type track struct {
	src       io.ReadCloser
	frames    chan []byte
	stop      chan struct{}
	closeOnce sync.Once
}

func newTrack(src io.ReadCloser) *track {
	return &track{src: src, frames: make(chan []byte), stop: make(chan struct{})}
}

// cancel stops the track and closes its source, which unblocks a pending
// read on pipes.
func (t *track) cancel() {
	t.closeOnce.Do(func() {
		close(t.stop)
		_ = t.src.Close()
	})
}

// run encodes the source frame by frame until it ends, the track is
// cancelled, or done closes. A trailing partial frame is zero-padded.
func (t *track) run(guildID string, done <-chan struct{}) {
	defer close(t.frames)
	defer t.cancel()

	enc, err := newOpusEncoder()
	if err != nil {
		slog.Error("discord: failed to create opus encoder", "error", err)
		return
	}

	frame := make([]byte, opusFrameBytes)
	for {
		n, err := io.ReadFull(t.src, frame)
		if n == 0 {
			select {
			case <-t.stop:
			default:
				if err != nil && !errors.Is(err, io.EOF) {
					slog.Warn("discord: playback read error", "guild_id", guildID, "error", err)
				}
			}
			return
		}
		clear(frame[n:])

		opus, eErr := enc.encode(frame)
		if eErr != nil {
			slog.Warn("discord: opus encode error", "error", eErr)
			continue
		}

		select {
		case t.frames <- opus:
		case <-t.stop:
			return
		case <-done:
			return
		}

		if err != nil {
			// Short final frame already sent.
			return
		}
	}
}
