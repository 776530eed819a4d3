package discord

import "time"

// speakingTracker derives speaking start/stop transitions per SSRC from the
// arrival of audio packets. An SSRC stops speaking once no packet has been
// seen for the silence window.
//
// speakingTracker is not safe for concurrent use; it is owned by the receive
// loop.
type speakingTracker struct {
	silence  time.Duration
	lastSeen map[uint32]time.Time
}

func newSpeakingTracker(silence time.Duration) *speakingTracker {
	return &speakingTracker{
		silence:  silence,
		lastSeen: make(map[uint32]time.Time),
	}
}

// observe records a packet for ssrc at now and reports whether this packet
// starts a new speaking run.
func (t *speakingTracker) observe(ssrc uint32, now time.Time) bool {
	_, active := t.lastSeen[ssrc]
	t.lastSeen[ssrc] = now
	return !active
}

// expire returns the SSRCs whose silence window elapsed before now and
// forgets them.
func (t *speakingTracker) expire(now time.Time) []uint32 {
	var stopped []uint32
	for ssrc, seen := range t.lastSeen {
		if now.Sub(seen) >= t.silence {
			stopped = append(stopped, ssrc)
			delete(t.lastSeen, ssrc)
		}
	}
	return stopped
}
