package discord

import (
	"encoding/binary"
	"fmt"

	"layeh.com/gopus"
)

// Discord voice uses 48 kHz stereo Opus at 20 ms frame size.
const (
	opusSampleRate  = 48000
	opusChannels    = 2
	opusFrameSizeMs = 20
	// opusFrameSize is the number of samples per channel per 20 ms frame.
	opusFrameSize = opusSampleRate * opusFrameSizeMs / 1000 // 960

	// opusFrameBytes is the PCM input size for one Opus frame:
	// 960 samples/channel × 2 channels × 2 bytes/sample = 3840 bytes.
	opusFrameBytes = opusFrameSize * opusChannels * 2
)

// opusDecoder wraps a gopus decoder for a single SSRC. Each SSRC gets its own
// decoder so decoder state stays correct across consecutive frames.
type opusDecoder struct {
	dec *gopus.Decoder
}

func newOpusDecoder() (*opusDecoder, error) {
	dec, err := gopus.NewDecoder(opusSampleRate, opusChannels)
	if err != nil {
		return nil, fmt.Errorf("discord: create opus decoder: %w", err)
	}
	return &opusDecoder{dec: dec}, nil
}

// decode decodes an Opus packet into interleaved int16 samples.
func (d *opusDecoder) decode(opus []byte) ([]int16, error) {
	pcm, err := d.dec.Decode(opus, opusFrameSize, false)
	if err != nil {
		return nil, fmt.Errorf("discord: opus decode: %w", err)
	}
	return pcm, nil
}

// opusEncoder wraps a gopus encoder for the playback stream.
type opusEncoder struct {
	enc *gopus.Encoder
	pcm []int16
}

func newOpusEncoder() (*opusEncoder, error) {
	enc, err := gopus.NewEncoder(opusSampleRate, opusChannels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("discord: create opus encoder: %w", err)
	}
	return &opusEncoder{enc: enc, pcm: make([]int16, opusFrameSize*opusChannels)}, nil
}

// encode encodes exactly one frame of little-endian PCM bytes into Opus.
func (e *opusEncoder) encode(frame []byte) ([]byte, error) {
	for i := range e.pcm {
		e.pcm[i] = int16(binary.LittleEndian.Uint16(frame[i*2:]))
	}
	opus, err := e.enc.Encode(e.pcm, opusFrameSize, len(frame))
	if err != nil {
		return nil, fmt.Errorf("discord: opus encode: %w", err)
	}
	return opus, nil
}
