package discord

import (
	"encoding/binary"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/pion/rtcp"
)

// splitDatagram mimics how the voice connection slices a received datagram
// into a Packet.
func splitDatagram(raw []byte) *discordgo.Packet {
	return &discordgo.Packet{
		Type:      raw[0:2],
		Sequence:  binary.BigEndian.Uint16(raw[2:4]),
		Timestamp: binary.BigEndian.Uint32(raw[4:8]),
		SSRC:      binary.BigEndian.Uint32(raw[8:12]),
		Opus:      raw[12:],
	}
}

func TestIsControl(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		typ  []byte
		want bool
	}{
		{name: "opus audio", typ: []byte{0x80, 0x78}, want: false},
		{name: "opus audio with marker", typ: []byte{0x80, 0xf8}, want: false},
		{name: "sender report", typ: []byte{0x80, 200}, want: true},
		{name: "receiver report", typ: []byte{0x81, 201}, want: true},
		{name: "app packet", typ: []byte{0x80, 204}, want: true},
		{name: "above rtcp range", typ: []byte{0x80, 205}, want: false},
		{name: "short type", typ: []byte{0x80}, want: false},
		{name: "empty type", typ: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := isControl(&discordgo.Packet{Type: tt.typ}); got != tt.want {
				t.Errorf("isControl(%v) = %v, want %v", tt.typ, got, tt.want)
			}
		})
	}
}

func TestRTPHeader(t *testing.T) {
	t.Parallel()

	pkt := &discordgo.Packet{
		Type:      []byte{0x90, 0xf8},
		Sequence:  4242,
		Timestamp: 96000,
		SSRC:      77,
	}
	h := rtpHeader(pkt)

	if h.Version != 2 {
		t.Errorf("Version = %d, want 2", h.Version)
	}
	if !h.Extension {
		t.Error("Extension = false, want true")
	}
	if h.Padding {
		t.Error("Padding = true, want false")
	}
	if !h.Marker {
		t.Error("Marker = false, want true")
	}
	if h.PayloadType != 0x78 {
		t.Errorf("PayloadType = %d, want %d", h.PayloadType, 0x78)
	}
	if h.SequenceNumber != 4242 || h.Timestamp != 96000 || h.SSRC != 77 {
		t.Errorf("header = %+v, want seq 4242 ts 96000 ssrc 77", h)
	}
}

func TestControlDatagram_SenderReport(t *testing.T) {
	t.Parallel()

	sr := &rtcp.SenderReport{
		SSRC:        0xdeadbeef,
		NTPTime:     0x0102030405060708,
		RTPTime:     48000,
		PacketCount: 10,
		OctetCount:  1200,
	}
	raw, err := sr.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	packets, got := controlDatagram(splitDatagram(raw))
	if string(got) != string(raw) {
		t.Fatalf("raw datagram not reassembled: got %x, want %x", got, raw)
	}
	if len(packets) != 1 {
		t.Fatalf("packets = %d, want 1", len(packets))
	}
	parsed, ok := packets[0].(*rtcp.SenderReport)
	if !ok {
		t.Fatalf("packet type = %T, want *rtcp.SenderReport", packets[0])
	}
	if parsed.SSRC != sr.SSRC || parsed.PacketCount != 10 || parsed.OctetCount != 1200 {
		t.Errorf("parsed = %+v, want %+v", parsed, sr)
	}
}

func TestControlDatagram_Garbage(t *testing.T) {
	t.Parallel()

	pkt := &discordgo.Packet{
		Type: []byte{0x80, 200},
		Opus: []byte{0xff},
	}
	packets, raw := controlDatagram(pkt)
	if len(packets) != 0 {
		t.Errorf("packets = %d, want 0 for unparsable datagram", len(packets))
	}
	if len(raw) != 13 {
		t.Errorf("raw length = %d, want 13", len(raw))
	}
}
