package discord

import (
	"encoding/binary"

	"github.com/bwmarrin/discordgo"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

// RTCP payload types occupy 200–204 in the second header byte (RFC 3550 §12.1).
const (
	rtcpTypeFirst = 200
	rtcpTypeLast  = 204
)

// isControl reports whether pkt is an RTCP datagram rather than RTP audio.
// The voice connection demultiplexes both off the same socket, so the
// second header byte is the only reliable discriminator.
func isControl(pkt *discordgo.Packet) bool {
	if len(pkt.Type) < 2 {
		return false
	}
	pt := pkt.Type[1]
	return pt >= rtcpTypeFirst && pt <= rtcpTypeLast
}

// rtpHeader rebuilds the RTP header fields the voice connection parsed.
func rtpHeader(pkt *discordgo.Packet) rtp.Header {
	h := rtp.Header{
		SequenceNumber: pkt.Sequence,
		Timestamp:      pkt.Timestamp,
		SSRC:           pkt.SSRC,
	}
	if len(pkt.Type) >= 2 {
		h.Version = pkt.Type[0] >> 6
		h.Padding = pkt.Type[0]&0x20 != 0
		h.Extension = pkt.Type[0]&0x10 != 0
		h.Marker = pkt.Type[1]&0x80 != 0
		h.PayloadType = pkt.Type[1] & 0x7f
	}
	return h
}

// controlDatagram reassembles the raw RTCP datagram from the 12 header bytes
// the voice connection split off and the payload, then parses it. A parse
// failure yields the raw bytes with no packets.
func controlDatagram(pkt *discordgo.Packet) ([]rtcp.Packet, []byte) {
	raw := make([]byte, 12, 12+len(pkt.Opus))
	copy(raw[0:2], pkt.Type)
	binary.BigEndian.PutUint16(raw[2:4], pkt.Sequence)
	binary.BigEndian.PutUint32(raw[4:8], pkt.Timestamp)
	binary.BigEndian.PutUint32(raw[8:12], pkt.SSRC)
	raw = append(raw, pkt.Opus...)

	packets, err := rtcp.Unmarshal(raw)
	if err != nil {
		return nil, raw
	}
	return packets, raw
}
