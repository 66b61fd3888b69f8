package output

import (
	"encoding/binary"
	"fmt"
	"math"
	"net"

	"github.com/charmbracelet/log"
)

/*------------------------------------------------------------------
 *
 * Purpose:	UDP audio streaming sink.
 *
 * 		Streams float32 little-endian mono audio in MTU-safe
 * 		datagrams (1472 bytes: Ethernet 1500 minus IP and UDP
 * 		headers). Each datagram carries a small header with the
 * 		channel id and a sequence number so the receiver can
 * 		detect loss and reassemble batches.
 *
 *----------------------------------------------------------------*/

const (
	maxUDPPayload = 1472
	udpHeaderSize = 12
	// samples per datagram after the header
	udpSamplesPerPacket = (maxUDPPayload - udpHeaderSize) / 4
)

// UDPConfig configures one UDP stream sink.
type UDPConfig struct {
	Address   string // host:port
	ChannelID uint32
}

// UDPSink implements Sink over a connected UDP socket.
type UDPSink struct {
	cfg  UDPConfig
	conn net.Conn
	seq  uint32
	pkt  [maxUDPPayload]byte
}

// NewUDPSink resolves and connects the destination.
func NewUDPSink(cfg UDPConfig) (*UDPSink, error) {
	conn, err := net.Dial("udp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("udp output: %w", err)
	}
	log.Info("udp stream connected", "dest", cfg.Address, "channel", cfg.ChannelID)
	return &UDPSink{cfg: cfg, conn: conn}, nil
}

func (s *UDPSink) Name() string { return "udp:" + s.cfg.Address }

// WriteSamples splits the batch into datagrams and sends them. Send
// errors are returned but a lossy network is the expected case; the
// caller logs and keeps going.
func (s *UDPSink) WriteSamples(samples []float32) error {
	for off := 0; off < len(samples); off += udpSamplesPerPacket {
		end := off + udpSamplesPerPacket
		if end > len(samples) {
			end = len(samples)
		}
		chunk := samples[off:end]

		binary.LittleEndian.PutUint32(s.pkt[0:], s.cfg.ChannelID)
		binary.LittleEndian.PutUint32(s.pkt[4:], s.seq)
		binary.LittleEndian.PutUint32(s.pkt[8:], uint32(len(chunk)))
		for i, v := range chunk {
			binary.LittleEndian.PutUint32(s.pkt[udpHeaderSize+4*i:], math.Float32bits(v))
		}
		s.seq++

		if _, err := s.conn.Write(s.pkt[:udpHeaderSize+4*len(chunk)]); err != nil {
			return fmt.Errorf("udp output: %w", err)
		}
	}
	return nil
}

func (s *UDPSink) Close() error { return s.conn.Close() }
