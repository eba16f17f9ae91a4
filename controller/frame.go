package controller

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Wire framing shared with the sensor firmware:
//
//	[SOF0][SOF1][LEN][CMD][payload...][CKS]
//
// LEN counts CMD plus payload; CKS is the XOR of LEN, CMD and the payload.
const (
	SOF0 = 0xAA
	SOF1 = 0x55

	// CmdSnapshot carries one reading of every channel.
	CmdSnapshot = 0x20

	snapshotPayloadLen = 12
	// gyroScale converts the int16 gyro fields (centi-rad/s) to rad/s.
	gyroScale = 100.0
)

// ErrBadChecksum is returned for frames whose checksum does not match.
var ErrBadChecksum = errors.New("frame checksum mismatch")

// Snapshot is one reading of all channels.
type Snapshot struct {
	// Switches has bit i set when switch i reads HIGH (released).
	Switches uint16
	Force    uint16
	Bend     uint16
	GX       float64
	GY       float64
	GZ       float64
}

// Levels expands the switch bitmask into n levels.
func (s Snapshot) Levels(n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = s.Switches&(1<<uint(i)) != 0
	}
	return out
}

// Encode builds the snapshot frame.
func (s Snapshot) Encode() []byte {
	payload := make([]byte, snapshotPayloadLen)
	binary.LittleEndian.PutUint16(payload[0:], s.Switches)
	binary.LittleEndian.PutUint16(payload[2:], s.Force)
	binary.LittleEndian.PutUint16(payload[4:], s.Bend)
	binary.LittleEndian.PutUint16(payload[6:], uint16(gyroToWire(s.GX)))
	binary.LittleEndian.PutUint16(payload[8:], uint16(gyroToWire(s.GY)))
	binary.LittleEndian.PutUint16(payload[10:], uint16(gyroToWire(s.GZ)))
	return EncodeFrame(CmdSnapshot, payload)
}

// DecodeSnapshot parses a CmdSnapshot payload.
func DecodeSnapshot(payload []byte) (Snapshot, error) {
	if len(payload) != snapshotPayloadLen {
		return Snapshot{}, fmt.Errorf("snapshot payload: got %d bytes, want %d", len(payload), snapshotPayloadLen)
	}
	return Snapshot{
		Switches: binary.LittleEndian.Uint16(payload[0:]),
		Force:    binary.LittleEndian.Uint16(payload[2:]),
		Bend:     binary.LittleEndian.Uint16(payload[4:]),
		GX:       float64(int16(binary.LittleEndian.Uint16(payload[6:]))) / gyroScale,
		GY:       float64(int16(binary.LittleEndian.Uint16(payload[8:]))) / gyroScale,
		GZ:       float64(int16(binary.LittleEndian.Uint16(payload[10:]))) / gyroScale,
	}, nil
}

func gyroToWire(v float64) int16 {
	w := math.Round(v * gyroScale)
	if w > math.MaxInt16 {
		w = math.MaxInt16
	}
	if w < math.MinInt16 {
		w = math.MinInt16
	}
	return int16(w)
}

// EncodeFrame wraps payload in the wire framing.
func EncodeFrame(cmd byte, payload []byte) []byte {
	length := byte(len(payload) + 1)
	cks := length ^ cmd
	for _, b := range payload {
		cks ^= b
	}
	out := make([]byte, 0, len(payload)+5)
	out = append(out, SOF0, SOF1, length, cmd)
	out = append(out, payload...)
	return append(out, cks)
}

// FrameDecoder reads frames from a byte stream, resynchronising on the
// start-of-frame marker after garbage or a bad frame.
type FrameDecoder struct {
	r *bufio.Reader
}

func NewFrameDecoder(r io.Reader) *FrameDecoder {
	return &FrameDecoder{r: bufio.NewReader(r)}
}

// Next returns the next frame's command and payload. A checksum mismatch
// returns ErrBadChecksum; the stream stays usable.
func (d *FrameDecoder) Next() (cmd byte, payload []byte, err error) {
	if err := d.sync(); err != nil {
		return 0, nil, err
	}
	length, err := d.r.ReadByte()
	if err != nil {
		return 0, nil, err
	}
	if length == 0 {
		return 0, nil, fmt.Errorf("frame: zero length")
	}
	body := make([]byte, int(length)+1)
	if _, err := io.ReadFull(d.r, body); err != nil {
		return 0, nil, err
	}
	cks := length
	for _, b := range body[:length] {
		cks ^= b
	}
	if cks != body[length] {
		return 0, nil, fmt.Errorf("frame cmd 0x%02x: %w", body[0], ErrBadChecksum)
	}
	return body[0], body[1:length], nil
}

func (d *FrameDecoder) sync() error {
	prev := byte(0)
	for {
		b, err := d.r.ReadByte()
		if err != nil {
			return err
		}
		if prev == SOF0 && b == SOF1 {
			return nil
		}
		prev = b
	}
}
