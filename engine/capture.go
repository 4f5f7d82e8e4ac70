package engine

import "encoding/binary"

// captureMetaSize is the fixed, padding-free byte layout of a CaptureMeta
// record as it travels across the metadata ring: 3 int32 fields, 4 int64
// fields, then a trailing int32 session id. Encoding explicitly with
// encoding/binary (rather than relying on unsafe.Sizeof/struct layout) keeps
// the wire format identical regardless of compiler alignment choices.
const captureMetaSize = 3*4 + 4*8 + 4

// CaptureMeta is the fixed-size metadata record paired with every capture
// PCM payload. Field order matches the wire layout exactly.
type CaptureMeta struct {
	NumFrames         int32
	SampleRate        int32
	Channels          int32
	InputFramePos     int64
	OutputFramePos    int64 // captureBase: playFrame at the start of this chunk
	TimestampNanos    int64 // best-effort device clock; 0 if unavailable
	OutputFramePosRel int64 // OutputFramePos - sessionStartFrame
	SessionID         int32
}

// encode writes m into dst (which must be at least captureMetaSize bytes)
// using native byte order, with no padding between fields.
func (m CaptureMeta) encode(dst []byte) {
	binary.NativeEndian.PutUint32(dst[0:4], uint32(m.NumFrames))
	binary.NativeEndian.PutUint32(dst[4:8], uint32(m.SampleRate))
	binary.NativeEndian.PutUint32(dst[8:12], uint32(m.Channels))
	binary.NativeEndian.PutUint64(dst[12:20], uint64(m.InputFramePos))
	binary.NativeEndian.PutUint64(dst[20:28], uint64(m.OutputFramePos))
	binary.NativeEndian.PutUint64(dst[28:36], uint64(m.TimestampNanos))
	binary.NativeEndian.PutUint64(dst[36:44], uint64(m.OutputFramePosRel))
	binary.NativeEndian.PutUint32(dst[44:48], uint32(m.SessionID))
}

// decodeCaptureMeta reads a CaptureMeta from src (which must be at least
// captureMetaSize bytes).
func decodeCaptureMeta(src []byte) CaptureMeta {
	return CaptureMeta{
		NumFrames:         int32(binary.NativeEndian.Uint32(src[0:4])),
		SampleRate:        int32(binary.NativeEndian.Uint32(src[4:8])),
		Channels:          int32(binary.NativeEndian.Uint32(src[8:12])),
		InputFramePos:     int64(binary.NativeEndian.Uint64(src[12:20])),
		OutputFramePos:    int64(binary.NativeEndian.Uint64(src[20:28])),
		TimestampNanos:    int64(binary.NativeEndian.Uint64(src[28:36])),
		OutputFramePosRel: int64(binary.NativeEndian.Uint64(src[36:44])),
		SessionID:         int32(binary.NativeEndian.Uint32(src[44:48])),
	}
}

// CapturePacket is the decoded form of a CaptureMeta plus its PCM16 payload,
// handed to HostCaptureSink.OnCaptured once per delivered chunk.
type CapturePacket struct {
	PCM16             []byte
	NumFrames         int32
	SampleRate        int32
	Channels          int32
	InputFramePos     int64
	OutputFramePos    int64
	TimestampNanos    int64
	OutputFramePosRel int64
	SessionID         int32
}

// HostCaptureSink receives capture packets from the dispatcher. Implementations
// must drop packets whose SessionID does not match the session the host is
// currently tracking; the engine itself never filters by session on the
// delivery path (spec: "the host is responsible for dropping").
type HostCaptureSink interface {
	OnCaptured(pkt CapturePacket)
}
