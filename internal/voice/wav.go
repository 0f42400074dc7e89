package voice

import (
	"bytes"
	"encoding/binary"
)

// DefaultSampleRate is the capture rate submitted for transcription.
const DefaultSampleRate = 16000

// EncodeWAV wraps samples in a single-channel 16-bit PCM RIFF container:
// a 44-byte header followed by the interleaved little-endian samples.
func EncodeWAV(samples []int16, sampleRate int) []byte {
	const channels, bitsPerSample = 1, 16
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8
	dataLen := uint32(len(samples) * 2)

	buf := &bytes.Buffer{}
	buf.Grow(44 + int(dataLen))
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, 36+dataLen)
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, dataLen)
	_ = binary.Write(buf, binary.LittleEndian, samples)
	return buf.Bytes()
}

// PCMFromFloat32 converts normalized [-1, 1] frames to 16-bit PCM,
// clamping anything outside the representable range.
func PCMFromFloat32(frames []float32) []int16 {
	out := make([]int16, len(frames))
	for i, f := range frames {
		v := int32(f * 32767)
		if v > 32767 {
			v = 32767
		}
		if v < -32768 {
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}
