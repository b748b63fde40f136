package audio

import (
	"encoding/base64"
	"encoding/binary"
	"math"
)

// EncodeFrame converts a normalized mono float frame into a base64 PCM16
// little-endian chunk suitable for a buffer-append message.
//
// Samples are clamped to [-1, 1]. Negative samples scale by 32768 and
// non-negative samples by 32767 so that both ends of the int16 range are
// reachable without overflow.
func EncodeFrame(frame []float32) string {
	if len(frame) == 0 {
		return ""
	}

	return base64.StdEncoding.EncodeToString(Float32ToPCM16(frame))
}

// DecodeChunk converts a base64 PCM16 little-endian chunk back into a
// normalized float frame.
func DecodeChunk(chunk string) ([]float32, error) {
	if chunk == "" {
		return nil, nil
	}

	raw, err := base64.StdEncoding.DecodeString(chunk)
	if err != nil {
		return nil, err
	}

	return PCM16ToFloat32(raw), nil
}

// Float32ToPCM16 packs normalized samples as little-endian int16 bytes.
func Float32ToPCM16(frame []float32) []byte {
	buf := make([]byte, len(frame)*2)
	for i, sample := range frame {
		clamped := math.Max(-1, math.Min(1, float64(sample)))
		var scaled int16
		if clamped < 0 {
			scaled = int16(clamped * 32768)
		} else {
			scaled = int16(clamped * 32767)
		}
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(scaled))
	}
	return buf
}

// PCM16ToFloat32 unpacks little-endian int16 bytes into normalized samples.
// A trailing odd byte is dropped rather than treated as an error.
func PCM16ToFloat32(raw []byte) []float32 {
	sampleCount := len(raw) / 2
	if sampleCount == 0 {
		return nil
	}

	frame := make([]float32, sampleCount)
	for i := range frame {
		sample := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		if sample < 0 {
			frame[i] = float32(sample) / 32768
		} else {
			frame[i] = float32(sample) / 32767
		}
	}
	return frame
}

// Peak returns the largest absolute amplitude in the frame.
func Peak(frame []float32) float64 {
	peak := 0.0
	for _, sample := range frame {
		if amplitude := math.Abs(float64(sample)); amplitude > peak {
			peak = amplitude
		}
	}
	return peak
}
