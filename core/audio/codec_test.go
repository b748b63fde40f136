package audio

import (
	"encoding/base64"
	"math"
	"testing"
)

func TestEncodeDecodeRoundTripWithinQuantizationError(t *testing.T) {
	frame := []float32{0, 0.25, -0.25, 0.5, -0.5, 0.999, -0.999, 1, -1}

	decoded, err := DecodeChunk(EncodeFrame(frame))
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if len(decoded) != len(frame) {
		t.Fatalf("expected %d samples after round trip, got %d", len(frame), len(decoded))
	}

	const quantizationStep = 1.0 / 32767
	for i := range frame {
		if diff := math.Abs(float64(frame[i]) - float64(decoded[i])); diff > quantizationStep {
			t.Fatalf("sample %d drifted by %f, more than one quantization step", i, diff)
		}
	}
}

func TestEncodeFrameClampsOutOfRangeSamples(t *testing.T) {
	decoded, err := DecodeChunk(EncodeFrame([]float32{2.5, -3.0}))
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}

	if decoded[0] != 1 {
		t.Fatalf("expected positive overdrive to clamp to 1, got %f", decoded[0])
	}
	if decoded[1] != -1 {
		t.Fatalf("expected negative overdrive to clamp to -1, got %f", decoded[1])
	}
}

func TestEncodeFrameEmptyInputIsNoOp(t *testing.T) {
	if chunk := EncodeFrame(nil); chunk != "" {
		t.Fatalf("expected empty chunk for empty frame, got %q", chunk)
	}

	frame, err := DecodeChunk("")
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if frame != nil {
		t.Fatalf("expected nil frame for empty chunk, got %v", frame)
	}
}

func TestDecodeChunkDropsTrailingOddByte(t *testing.T) {
	chunk := base64.StdEncoding.EncodeToString([]byte{0x00, 0x40, 0x7f})

	frame, err := DecodeChunk(chunk)
	if err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if len(frame) != 1 {
		t.Fatalf("expected a single whole sample, got %d", len(frame))
	}
}

func TestDecodeChunkRejectsMalformedBase64(t *testing.T) {
	if _, err := DecodeChunk("not base64!!"); err == nil {
		t.Fatalf("expected error for malformed base64 chunk")
	}
}

func TestPeakFindsLargestAbsoluteAmplitude(t *testing.T) {
	if peak := Peak([]float32{0.1, -0.7, 0.3}); peak != 0.7 {
		t.Fatalf("expected peak 0.7, got %f", peak)
	}
	if peak := Peak(nil); peak != 0 {
		t.Fatalf("expected zero peak for empty frame, got %f", peak)
	}
}
