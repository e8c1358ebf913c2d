package services

import (
	"bytes"
	"testing"
	"time"
)

// mp3Frames builds n silent MPEG-1 Layer III frames at 128 kbps, 44.1 kHz.
func mp3Frames(n int) []byte {
	frame := make([]byte, 417)
	copy(frame, []byte{0xFF, 0xFB, 0x90, 0x00})
	return bytes.Repeat(frame, n)
}

func TestMP3Duration(t *testing.T) {
	got, err := mp3Duration(mp3Frames(10))
	if err != nil {
		t.Fatalf("mp3Duration: %v", err)
	}
	// 1152 samples per frame at 44.1 kHz is about 26.1ms.
	if got < 255*time.Millisecond || got > 267*time.Millisecond {
		t.Fatalf("duration = %v, want about 261ms", got)
	}
}

func TestMP3DurationRejectsNonAudio(t *testing.T) {
	if _, err := mp3Duration([]byte("not audio at all")); err == nil {
		t.Fatal("expected an error for non-mp3 bytes")
	}
	if _, err := mp3Duration(nil); err == nil {
		t.Fatal("expected an error for empty input")
	}
}
