package services

import (
	"bytes"
	"errors"
	"io"
	"time"

	tcmp3 "github.com/tcolgate/mp3"
)

var errNoAudioFrames = errors.New("no mp3 frames found")

// mp3Duration sums the frame durations of an in-memory MP3 stream.
func mp3Duration(data []byte) (time.Duration, error) {
	var (
		dur     time.Duration
		dec     = tcmp3.NewDecoder(bytes.NewReader(data))
		frame   tcmp3.Frame
		skipped int
	)
	for {
		if err := dec.Decode(&frame, &skipped); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return 0, err
		}
		dur += frame.Duration()
	}
	if dur == 0 {
		return 0, errNoAudioFrames
	}
	return dur, nil
}
