package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-audio/wav"
)

// ReadWAVFrames decodes a WAV stream into mono 16-bit frames of frameSize
// samples each, suitable for [FrameQueue.Append]. Multi-channel input is
// downmixed by averaging; the final frame is zero-padded to frameSize so the
// fixed-size frame contract holds.
//
// No resampling is performed: the caller is expected to provide audio at the
// engine's configured sample rate (typically 16 kHz).
func ReadWAVFrames(r io.ReadSeeker, frameSize int) ([]Frame, error) {
	if frameSize <= 0 {
		return nil, errors.New("audio: frame size must be positive")
	}

	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("audio: not a valid WAV stream")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("audio: decode wav: %w", err)
	}
	if buf == nil || len(buf.Data) == 0 {
		return nil, errors.New("audio: empty WAV stream")
	}

	channels := 1
	sampleRate := 16000
	if buf.Format != nil {
		if buf.Format.NumChannels > 0 {
			channels = buf.Format.NumChannels
		}
		if buf.Format.SampleRate > 0 {
			sampleRate = buf.Format.SampleRate
		}
	}

	bitDepth := int(dec.BitDepth)
	if bitDepth == 0 {
		bitDepth = 16
	}
	mono := downmixToInt16(buf.Data, channels, bitDepth)

	var frames []Frame
	elapsed := time.Duration(0)
	for start := 0; start < len(mono); start += frameSize {
		end := start + frameSize
		samples := make([]int16, frameSize)
		if end > len(mono) {
			copy(samples, mono[start:])
		} else {
			copy(samples, mono[start:end])
		}
		f := Frame{Samples: samples, SampleRate: sampleRate, Timestamp: elapsed}
		elapsed += f.Duration()
		frames = append(frames, f)
	}
	return frames, nil
}

// ReadWAVFile is a convenience wrapper around [ReadWAVFrames] for a file path.
func ReadWAVFile(path string, frameSize int) ([]Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audio: open %q: %w", path, err)
	}
	defer f.Close()
	return ReadWAVFrames(f, frameSize)
}

// downmixToInt16 averages interleaved channels into mono and rescales samples
// of the given bit depth to 16-bit.
func downmixToInt16(data []int, channels, bitDepth int) []int16 {
	if channels < 1 {
		channels = 1
	}
	shift := 0
	if bitDepth > 16 {
		shift = bitDepth - 16
	}
	scaleUp := 0
	if bitDepth < 16 {
		scaleUp = 16 - bitDepth
	}

	nFrames := len(data) / channels
	out := make([]int16, nFrames)
	for i := 0; i < nFrames; i++ {
		sum := 0
		base := i * channels
		for c := 0; c < channels; c++ {
			sum += data[base+c]
		}
		v := sum / channels
		v >>= shift
		v <<= scaleUp
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}
