// Package wav streams blocks of samples to and from wav files.
package wav

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/dudk/plinth/signal"
)

const pcmFormat = 1

// ErrUnsupportedBitDepth is returned when unsupported bit depth is used.
var ErrUnsupportedBitDepth = errors.New("wav: only 16, 24 and 32 bit depth is supported")

type (
	// Source reads a wav file block by block.
	Source struct {
		file     *os.File
		decoder  *wav.Decoder
		ib       *audio.IntBuffer
		bitDepth signal.BitDepth
	}

	// Sink writes blocks to a wav file.
	Sink struct {
		file     *os.File
		encoder  *wav.Encoder
		ib       *audio.IntBuffer
		bitDepth signal.BitDepth
	}
)

func supported(bitDepth signal.BitDepth) bool {
	return bitDepth == signal.BitDepth16 || bitDepth == signal.BitDepth24 || bitDepth == signal.BitDepth32
}

// Open opens a wav file for reading.
func Open(path string) (*Source, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	decoder := wav.NewDecoder(file)
	if !decoder.IsValidFile() {
		file.Close()
		return nil, fmt.Errorf("wav: %s is not a valid file", path)
	}
	bitDepth := signal.BitDepth(decoder.BitDepth)
	if !supported(bitDepth) {
		file.Close()
		return nil, ErrUnsupportedBitDepth
	}
	return &Source{
		file:    file,
		decoder: decoder,
		ib: &audio.IntBuffer{
			Format:         decoder.Format(),
			SourceBitDepth: int(decoder.BitDepth),
		},
		bitDepth: bitDepth,
	}, nil
}

// SampleRate returns the sample rate of the file.
func (s *Source) SampleRate() int {
	return int(s.decoder.SampleRate)
}

// NumChannels returns the number of channels of the file.
func (s *Source) NumChannels() int {
	return int(s.decoder.NumChans)
}

// Pull reads the next block into out. The last block is padded with zeros,
// io.EOF is returned once the file is exhausted.
func (s *Source) Pull(_ signal.Clock, out signal.Float64) error {
	if out.NumChannels() != s.NumChannels() {
		return fmt.Errorf("wav: block has %d channels, file has %d", out.NumChannels(), s.NumChannels())
	}
	size := out.Size() * out.NumChannels()
	if cap(s.ib.Data) < size {
		s.ib.Data = make([]int, size)
	}
	s.ib.Data = s.ib.Data[:size]
	n, err := s.decoder.PCMBuffer(s.ib)
	if err != nil {
		return err
	}
	if n == 0 {
		return io.EOF
	}
	out.ReadInterInt(s.ib.Data[:n], s.bitDepth)
	return nil
}

// Close closes the file.
func (s *Source) Close() error {
	return s.file.Close()
}

// Create creates a wav file for writing.
func Create(path string, sampleRate, numChannels int, bitDepth signal.BitDepth) (*Sink, error) {
	if !supported(bitDepth) {
		return nil, ErrUnsupportedBitDepth
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &Sink{
		file:    file,
		encoder: wav.NewEncoder(file, sampleRate, int(bitDepth), numChannels, pcmFormat),
		ib: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: numChannels,
				SampleRate:  sampleRate,
			},
			SourceBitDepth: int(bitDepth),
		},
		bitDepth: bitDepth,
	}, nil
}

// Write appends a block to the file.
func (s *Sink) Write(b signal.Float64) error {
	s.ib.Data = b.AsInterInt(s.bitDepth)
	return s.encoder.Write(s.ib)
}

// Close finalizes the header and closes the file.
func (s *Sink) Close() error {
	if err := s.encoder.Close(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}
