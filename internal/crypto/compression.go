package crypto

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// bodies are framed with one header byte so small or incompressible content can skip zstd
const (
	frameRaw  byte = 0
	frameZstd byte = 1

	minCompressSize = 512
)

var ErrInvalidFrame = errors.New("crypto: invalid content frame")

var (
	// EncodeAll and DecodeAll are safe for concurrent use
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderConcurrency(1))
	decoder, _ = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
)

func compress(plain []byte) []byte {
	if len(plain) >= minCompressSize {
		out := encoder.EncodeAll(plain, []byte{frameZstd})
		if len(out) < len(plain)+1 {
			return out
		}
	}
	out := make([]byte, 0, len(plain)+1)
	out = append(out, frameRaw)
	return append(out, plain...)
}

func decompress(framed []byte) ([]byte, error) {
	if len(framed) == 0 {
		return nil, ErrInvalidFrame
	}
	switch framed[0] {
	case frameRaw:
		return append([]byte{}, framed[1:]...), nil
	case frameZstd:
		plain, err := decoder.DecodeAll(framed[1:], nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decode: %w", err)
		}
		return plain, nil
	default:
		return nil, ErrInvalidFrame
	}
}
