package history

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// PreviewCodec encodes preview rows for storage: MessagePack for compactness,
// ZStandard for compression. Create once and reuse; safe for concurrent use.
type PreviewCodec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewPreviewCodec creates a reusable preview codec. Uses SpeedDefault
// (level 3) for balanced compression ratio and speed. Caller must call
// Close() when done to release resources.
func NewPreviewCodec() (*PreviewCodec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &PreviewCodec{encoder: encoder, decoder: decoder}, nil
}

// Encode serializes and compresses preview rows.
func (c *PreviewCodec) Encode(rows []PreviewRow) ([]byte, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	data, err := msgpack.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}

	// EncodeAll is goroutine-safe.
	return c.encoder.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

// Decode decompresses and deserializes preview rows.
func (c *PreviewCodec) Decode(blob []byte) ([]PreviewRow, error) {
	if len(blob) == 0 {
		return nil, nil
	}

	data, err := c.decoder.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress preview: %w", err)
	}

	var rows []PreviewRow
	if err := msgpack.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode preview: %w", err)
	}
	return rows, nil
}

// Close releases codec resources.
func (c *PreviewCodec) Close() error {
	if c.decoder != nil {
		c.decoder.Close()
	}
	if c.encoder != nil {
		return c.encoder.Close()
	}
	return nil
}
