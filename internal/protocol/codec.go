package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Encode serializes msg as compact JSON followed by a single newline.
func Encode(msg Message) ([]byte, error) {
	var wire any

	switch m := msg.(type) {
	case Ping, Pong:
		wire = bareWire{Type: msg.Type()}
	case RequestChunk:
		wire = requestChunkWire{
			Type:      TypeRequestChunk,
			ChunkX:    intPtr(m.ChunkX),
			ChunkY:    intPtr(m.ChunkY),
			ChunkSize: intPtr(m.ChunkSize),
		}
	case ChunkData:
		wire = chunkDataWire{
			Type:   TypeChunkData,
			ChunkX: intPtr(m.ChunkX),
			ChunkY: intPtr(m.ChunkY),
			Pixels: nonNil(m.Pixels),
		}
	case CanvasChunk:
		wire = canvasChunkWire{
			Type:        TypeCanvasChunk,
			ChunkID:     intPtr(m.Index),
			TotalChunks: intPtr(m.Total),
			Pixels:      nonNil(m.Pixels),
		}
	case CanvasComplete:
		wire = canvasCompleteWire{Type: TypeCanvasComplete, TotalPixels: intPtr(m.TotalPixels)}
	case PixelBatch:
		wire = pixelsWire{Type: TypePixelBatch, Pixels: nonNil(m.Pixels)}
	case PixelUpdate:
		wire = pixelsWire{Type: TypePixelUpdate, Pixels: nonNil(m.Pixels)}
	default:
		return nil, fmt.Errorf("encode: unsupported message %T", msg)
	}

	data, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.Type(), err)
	}
	return append(data, '\n'), nil
}

// Decode parses one line (with or without its trailing newline) into a
// typed message. Unknown fields are ignored.
func Decode(line []byte) (Message, error) {
	line = bytes.TrimRight(line, "\r\n")
	if len(bytes.TrimSpace(line)) == 0 {
		return nil, fmt.Errorf("%w: empty line", ErrMalformedMessage)
	}
	if bytes.IndexByte(line, '\n') >= 0 {
		return nil, fmt.Errorf("%w: embedded newline", ErrMalformedMessage)
	}

	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if env.Type == nil {
		return nil, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}

	switch *env.Type {
	case TypePing:
		return Ping{}, nil

	case TypePong:
		return Pong{}, nil

	case TypeRequestChunk:
		var w requestChunkWire
		if err := unmarshal(line, &w); err != nil {
			return nil, err
		}
		if w.ChunkX == nil || w.ChunkY == nil || w.ChunkSize == nil {
			return nil, fmt.Errorf("%w: request_chunk needs chunk_x, chunk_y and chunk_size", ErrMalformedMessage)
		}
		return RequestChunk{ChunkX: *w.ChunkX, ChunkY: *w.ChunkY, ChunkSize: *w.ChunkSize}, nil

	case TypeChunkData:
		var w chunkDataWire
		if err := unmarshal(line, &w); err != nil {
			return nil, err
		}
		if w.ChunkX == nil || w.ChunkY == nil {
			return nil, fmt.Errorf("%w: chunk_data needs chunk_x and chunk_y", ErrMalformedMessage)
		}
		return ChunkData{ChunkX: *w.ChunkX, ChunkY: *w.ChunkY, Pixels: w.Pixels}, nil

	case TypeCanvasChunk:
		var w canvasChunkWire
		if err := unmarshal(line, &w); err != nil {
			return nil, err
		}
		return CanvasChunk{
			Index:  intOr(w.ChunkID, 0),
			Total:  intOr(w.TotalChunks, 1),
			Pixels: w.Pixels,
		}, nil

	case TypeCanvasComplete:
		var w canvasCompleteWire
		if err := unmarshal(line, &w); err != nil {
			return nil, err
		}
		return CanvasComplete{TotalPixels: intOr(w.TotalPixels, 0)}, nil

	case TypePixelBatch:
		var w pixelsWire
		if err := unmarshal(line, &w); err != nil {
			return nil, err
		}
		return PixelBatch{Pixels: w.Pixels}, nil

	case TypePixelUpdate:
		var w pixelsWire
		if err := unmarshal(line, &w); err != nil {
			return nil, err
		}
		return PixelUpdate{Pixels: w.Pixels}, nil

	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformedMessage, *env.Type)
	}
}

func unmarshal(line []byte, v any) error {
	if err := json.Unmarshal(line, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	return nil
}

func intPtr(v int) *int { return &v }

func intOr(p *int, def int) int {
	if p == nil {
		return def
	}
	return *p
}

func nonNil(pixels []Pixel) []Pixel {
	if pixels == nil {
		return []Pixel{}
	}
	return pixels
}
