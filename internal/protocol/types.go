package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rickgao/canvas-sync/internal/model"
)

// Message type tags.
const (
	TypePing           = "ping"
	TypePong           = "pong"
	TypeRequestChunk   = "request_chunk"
	TypeChunkData      = "chunk_data"
	TypeCanvasChunk    = "canvas_chunk"
	TypeCanvasComplete = "canvas_complete"
	TypePixelBatch     = "pixel_batch"
	TypePixelUpdate    = "pixel_update"
)

// ErrMalformedMessage is returned for lines that are not valid JSON, carry an
// unknown or missing type tag, or omit a field the tagged variant needs.
var ErrMalformedMessage = errors.New("malformed message")

// Message is one of the protocol variants below.
type Message interface {
	// Type returns the wire tag.
	Type() string

	isMessage()
}

// Ping is a keepalive probe.
type Ping struct{}

// Pong answers a Ping.
type Pong struct{}

// RequestChunk asks the server for the contents of one chunk.
type RequestChunk struct {
	ChunkX    int
	ChunkY    int
	ChunkSize int
}

// ChunkData carries every painted pixel of one chunk.
type ChunkData struct {
	ChunkX int
	ChunkY int
	Pixels []Pixel
}

// CanvasChunk is one page of the legacy whole-canvas transfer. Index and
// Total are for progress reporting only.
type CanvasChunk struct {
	Index  int
	Total  int
	Pixels []Pixel
}

// CanvasComplete ends the legacy whole-canvas transfer.
type CanvasComplete struct {
	TotalPixels int
}

// PixelBatch carries locally originated edits to the server.
type PixelBatch struct {
	Pixels []Pixel
}

// PixelUpdate carries edits made by other clients.
type PixelUpdate struct {
	Pixels []Pixel
}

func (Ping) Type() string           { return TypePing }
func (Pong) Type() string           { return TypePong }
func (RequestChunk) Type() string   { return TypeRequestChunk }
func (ChunkData) Type() string      { return TypeChunkData }
func (CanvasChunk) Type() string    { return TypeCanvasChunk }
func (CanvasComplete) Type() string { return TypeCanvasComplete }
func (PixelBatch) Type() string     { return TypePixelBatch }
func (PixelUpdate) Type() string    { return TypePixelUpdate }

func (Ping) isMessage()           {}
func (Pong) isMessage()           {}
func (RequestChunk) isMessage()   {}
func (ChunkData) isMessage()      {}
func (CanvasChunk) isMessage()    {}
func (CanvasComplete) isMessage() {}
func (PixelBatch) isMessage()     {}
func (PixelUpdate) isMessage()    {}

// Pixel is one wire entry {"x":..,"y":..,"color":[r,g,b]|null}.
// X and Y are pointers so a missing coordinate can be told apart from zero.
type Pixel struct {
	X     *int       `json:"x"`
	Y     *int       `json:"y"`
	Color *WireColor `json:"color"`
}

// PixelFromEdit builds the wire entry for a model edit.
func PixelFromEdit(e model.Edit) Pixel {
	x, y := e.Coord.X, e.Coord.Y
	p := Pixel{X: &x, Y: &y}
	if e.Color != nil {
		c := WireColor{e.Color.R, e.Color.G, e.Color.B}
		p.Color = &c
	}
	return p
}

// PixelsFromEdits converts a batch of edits to wire entries.
func PixelsFromEdits(edits []model.Edit) []Pixel {
	pixels := make([]Pixel, 0, len(edits))
	for _, e := range edits {
		pixels = append(pixels, PixelFromEdit(e))
	}
	return pixels
}

// Edit converts the entry to a model edit. ok is false when x or y is absent.
func (p Pixel) Edit() (edit model.Edit, ok bool) {
	if p.X == nil || p.Y == nil {
		return model.Edit{}, false
	}
	edit.Coord = model.Coord{X: *p.X, Y: *p.Y}
	if p.Color != nil {
		edit.Color = &model.Color{R: p.Color[0], G: p.Color[1], B: p.Color[2]}
	}
	return edit, true
}

// WireColor is an [r,g,b] triple of integers in 0..255.
type WireColor [3]uint8

// UnmarshalJSON accepts exactly three integer channels in range.
func (c *WireColor) UnmarshalJSON(data []byte) error {
	var channels []json.Number
	if err := json.Unmarshal(data, &channels); err != nil {
		return fmt.Errorf("color: %w", err)
	}
	if len(channels) != 3 {
		return fmt.Errorf("color: want 3 channels, got %d", len(channels))
	}
	for i, ch := range channels {
		v, err := ch.Int64()
		if err != nil {
			return fmt.Errorf("color channel %d: %w", i, err)
		}
		if v < 0 || v > 255 {
			return fmt.Errorf("color channel %d out of range: %d", i, v)
		}
		c[i] = uint8(v)
	}
	return nil
}

// MarshalJSON writes the color as a JSON array of numbers.
func (c WireColor) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]int{int(c[0]), int(c[1]), int(c[2])})
}

// Wire types for JSON encoding and decoding.

// envelope is used for tag extraction.
type envelope struct {
	Type *string `json:"type"`
}

type bareWire struct {
	Type string `json:"type"`
}

type requestChunkWire struct {
	Type      string `json:"type"`
	ChunkX    *int   `json:"chunk_x"`
	ChunkY    *int   `json:"chunk_y"`
	ChunkSize *int   `json:"chunk_size"`
}

type chunkDataWire struct {
	Type   string  `json:"type"`
	ChunkX *int    `json:"chunk_x"`
	ChunkY *int    `json:"chunk_y"`
	Pixels []Pixel `json:"pixels"`
}

type canvasChunkWire struct {
	Type        string  `json:"type"`
	ChunkID     *int    `json:"chunk_id"`
	TotalChunks *int    `json:"total_chunks"`
	Pixels      []Pixel `json:"pixels"`
}

type canvasCompleteWire struct {
	Type        string `json:"type"`
	TotalPixels *int   `json:"total_pixels"`
}

type pixelsWire struct {
	Type   string  `json:"type"`
	Pixels []Pixel `json:"pixels"`
}
