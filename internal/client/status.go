package client

import (
	"fmt"

	"github.com/rickgao/canvas-sync/internal/batcher"
	"github.com/rickgao/canvas-sync/internal/chunk"
	"github.com/rickgao/canvas-sync/internal/connection"
	"github.com/rickgao/canvas-sync/internal/dispatch"
)

// Status is a snapshot of the whole client.
type Status struct {
	InstanceID string             `json:"instance_id"`
	Line       string             `json:"line"`
	Connection connection.Status  `json:"connection"`
	Chunks     chunk.Counts       `json:"chunks"`
	Queue      batcher.QueueStats `json:"queue"`
	Dispatch   dispatch.Stats     `json:"dispatch"`
	Pixels     int                `json:"pixels,omitempty"`
}

// sizer is implemented by stores that can report their pixel count.
type sizer interface {
	Len() int
}

// Status returns a snapshot of connection, chunk, queue and dispatch state.
func (c *Client) Status() Status {
	st := Status{
		InstanceID: c.id.String(),
		Connection: c.mgr.Status(),
		Chunks:     c.tracker.Counts(),
		Queue:      c.batcher.Stats(),
		Dispatch:   c.disp.Stats(),
	}
	if s, ok := c.store.(sizer); ok {
		st.Pixels = s.Len()
	}
	st.Line = statusLine(st)
	return st
}

// statusLine renders the one-line indicator: loading progress wins over
// the connected summary, which wins over the raw connection state.
func statusLine(st Status) string {
	switch {
	case st.Chunks.Loading > 0:
		return fmt.Sprintf("Loading chunks... (%d pending)", st.Chunks.Loading)
	case st.Connection.State == connection.StateConnected:
		return fmt.Sprintf("Connected • %d pending • %d chunks", st.Queue.Count, st.Chunks.Loaded)
	default:
		return st.Connection.Label
	}
}
