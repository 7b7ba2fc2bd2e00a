package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/canvas-sync/internal/client"
	"github.com/rickgao/canvas-sync/internal/model"
)

var paintTimeout time.Duration

// paintCmd sends a single edit.
var paintCmd = &cobra.Command{
	Use:   "paint X Y R G B",
	Short: "Send a single pixel edit",
	Long: `Connect, paint one pixel and wait for it to be flushed.

Painting white (255 255 255) erases the pixel.`,
	Args: cobra.ExactArgs(5),
	RunE: runPaint,
}

func init() {
	paintCmd.Flags().DurationVar(&paintTimeout, "timeout", 10*time.Second, "Give up if the edit is not sent within this time")
}

func runPaint(cmd *cobra.Command, args []string) error {
	at, color, err := parsePaintArgs(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), paintTimeout)
	defer cancel()

	c := client.New(clientConfig(cfg), nil, nil, logger)
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	if err := c.Paint(at, color); err != nil {
		cancel()
		<-done
		return err
	}

	sent := waitFlushed(ctx, c)
	cancel()
	if err := <-done; err != nil {
		return err
	}
	if !sent {
		return fmt.Errorf("edit at %s not sent within %v (state: %s)", at, paintTimeout, c.State().Label())
	}

	fmt.Fprintf(cmd.OutOrStdout(), "painted %s\n", at)
	return nil
}

// waitFlushed reports whether the queue drained while connected before
// ctx ended. Two consecutive empty readings are required because a failed
// send puts the batch back.
func waitFlushed(ctx context.Context, c *client.Client) bool {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	empty := 0
	for {
		if c.IsConnected() && c.Status().Queue.Count == 0 {
			empty++
			if empty >= 2 {
				return true
			}
		} else {
			empty = 0
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

func parsePaintArgs(args []string) (model.Coord, model.Color, error) {
	if len(args) != 5 {
		return model.Coord{}, model.Color{}, fmt.Errorf("want X Y R G B, got %d args", len(args))
	}

	x, err := strconv.Atoi(args[0])
	if err != nil {
		return model.Coord{}, model.Color{}, fmt.Errorf("x: %w", err)
	}
	y, err := strconv.Atoi(args[1])
	if err != nil {
		return model.Coord{}, model.Color{}, fmt.Errorf("y: %w", err)
	}

	var ch [3]uint8
	for i, name := range []string{"r", "g", "b"} {
		v, err := strconv.ParseUint(args[2+i], 10, 8)
		if err != nil {
			return model.Coord{}, model.Color{}, fmt.Errorf("%s: %w", name, err)
		}
		ch[i] = uint8(v)
	}

	at := model.Coord{X: x, Y: y}
	if !at.InBounds() {
		return model.Coord{}, model.Color{}, fmt.Errorf("%w: %s", client.ErrOutOfBounds, at)
	}
	return at, model.Color{R: ch[0], G: ch[1], B: ch[2]}, nil
}
