// Package operator reads operator commands from a text stream and forwards
// them to the control loop.
//
// Commands, one per line:
//
//	box X Y W H    select a target box directly
//	press X Y      start or finish a drag selection
//	move X Y       move the free corner of a drag
//	cancel         abandon a drag
//	reset          centre the mount and drop all targets
//	quit           stop the loop
package operator

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/san-kum/servotrack/internal/selection"
	"github.com/san-kum/servotrack/internal/track"
)

var ErrUnknownCommand = errors.New("operator: unknown command")

// Target receives operator intents. *loop.Signals implements it.
type Target interface {
	Select(box track.BoundingBox)
	Reset()
	Quit()
}

type Console struct {
	target Target
	sel    *selection.Selector
	log    *slog.Logger
}

func NewConsole(target Target, log *slog.Logger) *Console {
	if log == nil {
		log = slog.Default()
	}
	return &Console{target: target, sel: selection.New(), log: log.With("component", "operator")}
}

// Run reads commands until EOF, quit, or ctx is done. Bad lines are logged
// and skipped.
func (c *Console) Run(ctx context.Context, r io.Reader) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		quit, err := c.Exec(sc.Text())
		if err != nil {
			c.log.WarnContext(ctx, "command rejected", "line", sc.Text(), "err", err)
			continue
		}
		if quit {
			return nil
		}
	}
	return sc.Err()
}

// Exec runs one command line. It reports whether the line was quit.
func (c *Console) Exec(line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
		return false, nil
	}

	switch cmd, args := strings.ToLower(fields[0]), fields[1:]; cmd {
	case "box":
		v, err := numbers(args, 4)
		if err != nil {
			return false, err
		}
		box := track.Box(v[0], v[1], v[2], v[3])
		if !box.Valid() {
			return false, fmt.Errorf("operator: invalid box %v", v)
		}
		c.target.Select(box)
	case "press":
		p, err := point(args)
		if err != nil {
			return false, err
		}
		if box, done := c.sel.Press(p); done {
			c.target.Select(box)
		}
	case "move":
		p, err := point(args)
		if err != nil {
			return false, err
		}
		c.sel.Move(p)
	case "cancel":
		c.sel.Cancel()
	case "reset":
		c.sel.Cancel()
		c.target.Reset()
	case "quit", "q":
		c.target.Quit()
		return true, nil
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd)
	}
	return false, nil
}

func (c *Console) Selecting() bool {
	return c.sel.State() == selection.Selecting
}

func numbers(args []string, n int) ([]float64, error) {
	if len(args) != n {
		return nil, fmt.Errorf("operator: want %d numbers, got %d", n, len(args))
	}
	out := make([]float64, n)
	for i, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("operator: %q is not a number", a)
		}
		out[i] = v
	}
	return out, nil
}

func point(args []string) (image.Point, error) {
	v, err := numbers(args, 2)
	if err != nil {
		return image.Point{}, err
	}
	return image.Pt(int(v[0]), int(v[1])), nil
}
