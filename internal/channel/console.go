// Package channel provides reference Channel implementations satisfying
// gateway.Channel: Console (renders updates to the real terminal) and
// Paged (wraps another channel, splitting long message content across
// pages). Console is grounded on internal/overlay/overlay.go's use of
// github.com/muesli/termenv for color-profile-aware styling and
// golang.org/x/term for raw-mode/size queries.
package channel

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/muesli/termenv"
	"golang.org/x/term"

	"github.com/dcosson/termscene/internal/gateway"
	"github.com/dcosson/termscene/internal/scene"
	"github.com/dcosson/termscene/internal/snapshot"
)

// Console renders gateway updates to stdout using termenv styling, and
// forwards lines typed on stdin as text input.
type Console struct {
	out *termenv.Output
	in  io.Reader

	mu      sync.Mutex
	stopped chan struct{}
	done    chan struct{}
}

// NewConsole builds a Console channel reading from os.Stdin and writing
// to os.Stdout.
func NewConsole() *Console {
	return &Console{out: termenv.NewOutput(os.Stdout), in: os.Stdin}
}

func (c *Console) Start(send func(scene.Input)) error {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		if _, _, err := term.GetSize(int(os.Stdout.Fd())); err != nil {
			return fmt.Errorf("channel: console: get terminal size: %w", err)
		}
	}

	c.mu.Lock()
	c.stopped = make(chan struct{})
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.readLoop(send)
	return nil
}

func (c *Console) readLoop(send func(scene.Input)) {
	defer close(c.done)
	scanner := bufio.NewScanner(c.in)
	for scanner.Scan() {
		select {
		case <-c.stopped:
			return
		default:
		}
		send(scene.Input{Kind: scene.InputText, Text: scanner.Text()})
	}
}

func (c *Console) Stop() error {
	c.mu.Lock()
	stopped := c.stopped
	c.mu.Unlock()
	if stopped != nil {
		close(stopped)
	}
	return nil
}

func (c *Console) Receive(update gateway.Update) error {
	var b strings.Builder
	for _, line := range update.Snapshot.Lines {
		b.WriteString(c.renderLine(line))
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "cursor(%d,%d visible=%v)\n", update.Snapshot.Cursor.X, update.Snapshot.Cursor.Y, update.Snapshot.Cursor.Visible)
	for _, e := range update.Events {
		b.WriteString(describeEvent(e))
		b.WriteByte('\n')
	}
	_, err := io.WriteString(c.out, b.String())
	return err
}

func (c *Console) renderLine(line snapshot.RichLine) string {
	if line.IsPlain() {
		return line.Plain
	}
	var b strings.Builder
	for _, seg := range line.Segments {
		if seg.Attrs == nil {
			b.WriteString(seg.Text)
			continue
		}
		s := c.out.String(seg.Text)
		if seg.Attrs.Bold {
			s = s.Bold()
		}
		if seg.Attrs.Dim {
			s = s.Faint()
		}
		if seg.Attrs.Italic {
			s = s.Italic()
		}
		if seg.Attrs.Underline {
			s = s.Underline()
		}
		if seg.Attrs.Strikethrough {
			s = s.CrossOut()
		}
		if seg.Attrs.Inverse {
			s = s.Reverse()
		}
		if seg.Attrs.Fg != nil {
			s = s.Foreground(c.colorFor(*seg.Attrs.Fg))
		}
		if seg.Attrs.Bg != nil {
			s = s.Background(c.colorFor(*seg.Attrs.Bg))
		}
		b.WriteString(s.String())
	}
	return b.String()
}

func (c *Console) colorFor(col snapshot.Color) termenv.Color {
	if col.RGB != "" {
		return c.out.Color(col.RGB)
	}
	return c.out.Color(fmt.Sprintf("%d", col.Palette))
}

func describeEvent(e scene.Event) string {
	switch e.Kind {
	case scene.IndicatorChanged:
		d := e.Data.(scene.IndicatorChangedData)
		return fmt.Sprintf("indicator_changed active=%v text=%q", d.Active, d.Text)
	case scene.MessageCreated:
		d := e.Data.(scene.MessageCreatedData)
		return fmt.Sprintf("message_created style=%s lines=%d echo=%v", d.Style, len(d.Content), d.Echo)
	case scene.LastMessageUpdated:
		d := e.Data.(scene.LastMessageUpdatedData)
		return fmt.Sprintf("last_message_updated style=%s hasContent=%v", d.Style, d.HasContent)
	case scene.InputChanged:
		d := e.Data.(scene.InputChangedData)
		return fmt.Sprintf("input_changed active=%v text=%q", d.Active, d.Text)
	case scene.QuestionCreated:
		d := e.Data.(scene.QuestionCreatedData)
		return fmt.Sprintf("question_created question=%q options=%d", d.Question, len(d.Options))
	case scene.LastQuestionUpdated:
		d := e.Data.(scene.QuestionCreatedData)
		return fmt.Sprintf("last_question_updated question=%q options=%d", d.Question, len(d.Options))
	case scene.PermissionRequired:
		d := e.Data.(scene.PermissionRequiredData)
		return fmt.Sprintf("permission_required command=%q options=%d", d.Command, len(d.Options))
	case scene.SceneStateChanged:
		d := e.Data.(scene.SceneStateChangedData)
		return fmt.Sprintf("scene_state_changed state=%q active=%v", d.State, d.HasState)
	default:
		return "unknown_event"
	}
}
