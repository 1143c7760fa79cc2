// Package prompt asks the user whether server content may overwrite local
// edits.
package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-isatty"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/tonimelisma/notesync/internal/sync"
)

// maxPreviewLines bounds the diff shown per note.
const maxPreviewLines = 12

// ConfirmFunc shows a yes/no question.
type ConfirmFunc func(ctx context.Context, title, description string) (bool, error)

// Decider is a sync.Decider that asks on the terminal. Without a terminal
// it keeps local edits.
type Decider struct {
	interactive bool
	confirm     ConfirmFunc
	logger      *slog.Logger
}

// New creates a Decider reading from in and drawing on out.
func New(in, out *os.File, logger *slog.Logger) *Decider {
	if logger == nil {
		logger = slog.Default()
	}

	return &Decider{
		interactive: isatty.IsTerminal(in.Fd()) && isatty.IsTerminal(out.Fd()),
		confirm:     huhConfirm(in, out),
		logger:      logger,
	}
}

// ConfirmOverwrite implements sync.Decider.
func (d *Decider) ConfirmOverwrite(ctx context.Context, conflicts []sync.Conflict) bool {
	if len(conflicts) == 0 {
		return true
	}

	if !d.interactive {
		d.logger.Warn("no terminal to ask on, keeping local edits",
			slog.Int("conflicts", len(conflicts)))

		return false
	}

	ok, err := d.confirm(ctx, Title(conflicts), Describe(conflicts))
	if err != nil {
		if !errors.Is(err, huh.ErrUserAborted) && ctx.Err() == nil {
			d.logger.Warn("conflict prompt failed, keeping local edits", slog.String("error", err.Error()))
		}

		return false
	}

	return ok
}

func huhConfirm(in io.Reader, out io.Writer) ConfirmFunc {
	return func(ctx context.Context, title, description string) (bool, error) {
		var ok bool

		form := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Overwrite").
				Negative("Keep mine").
				Value(&ok),
		)).WithInput(in).WithOutput(out)

		if err := form.RunWithContext(ctx); err != nil {
			return false, err
		}

		return ok, nil
	}
}

// Title is the question asked for a batch.
func Title(conflicts []sync.Conflict) string {
	if len(conflicts) == 1 {
		return fmt.Sprintf("%q changed on the server. Overwrite your local edits?", conflicts[0].Title)
	}

	return fmt.Sprintf("%d open notes changed on the server. Overwrite your local edits?", len(conflicts))
}

// Describe renders a line diff from each local buffer to the server
// content.
func Describe(conflicts []sync.Conflict) string {
	var b strings.Builder

	for i, c := range conflicts {
		if i > 0 {
			b.WriteString("\n")
		}

		fmt.Fprintf(&b, "%s\n", c.Filename)
		b.WriteString(lineDiff(c.Local, c.Server))
	}

	return b.String()
}

// lineDiff prints removed lines with "-" and added lines with "+".
func lineDiff(from, to string) string {
	dmp := diffmatchpatch.New()

	a, b, lines := dmp.DiffLinesToChars(from, to)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var (
		out   strings.Builder
		shown int
		extra int
	)

	for _, d := range diffs {
		var prefix string

		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		default:
			continue
		}

		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}

			if shown == maxPreviewLines {
				extra++
				continue
			}

			out.WriteString(prefix + strings.TrimSuffix(line, "\n") + "\n")
			shown++
		}
	}

	if extra > 0 {
		fmt.Fprintf(&out, "  ... %d more changed lines\n", extra)
	}

	return out.String()
}
