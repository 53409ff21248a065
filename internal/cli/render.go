// Package cli renders metadata and job progress for the terminal.
package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"relaydl/internal/entity"
	"relaydl/pkg/ptr"

	"github.com/dustin/go-humanize"
)

const barWidth = 30

// Metadata writes the resolved video and its selectable formats.
func Metadata(w io.Writer, meta entity.VideoMetadata) error {
	fmt.Fprintln(w, meta.Title)

	facts := []string{meta.FormattedDuration}
	if meta.Author != "" {
		facts = append([]string{meta.Author}, facts...)
	}

	if meta.ViewCount != nil {
		facts = append(facts, humanize.Comma(*meta.ViewCount)+" views")
	}

	fmt.Fprintf(w, "  %s\n\n", strings.Join(facts, " | "))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FORMAT\tRESOLUTION\tFPS\tQUALITY\tSIZE\tEXT")

	for _, f := range meta.Formats {
		fmt.Fprintf(tw, "%s\t%s\t%g\t%s\t%s\t%s\n",
			ptr.Deref(f.FormatID, "best"), ptr.Deref(f.Resolution, "audio"), f.FPS, f.Quality, f.Filesize, f.Ext)
	}

	return tw.Flush()
}

// Line is the one-line summary of a job.
func Line(job entity.Job) string {
	switch job.Phase {
	case entity.PhaseStarting:
		return "starting..."
	case entity.PhasePolling:
		parts := []string{fmt.Sprintf("%s %5.1f%%", bar(job.Progress), job.Progress)}

		if job.Status != "" {
			parts = append(parts, job.Status)
		}

		if job.Downloaded != "" || job.Total != "" {
			parts = append(parts, strings.Trim(job.Downloaded+"/"+job.Total, "/"))
		}

		for _, s := range []string{job.Speed, job.ETA} {
			if s != "" {
				parts = append(parts, s)
			}
		}

		return strings.Join(parts, "  ")
	case entity.PhaseCompleted:
		if job.Artifact != nil {
			return fmt.Sprintf("%s (%s) -> %s", job.SuccessMessage, humanize.Bytes(uint64(max(job.Artifact.Size, 0))), job.Artifact.Path)
		}

		return job.SuccessMessage
	case entity.PhaseFailed:
		return "error: " + job.Error
	default:
		return ""
	}
}

func bar(progress float64) string {
	filled := int(min(max(progress, 0), 100) / 100 * barWidth)

	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", barWidth-filled) + "]"
}

// Progress prints job snapshots, redrawing one line in place on a terminal
// and writing one line per change otherwise.
type Progress struct {
	w    io.Writer
	tty  bool
	last string
	open bool
}

// NewProgress creates a printer for w. tty selects in-place redrawing.
func NewProgress(w io.Writer, tty bool) *Progress {
	return &Progress{w: w, tty: tty}
}

// Update shows job unless it renders the same as the previous one.
func (p *Progress) Update(job entity.Job) {
	line := Line(job)
	if line == "" || line == p.last {
		return
	}

	p.last = line

	if job.Phase.Terminal() {
		p.finish()
		fmt.Fprintln(p.w, line)

		return
	}

	if !p.tty {
		fmt.Fprintln(p.w, line)

		return
	}

	fmt.Fprintf(p.w, "\r\x1b[K%s", line)
	p.open = true
}

func (p *Progress) finish() {
	if p.open {
		fmt.Fprintln(p.w)
		p.open = false
	}
}
