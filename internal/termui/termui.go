// Package termui renders batch progress and results for the command line.
package termui

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/keagan/scenesplit/internal/scene"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	panelStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

const statusWidth = 60

// Progress draws a single-line progress bar that is redrawn on every event
type Progress struct {
	mu   sync.Mutex
	out  io.Writer
	bar  progress.Model
	last float64
}

// NewProgress creates a bar of the given width writing to out
func NewProgress(out io.Writer, width int) *Progress {
	if width <= 0 {
		width = 40
	}
	return &Progress{
		out: out,
		bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(width)),
	}
}

// Render returns the line for ev without writing it
func (p *Progress) Render(ev scene.Event) string {
	return p.bar.ViewAs(ev.Progress) + " " + mutedStyle.Render(trim(ev.Status, statusWidth))
}

// Handle redraws the bar for ev. It is safe to use as a BatchContext.OnEvent hook.
func (p *Progress) Handle(ev scene.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ev.Progress < p.last {
		ev.Progress = p.last
	}
	p.last = ev.Progress
	fmt.Fprint(p.out, "\r\033[K"+p.Render(ev))
}

// Done ends the progress line
func (p *Progress) Done() {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out)
}

// Summary renders the per-video outcome of a batch as a bordered panel
func Summary(result *scene.BatchResult) string {
	nameWidth := len("video")
	for _, v := range result.Videos {
		if w := lipgloss.Width(v.Name); w > nameWidth {
			nameWidth = w
		}
	}
	if nameWidth > 40 {
		nameWidth = 40
	}

	row := func(name, status, detected, exported, failed string) string {
		return fmt.Sprintf("%-*s  %-16s  %8s  %8s  %6s", nameWidth, trim(name, nameWidth), status, detected, exported, failed)
	}

	lines := []string{
		titleStyle.Render("Scene export summary"),
		mutedStyle.Render(row("video", "status", "scenes", "exported", "failed")),
	}
	for _, v := range result.Videos {
		line := row(v.Name, string(v.Status),
			fmt.Sprint(v.BoundariesDetected), fmt.Sprint(v.ScenesExported), fmt.Sprint(len(v.Failures)))
		lines = append(lines, statusStyle(v.Status).Render(line))
	}

	var problems []string
	for _, v := range result.Videos {
		if v.Err != "" {
			problems = append(problems, fmt.Sprintf("%s: %s", v.Name, v.Err))
		}
		for _, f := range v.Failures {
			problems = append(problems, fmt.Sprintf("%s scene %d (%s): %s", v.Name, f.SceneIndex, f.Kind, f.Message))
		}
	}
	if len(problems) > 0 {
		lines = append(lines, "")
		for _, p := range problems {
			lines = append(lines, errorStyle.Render("✗ ")+trim(p, 100))
		}
	}

	total := fmt.Sprintf("%d scene(s) exported, %d failed", result.Successes(), result.Failures())
	if result.Cancelled {
		total += " (cancelled)"
	}
	lines = append(lines, "", total)

	return panelStyle.Render(strings.Join(lines, "\n"))
}

func statusStyle(s scene.VideoStatus) lipgloss.Style {
	switch s {
	case scene.VideoExported:
		return okStyle
	case scene.VideoPartial, scene.VideoNoScenes, scene.VideoCancelled:
		return warnStyle
	case scene.VideoFailed, scene.VideoDetectionFailed:
		return errorStyle
	default:
		return mutedStyle
	}
}

func trim(s string, max int) string {
	if max <= 0 || lipgloss.Width(s) <= max {
		return s
	}
	r := []rune(s)
	if len(r) > max-1 {
		r = r[:max-1]
	}
	return string(r) + "…"
}
