package tui

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

const (
	barWidth = 50
	nameW    = 8
)

// Neon color bands keyed to usage percent.
var (
	styleGreen   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46"))
	styleYellow  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("226"))
	styleOrange  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("208"))
	styleRed     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	styleCyan    = lipgloss.NewStyle().Foreground(lipgloss.Color("51"))
	styleMagenta = lipgloss.NewStyle().Foreground(lipgloss.Color("201"))
	styleDim     = lipgloss.NewStyle().Faint(true)
	styleTitle   = lipgloss.NewStyle().Bold(true)
)

// styleForPercent picks the color band for a usage percent.
func styleForPercent(percent float64) lipgloss.Style {
	switch {
	case percent < 50:
		return styleGreen
	case percent < 80:
		return styleYellow
	case percent < 90:
		return styleOrange
	default:
		return styleRed
	}
}

// usageBar renders a bar proportional to the volume's share of the
// largest volume, filled according to its own usage ratio.
func usageBar(total, maxTotal, used uint64) string {
	if maxTotal == 0 || total == 0 {
		return strings.Repeat(" ", barWidth)
	}
	length := int(float64(barWidth)*float64(total)/float64(maxTotal) + 0.5)
	if length < 1 {
		length = 1
	}
	filled := int(float64(length)*float64(used)/float64(total) + 0.5)
	if filled > length {
		filled = length
	}
	return strings.Repeat("█", filled) +
		strings.Repeat("▒", length-filled) +
		strings.Repeat(" ", barWidth-length)
}

// displayedSize returns the size to show for a node whose children may
// sum past it, with a "+" marker when the sum wins. The reconciler
// repairs the persisted value on its own schedule; the view never shows
// the implausible number in the meantime.
func displayedSize(size, childSum int64) string {
	if childSum > size {
		return "+" + humanize.IBytes(uint64(childSum))
	}
	return humanize.IBytes(uint64(size))
}

func (m Model) View() string {
	var b strings.Builder

	title := " DISK SPACE VIEW :: 3-LEVEL HIERARCHY "
	b.WriteString(styleTitle.Render(title) + "\n")
	b.WriteString(styleDim.Render(fmt.Sprintf("top %d per level | snapshot ttl %s | %s",
		m.cfg.GetTopN(), m.cfg.GetDiskCacheTTL(), m.now.Format("2006-01-02 15:04:05"))) + "\n\n")

	if len(m.vols) == 0 {
		b.WriteString("No physical volumes found.\n")
		return b.String()
	}

	m.renderBars(&b)
	m.renderHierarchy(&b)
	m.renderControls(&b)

	return b.String()
}

// renderBars writes one colored usage line per volume plus a TOTAL row.
func (m Model) renderBars(b *strings.Builder) {
	var maxTotal, sumTotal, sumUsed, sumFree uint64
	for _, v := range m.vols {
		if v.Total > maxTotal {
			maxTotal = v.Total
		}
		sumTotal += v.Total
		sumUsed += v.Used
		sumFree += v.Free
	}

	for _, v := range m.vols {
		style := styleForPercent(v.Percent)
		line := fmt.Sprintf("%-*s %s %3d%%  %9s / %-9s  %s",
			nameW, truncate(v.Name, nameW),
			usageBar(v.Total, maxTotal, v.Used),
			int(v.Percent+0.5),
			humanize.IBytes(v.Free), humanize.IBytes(v.Total),
			v.Mount)
		b.WriteString(style.Render(line) + "\n")
	}

	totalPercent := 0.0
	if sumTotal > 0 {
		totalPercent = 100 * float64(sumUsed) / float64(sumTotal)
	}
	line := fmt.Sprintf("%-*s %s %3d%%  %9s / %-9s  (all visible volumes)",
		nameW, "TOTAL",
		strings.Repeat(" ", barWidth),
		int(totalPercent+0.5),
		humanize.IBytes(sumFree), humanize.IBytes(sumTotal))
	b.WriteString(styleForPercent(totalPercent).Render(line) + "\n")
}

// renderHierarchy writes the current volume page's directory tree.
func (m Model) renderHierarchy(b *strings.Builder) {
	b.WriteString("\n" + styleTitle.Render(fmt.Sprintf("Largest directories (top %d per level)", m.cfg.GetTopN())) + "\n")

	if len(m.pages) == 0 {
		b.WriteString(styleDim.Render("No snapshots yet; first build in progress...") + "\n")
		return
	}

	p := m.pages[m.page]
	style := styleForPercent(p.vol.Percent)

	b.WriteString(style.Render(fmt.Sprintf("%s  (%s total)  |  page %d/%d, levels %d",
		p.vol.Mount, humanize.IBytes(p.vol.Total), m.page+1, len(m.pages), m.levels)) + "\n")

	built := time.Unix(int64(p.snap.Timestamp), 0)
	b.WriteString(styleDim.Render("last update "+built.Format("2006-01-02 15:04:05")) + "\n")
	if m.sched.Rebuilding(p.vol.Mount) {
		b.WriteString(styleCyan.Render("computing folder hierarchy...") + "\n")
	}

	for i, l1 := range p.snap.Level1 {
		b.WriteString(style.Render(fmt.Sprintf("┌─ %-30s %10s",
			truncate(filepath.Base(l1.Path), 30),
			displayedSize(l1.Size, l1.SumLevel2()))) + "\n")

		if m.levels >= 2 {
			for j, l2 := range l1.Level2 {
				branch := "├─"
				if j == len(l1.Level2)-1 {
					branch = "└─"
				}
				b.WriteString(style.Render("│  ") + styleCyan.Render(fmt.Sprintf("%s %-28s %10s",
					branch, truncate(filepath.Base(l2.Path), 28),
					displayedSize(l2.Size, l2.SumLevel3()))) + "\n")

				if m.levels >= 3 {
					for k, l3 := range l2.Level3 {
						leaf := "├─"
						if k == len(l2.Level3)-1 {
							leaf = "└─"
						}
						b.WriteString(style.Render("│     ") + styleMagenta.Render(fmt.Sprintf("%s %-26s %10s",
							leaf, truncate(filepath.Base(l3.Path), 26),
							humanize.IBytes(uint64(l3.Size)))) + "\n")
					}
				}
			}
		}

		if i < len(p.snap.Level1)-1 {
			b.WriteString(style.Render("│") + "\n")
		}
	}
}

func (m Model) renderControls(b *strings.Builder) {
	b.WriteString("\n" + styleDim.Render(
		"n/→ next  p/← previous  + more levels  - fewer levels  r refresh  q quit") + "\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
