package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"

	"github.com/jdgilhuly/go_pillar_eval/pkg/pillar"
	"github.com/jdgilhuly/go_pillar_eval/pkg/record"
	"github.com/jdgilhuly/go_pillar_eval/pkg/verdict"
)

// paint applies attrs to s when on is set, regardless of whether the
// destination is a terminal.
func paint(s string, on bool, attrs ...color.Attribute) string {
	if !on {
		return s
	}
	c := color.New(attrs...)
	c.EnableColor()
	return c.Sprint(s)
}

// DecisionLabel returns the run decision, colored when color is set.
func DecisionLabel(d verdict.Decision, colored bool) string {
	switch d {
	case verdict.DecisionPass:
		return paint(string(d), colored, color.FgGreen, color.Bold)
	case verdict.DecisionWarn:
		return paint(string(d), colored, color.FgYellow, color.Bold)
	default:
		return paint(string(d), colored, color.FgRed, color.Bold)
	}
}

// StateLabel returns a pillar gate state, colored when color is set.
func StateLabel(s verdict.State, colored bool) string {
	switch s {
	case verdict.StatePass:
		return paint(string(s), colored, color.FgGreen)
	case verdict.StateFail:
		return paint(string(s), colored, color.FgRed)
	default:
		return paint(string(s), colored, color.FgYellow)
	}
}

// StatusLabel returns a worker status, colored when color is set.
func StatusLabel(s pillar.Status, colored bool) string {
	switch s {
	case pillar.StatusDone:
		return paint(string(s), colored, color.FgGreen)
	case pillar.StatusTimedOut, pillar.StatusCancelled:
		return paint(string(s), colored, color.FgYellow)
	default:
		return paint(string(s), colored, color.FgRed)
	}
}

// FormatDuration formats a duration for table display.
func FormatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dus", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

var bannerColors = map[verdict.Decision]lipgloss.Color{
	verdict.DecisionPass: lipgloss.Color("#96E6A1"),
	verdict.DecisionWarn: lipgloss.Color("#FFC857"),
	verdict.DecisionFail: lipgloss.Color("#FF6B6B"),
}

// Banner renders the decision, composite score and grade in a box.
func Banner(v verdict.CompositeVerdict, colored bool) string {
	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 2).
		Bold(true)
	if colored {
		c := bannerColors[v.Decision]
		style = style.Foreground(c).BorderForeground(c)
	}
	line := fmt.Sprintf("%s  %.2f (%s)  profile %s", v.Decision, v.CompositeScore, v.Grade, v.Profile)
	reason := lipgloss.NewStyle().Faint(colored).Render(v.Reason)
	return style.Render(lipgloss.JoinVertical(lipgloss.Left, line, reason))
}

// PrintHeader writes the run identity lines.
func PrintHeader(w io.Writer, rec *record.Record) {
	fmt.Fprintf(w, "Run %s  %s\n", rec.RunID, rec.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(w, "  repo:    %s\n", rec.Repo)
	fmt.Fprintf(w, "  profile: %s  mode: %s  status: %s\n", rec.Profile, rec.Mode, rec.Status)
	if len(rec.Order) > 0 {
		names := make([]string, len(rec.Order))
		for i, p := range rec.Order {
			names[i] = string(p)
		}
		fmt.Fprintf(w, "  order:   %s\n", strings.Join(names, " > "))
	}
}

// PrintPillarTable writes one row per gated pillar.
func PrintPillarTable(w io.Writer, rec *record.Record, colored bool) {
	sep := strings.Repeat("-", 86)
	fmt.Fprintf(w, "%s\n", sep)
	fmt.Fprintf(w, "  %-12s  %-14s  %-10s  %7s  %6s  %6s  %7s  %-6s  %s\n",
		"PILLAR", "WORKER", "STATUS", "SCORE", "METRIC", "THRESH", "WEIGHT", "GATE", "FLAGS")
	fmt.Fprintf(w, "%s\n", sep)

	for _, pv := range rec.Verdict.Pillars {
		workerName, status, score := "-", "-", "-"
		if r, ok := rec.Result(pv.Pillar); ok {
			workerName = truncate(r.Worker, 14)
			status = padRight(StatusLabel(r.Status, colored), len(r.Status), 10)
			score = fmt.Sprintf("%.2f", r.Score)
		} else {
			status = padRight(status, 1, 10)
		}
		weight := "-"
		if c, ok := rec.Summary.Contribution(pv.Pillar); ok {
			weight = fmt.Sprintf("%.2f", c.Weight)
		}
		var flags []string
		if pv.Veto {
			flags = append(flags, "veto")
		}
		if pv.Degraded {
			flags = append(flags, "degraded")
		}
		gate := padRight(StateLabel(pv.Status, colored), len(pv.Status), 6)
		fmt.Fprintf(w, "  %-12s  %-14s  %s  %7s  %6.2f  %6.2f  %7s  %s  %s\n",
			pv.Pillar, workerName, status, score, pv.Metric, pv.Threshold, weight, gate, strings.Join(flags, ","))
	}
	fmt.Fprintf(w, "%s\n", sep)
}

// PrintDrivers writes the pillars that most influenced the decision.
func PrintDrivers(w io.Writer, v verdict.CompositeVerdict, colored bool) {
	if len(v.Drivers) == 0 {
		return
	}
	fmt.Fprintf(w, "Drivers:\n")
	for i, d := range v.Drivers {
		veto := ""
		if d.Veto {
			veto = " (veto)"
		}
		fmt.Fprintf(w, "  %d. %s %s%s  -%.2f pts  %s\n",
			i+1, d.Pillar, StateLabel(d.Status, colored), veto, d.PointsLost, d.Reason)
	}
}

// PrintAdjustments writes every collaboration-driven score change.
func PrintAdjustments(w io.Writer, rec *record.Record) {
	var lines []string
	for _, r := range rec.Results {
		for i, a := range r.Adjustments {
			lines = append(lines, fmt.Sprintf("  %s v%d %+.2f from %s (message #%d): %s",
				r.Pillar, i+2, a.Delta, a.From, a.Seq, a.Reason))
		}
	}
	if len(lines) == 0 {
		return
	}
	fmt.Fprintf(w, "Adjustments:\n%s\n", strings.Join(lines, "\n"))
}

// PrintMessages writes the collaboration log in sequence order. Messages
// that arrived after their recipient froze are marked inert.
func PrintMessages(w io.Writer, rec *record.Record, colored bool) {
	if len(rec.Messages) == 0 {
		return
	}
	fmt.Fprintf(w, "Collaboration:\n")
	for _, m := range rec.Messages {
		line := fmt.Sprintf("  #%d %s -> %s %s(%d)", m.Seq, m.From, m.To, m.Payload.Kind, m.Payload.FindingCount)
		if m.Inert {
			line += " " + paint("[inert: "+m.InertReason+"]", colored, color.Faint)
		}
		fmt.Fprintln(w, line)
	}
}

// PrintRecord writes the standard summary of a run.
func PrintRecord(w io.Writer, rec *record.Record, colored bool) {
	PrintHeader(w, rec)
	fmt.Fprintln(w, Banner(rec.Verdict, colored))
	PrintPillarTable(w, rec, colored)
	PrintDrivers(w, rec.Verdict, colored)
}

// PrintVerbose writes the summary followed by adjustments, the
// collaboration log, per-worker detail and the audit trail.
func PrintVerbose(w io.Writer, rec *record.Record, colored bool) {
	PrintRecord(w, rec, colored)
	PrintAdjustments(w, rec)
	PrintMessages(w, rec, colored)

	fmt.Fprintf(w, "\n--- Worker Results ---\n\n")
	for _, r := range rec.Results {
		fmt.Fprintf(w, "%s [%s] %s\n", r.Worker, r.Pillar, StatusLabel(r.Status, colored))
		fmt.Fprintf(w, "  Score:      %.2f (base %.2f, v%d)\n", r.Score, r.BaseScore, r.Version)
		fmt.Fprintf(w, "  Confidence: %.2f\n", r.Confidence)
		fmt.Fprintf(w, "  Duration:   %s\n", FormatDuration(r.Timing.Duration))
		if r.Summary != "" {
			fmt.Fprintf(w, "  Summary:    %s\n", r.Summary)
		}
		if r.Error != "" {
			fmt.Fprintf(w, "  Error:      %s\n", r.Error)
		}
		for _, f := range r.Findings {
			loc := ""
			if f.File != "" {
				loc = " " + f.File
			}
			fmt.Fprintf(w, "    - [%s] %s%s: %s\n", f.Severity, f.Kind, loc, f.Detail)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "--- Audit ---\n")
	for _, e := range rec.Audit {
		fmt.Fprintf(w, "  %3d %-9s %-14s %s\n", e.Seq, e.Kind, e.Worker, e.Detail)
	}
}

// PrintHistory writes a table of stored runs, newest first.
func PrintHistory(w io.Writer, entries []record.Entry, colored bool) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	fmt.Fprintf(w, "  %-36s  %-20s  %-10s  %-4s  %7s  %-15s  %s\n",
		"RUN", "CREATED", "PROFILE", "DEC", "SCORE", "GRADE", "REPO")
	for _, e := range entries {
		dec := padRight(DecisionLabel(verdict.Decision(e.Decision), colored), len(e.Decision), 4)
		fmt.Fprintf(w, "  %-36s  %-20s  %-10s  %s  %7.2f  %-15s  %s\n",
			truncate(e.RunID, 36), e.CreatedAt.UTC().Format(time.RFC3339), truncate(e.Profile, 10),
			dec, e.Score, e.Grade, e.Repo)
	}
}

// PrintTrend writes a pillar's score over time with a bar per run.
func PrintTrend(w io.Writer, p pillar.Pillar, points []record.Point) {
	fmt.Fprintf(w, "Trend for %s:\n", p)
	if len(points) == 0 {
		fmt.Fprintln(w, "  no data")
		return
	}
	for _, pt := range points {
		bar := strings.Repeat("#", int(pt.Score/5))
		mark := ""
		if pt.Degraded {
			mark = " (degraded)"
		}
		fmt.Fprintf(w, "  %s  %6.2f  %-20s %s%s\n",
			pt.CreatedAt.UTC().Format("2006-01-02 15:04"), pt.Score, bar, pt.Status, mark)
	}
}

// padRight pads a possibly colored string whose visible width is n.
func padRight(s string, n, width int) string {
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
