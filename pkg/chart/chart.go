package chart

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/sherine-k/schedtrace/pkg/aggregator"
	"github.com/sherine-k/schedtrace/pkg/model"
)

const (
	chartWidth      = 100
	minChartWidth   = 40
	displayIDLength = 8

	// laneLabelWidth is the width of "L0   |" in front of every lane row
	laneLabelWidth = 6
)

// symbols mark processes on the timeline in first-seen order
const symbols = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Generator generates ASCII charts from aggregator states
type Generator struct {
	width    int
	idLength int
}

// NewGenerator creates a new chart generator. Zero values select the defaults.
func NewGenerator(width, idLength int) *Generator {
	if width <= 0 {
		width = chartWidth
	}
	if width < minChartWidth {
		width = minChartWidth
	}
	if idLength <= 0 {
		idLength = displayIDLength
	}
	return &Generator{
		width:    width,
		idLength: idLength,
	}
}

// Width returns the chart width in columns
func (g *Generator) Width() int {
	return g.width
}

func (g *Generator) header(sb *strings.Builder, title string) {
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", g.width))
	sb.WriteString("\n\n")
}

func (g *Generator) id(id string) string {
	return model.DisplayID(id, g.idLength)
}

// GenerateTimelineChart generates a Gantt chart with one row per lane
func (g *Generator) GenerateTimelineChart(st *aggregator.State) string {
	var sb strings.Builder

	title := "Execution Timeline"
	if st.Session.Algorithm != "" {
		title = fmt.Sprintf("Execution Timeline (%s)", st.Session.Algorithm)
	}
	g.header(&sb, title)

	span := st.Span()
	if st.Segments() == 0 || span <= 0 {
		sb.WriteString("No data to display\n")
		return sb.String()
	}

	plotWidth := g.width - laneLabelWidth - 1
	msPerColumn := span / float64(plotWidth)
	marks, order := assignSymbols(st)

	for _, lane := range lanesToShow(st) {
		row := []rune(strings.Repeat(" ", plotWidth))
		for _, seg := range st.Lane(lane) {
			if seg.EndMs <= seg.StartMs {
				continue
			}
			from := max(0, int(seg.StartMs/msPerColumn))
			to := min(plotWidth, int(math.Ceil(seg.EndMs/msPerColumn)))
			if from >= plotWidth {
				from = plotWidth - 1
			}
			if to <= from {
				to = from + 1
			}
			mark := marks[seg.ProcessID]
			for x := from; x < to; x++ {
				switch row[x] {
				case ' ', mark:
					row[x] = mark
				default:
					// Two processes share the column
					row[x] = '#'
				}
			}
		}
		sb.WriteString(fmt.Sprintf("L%-3d |%s|\n", lane, string(row)))
	}

	// X-axis
	sb.WriteString(strings.Repeat(" ", laneLabelWidth-1))
	sb.WriteString("+")
	sb.WriteString(strings.Repeat("-", plotWidth))
	sb.WriteString("+\n")

	// X-axis labels at round millisecond steps
	labelLine := []rune(strings.Repeat(" ", plotWidth))
	step := niceStep(span / 5)
	next := 0
	for v := 0.0; v <= span; v += step {
		position := int(v / msPerColumn)
		marker := FormatMillis(v)
		if position < next || position+len(marker) > plotWidth {
			continue
		}
		for i, ch := range marker {
			labelLine[position+i] = ch
		}
		next = position + len(marker) + 1
	}
	sb.WriteString(strings.Repeat(" ", laneLabelWidth))
	sb.WriteString(string(labelLine))
	sb.WriteString("\n")

	// Legend
	sb.WriteString("\n")
	sb.WriteString("Legend:\n")
	for _, id := range order {
		sb.WriteString(fmt.Sprintf("    %c - %s\n", marks[id], g.id(id)))
	}
	sb.WriteString("    # - several processes within one column\n")
	sb.WriteString(fmt.Sprintf("  One column = %s\n", FormatMillis(msPerColumn)))
	sb.WriteString("\n")

	return sb.String()
}

// assignSymbols maps every process on the timeline to a symbol in first-seen order
func assignSymbols(st *aggregator.State) (map[string]rune, []string) {
	marks := make(map[string]rune)
	var order []string
	for _, lane := range st.Lanes {
		for _, seg := range lane {
			if _, ok := marks[seg.ProcessID]; ok {
				continue
			}
			mark := '*'
			if len(order) < len(symbols) {
				mark = rune(symbols[len(order)])
			}
			marks[seg.ProcessID] = mark
			order = append(order, seg.ProcessID)
		}
	}
	return marks, order
}

// lanesToShow returns lane 0 for single-queue runs and every multi-level lane otherwise
func lanesToShow(st *aggregator.State) []int {
	if !st.MultiLevel {
		return []int{0}
	}
	var lanes []int
	for lane := range st.Lanes {
		if (lane >= 1 && lane <= model.MultiLevelLanes) || len(st.Lanes[lane]) > 0 {
			lanes = append(lanes, lane)
		}
	}
	return lanes
}

// niceStep rounds raw up to 1, 2 or 5 times a power of ten
func niceStep(raw float64) float64 {
	if raw <= 0 {
		return 1
	}
	magnitude := math.Pow(10, math.Floor(math.Log10(raw)))
	for _, m := range []float64{1, 2, 5, 10} {
		if m*magnitude >= raw {
			return m * magnitude
		}
	}
	return 10 * magnitude
}

// GenerateReadyQueue generates the live ready-queue table
func (g *Generator) GenerateReadyQueue(st *aggregator.State) string {
	var sb strings.Builder

	g.header(&sb, "Ready Queue")

	if len(st.ReadyQueue) == 0 {
		sb.WriteString("Ready queue is empty\n")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("%-*s  %-18s  %-10s  %10s  %10s\n", g.idLength, "ID", "Type", "Status", "Burst", "Processed"))
	for _, p := range st.ReadyQueue {
		sb.WriteString(fmt.Sprintf("%-*s  %-18s  %-10s  %10s  %10s\n",
			g.idLength, g.id(p.ID),
			p.ProcessType,
			p.Status,
			FormatMillis(p.CPUBurstTime.Millis()),
			FormatMillis(p.ProcessedTime.Millis())))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Total Processes: %d\n", len(st.ReadyQueue)))
	sb.WriteString("\n")

	return sb.String()
}

// GenerateFinished generates the finished-process ledger, one row per process
func (g *Generator) GenerateFinished(st *aggregator.State) string {
	var sb strings.Builder

	g.header(&sb, "Finished Processes")

	if len(st.Distinct) == 0 {
		sb.WriteString("No process has finished yet\n")
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("%-*s  %-18s  %12s  %10s  %10s  %10s  %10s\n",
		g.idLength, "ID", "Type", "Arrival", "Burst", "Turnaround", "Waiting", "Response"))
	for _, p := range st.Distinct {
		sb.WriteString(fmt.Sprintf("%-*s  %-18s  %12s  %10s  %10s  %10s  %10s\n",
			g.idLength, g.id(p.ID),
			p.ProcessType,
			arrivalLabel(st, p.ArrivalTime),
			FormatMillis(p.CPUBurstTime.Millis()),
			FormatMillis(p.Metrics.TotalTime.Millis()),
			FormatMillis(p.Metrics.TotalWaitingTime.Millis()),
			FormatMillis(p.Metrics.ResponseTime.Millis())))
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Total Finished: %d (%d entries in %d waves)\n", len(st.Distinct), len(st.Finished), len(st.Waves)))
	sb.WriteString("\n")

	return sb.String()
}

// arrivalLabel shows arrivals relative to the session origin when there is one
func arrivalLabel(st *aggregator.State, arrival time.Time) string {
	if st.Session.Origin == nil {
		return arrival.Format("15:04:05.000")
	}
	return FormatMillis(float64(arrival.Sub(*st.Session.Origin)) / float64(time.Millisecond))
}

// GenerateMetrics generates the current run's metrics and the algorithm comparison
func (g *Generator) GenerateMetrics(st *aggregator.State) string {
	var sb strings.Builder

	g.header(&sb, "Metrics")

	if st.Current == nil {
		sb.WriteString("No metrics for the current run\n")
	} else {
		p := st.Current
		sb.WriteString(fmt.Sprintf("Current run (%s, %d lane(s), %d report(s)):\n", p.Algorithm, p.Lanes, len(st.Series)))
		sb.WriteString(fmt.Sprintf("  - Avg Turnaround: %s\n", FormatMillis(p.TurnaroundMs)))
		sb.WriteString(fmt.Sprintf("  - Avg Waiting: %s\n", FormatMillis(p.WaitingMs)))
		sb.WriteString(fmt.Sprintf("  - Avg Response: %s\n", FormatMillis(p.ResponseMs)))
		sb.WriteString(fmt.Sprintf("  - CPU Utilization: %.1f%%\n", p.CPUUtilization))
	}
	sb.WriteString("\n")

	if len(st.Comparison) == 0 {
		return sb.String()
	}

	sb.WriteString("Algorithm Comparison (avg turnaround):\n")
	worst := 0.0
	for _, p := range st.Comparison {
		worst = max(worst, p.TurnaroundMs)
	}
	barWidth := g.width - 34
	for _, p := range st.Comparison {
		bar := 0
		if worst > 0 {
			bar = int(math.Round(p.TurnaroundMs / worst * float64(barWidth)))
		}
		sb.WriteString(fmt.Sprintf("  %-5s %10s %5.1f%% |%s\n",
			p.Algorithm, FormatMillis(p.TurnaroundMs), p.CPUUtilization, strings.Repeat("█", bar)))
	}
	sb.WriteString("\n")

	return sb.String()
}

// GenerateWarnings generates the list of dropped or corrected events
func (g *Generator) GenerateWarnings(st *aggregator.State, malformed uint64) string {
	var sb strings.Builder

	g.header(&sb, "Warnings")

	stats := st.Stats
	if stats.Late == 0 && stats.Anomalies == 0 && stats.Rejected == 0 && malformed == 0 {
		sb.WriteString("No warnings!\n")
		return sb.String()
	}

	if stats.Late > 0 {
		sb.WriteString(fmt.Sprintf("  - Late events dropped: %d\n", stats.Late))
	}
	if stats.Anomalies > 0 {
		sb.WriteString(fmt.Sprintf("  - Processed-time regressions clamped: %d\n", stats.Anomalies))
	}
	if stats.Rejected > 0 {
		sb.WriteString(fmt.Sprintf("  - Events rejected: %d\n", stats.Rejected))
	}
	if malformed > 0 {
		sb.WriteString(fmt.Sprintf("  - Malformed payloads dropped: %d\n", malformed))
	}
	sb.WriteString("\n")

	return sb.String()
}

// GenerateSessionSummary generates a summary of the session and what was applied
func (g *Generator) GenerateSessionSummary(st *aggregator.State) string {
	var sb strings.Builder

	g.header(&sb, "Session Summary")

	s := st.Session
	sb.WriteString(fmt.Sprintf("State: %s (generation %d)\n", s.State, s.Generation))
	if s.RunID != "" {
		sb.WriteString(fmt.Sprintf("Run: %s\n", s.RunID))
	}
	if s.Algorithm != "" {
		sb.WriteString(fmt.Sprintf("Algorithm: %s\n", s.Algorithm))
	}
	if s.Origin != nil {
		sb.WriteString(fmt.Sprintf("Origin: %s\n", s.Origin.Format("2006-01-02 15:04:05.000")))
	}
	sb.WriteString(fmt.Sprintf("Events Applied: %d\n", st.Stats.Applied))
	sb.WriteString(fmt.Sprintf("  - Timeline Segments: %d\n", st.Segments()))
	sb.WriteString(fmt.Sprintf("  - Ready Queue: %d\n", len(st.ReadyQueue)))
	sb.WriteString(fmt.Sprintf("  - Finished: %d\n", len(st.Distinct)))
	sb.WriteString(fmt.Sprintf("  - Metrics Reports: %d\n", len(st.Series)))
	sb.WriteString(fmt.Sprintf("Timeline Span: %s\n", FormatMillis(st.Span())))
	sb.WriteString("\n")

	return sb.String()
}

// GenerateDetailedTimeline generates every segment ordered by start time
func (g *Generator) GenerateDetailedTimeline(st *aggregator.State, limit int) string {
	var sb strings.Builder

	var segments []model.TimelineSegment
	for _, lane := range st.Lanes {
		segments = append(segments, lane...)
	}
	slices.SortStableFunc(segments, func(a, b model.TimelineSegment) int {
		switch {
		case a.StartMs < b.StartMs:
			return -1
		case a.StartMs > b.StartMs:
			return 1
		}
		return a.Lane - b.Lane
	})

	sb.WriteString("\n")
	sb.WriteString("Detailed Timeline")
	if limit > 0 && limit < len(segments) {
		sb.WriteString(fmt.Sprintf(" (showing first %d segments)", limit))
	}
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", g.width))
	sb.WriteString("\n\n")

	displayCount := len(segments)
	if limit > 0 && limit < displayCount {
		displayCount = limit
	}

	for i := 0; i < displayCount; i++ {
		seg := segments[i]
		sb.WriteString(fmt.Sprintf("[%10s] L%d %-*s +%s\n",
			FormatMillis(seg.StartMs),
			seg.Lane,
			g.idLength, g.id(seg.ProcessID),
			FormatMillis(seg.DurationMs())))
	}

	if limit > 0 && limit < len(segments) {
		sb.WriteString(fmt.Sprintf("\n... and %d more segments\n", len(segments)-limit))
	}

	sb.WriteString("\n")

	return sb.String()
}

// FormatMillis formats a millisecond value in a human-readable way
func FormatMillis(ms float64) string {
	switch {
	case math.Abs(ms) < 1000:
		return fmt.Sprintf("%gms", math.Round(ms*10)/10)
	case math.Abs(ms) < 60000:
		return fmt.Sprintf("%.2fs", ms/1000)
	}
	d := time.Duration(ms * float64(time.Millisecond))
	return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
}
