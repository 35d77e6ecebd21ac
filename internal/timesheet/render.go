package timesheet

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/Tiliavir/git-timesheets/internal/model"
	"github.com/Tiliavir/git-timesheets/internal/timecalc"
)

// Format is an output format for Render.
type Format string

const (
	FormatMarkdown Format = "md"
	FormatCSV      Format = "csv"
	FormatJSON     Format = "json"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatMarkdown, FormatCSV, FormatJSON:
		return f, nil
	case "":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("unknown format %q (want md, csv or json)", s)
	}
}

// Renderer writes timesheets. User and Now only affect the JSON format.
type Renderer struct {
	User string
	Now  func() time.Time
}

// Render writes ts to w in format f.
func (r Renderer) Render(w io.Writer, ts model.Timesheet, f Format) error {
	switch f {
	case FormatCSV:
		return renderCSV(w, ts)
	case FormatJSON:
		now := r.Now
		if now == nil {
			now = time.Now
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(NewDocument(ts, r.User, now()))
	default:
		return renderMarkdown(w, ts)
	}
}

func renderMarkdown(w io.Writer, ts model.Timesheet) error {
	ew := &errWriter{w: w}
	ew.printf("# Timesheet %s\n\n", ts.Period)
	for _, c := range ts.Clients {
		ew.printf("**Client:** %s  \n", c.Name)
		if c.Address != "" {
			ew.printf("**Address:** %s  \n", c.Address)
		}
		if c.ContactPerson != "" {
			ew.printf("**Contact:** %s  \n", c.ContactPerson)
		}
		if c.ApproverName != "" || c.ApproverEmail != "" {
			ew.printf("**Approver:** %s <%s>", c.ApproverName, c.ApproverEmail)
			if c.RequiresApproval {
				ew.printf(" (approval required)")
			}
			ew.printf("  \n")
		}
		ew.printf("\n")
	}
	if ts.Empty() {
		ew.printf("No entries found.\n\n")
		ew.printf("**Total: %s (%s)**\n", hours(ts.TotalHours), timecalc.FormatHours(ts.TotalHours))
		return ew.err
	}

	numbers := projectNumbers(ts)
	var (
		project  string
		subtotal float64
	)
	flush := func() {
		ew.printf("|  | **Subtotal** | **%s** |  |\n\n", hours(timecalc.RoundHours(subtotal)))
	}
	for i, l := range ts.Lines {
		if i == 0 || l.Binding.ProjectName != project {
			if i > 0 {
				flush()
			}
			project = l.Binding.ProjectName
			subtotal = 0
			if n := numbers[project]; n != "" {
				ew.printf("## %s (%s)\n\n", project, n)
			} else {
				ew.printf("## %s\n\n", project)
			}
			ew.printf("| Date | Client | Hours | Source |\n")
			ew.printf("|------|--------|------:|--------|\n")
		}
		ew.printf("| %s | %s | %s | %s |\n", dayLabel(l.Entry.Date), l.Binding.ClientName, hours(l.Entry.Hours), l.Entry.Source)
		subtotal += l.Entry.Hours
	}
	flush()
	ew.printf("**Total: %s (%s)**\n", hours(ts.TotalHours), timecalc.FormatHours(ts.TotalHours))
	return ew.err
}

func renderCSV(w io.Writer, ts model.Timesheet) error {
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"date", "weekday", "weekend", "client", "project", "project_number", "hours", "source", "commits"})
	for _, l := range ts.Lines {
		_ = cw.Write([]string{
			l.Entry.Date,
			weekday(l.Entry.Date),
			strconv.FormatBool(timecalc.IsWeekend(l.Entry.Date)),
			l.Binding.ClientName,
			l.Binding.ProjectName,
			l.Binding.ProjectNumber,
			hours(l.Entry.Hours),
			string(l.Entry.Source),
			strconv.Itoa(l.Entry.CommitCount),
		})
	}
	_ = cw.Write([]string{"total", "", "", "", "", "", hours(ts.TotalHours), "", ""})
	cw.Flush()
	return cw.Error()
}

// projectNumbers collects the distinct project numbers of each project name.
func projectNumbers(ts model.Timesheet) map[string]string {
	seen := map[string][]string{}
	for _, l := range ts.Lines {
		n := l.Binding.ProjectNumber
		if n != "" && !slices.Contains(seen[l.Binding.ProjectName], n) {
			seen[l.Binding.ProjectName] = append(seen[l.Binding.ProjectName], n)
		}
	}
	out := make(map[string]string, len(seen))
	for project, nums := range seen {
		out[project] = strings.Join(nums, ", ")
	}
	return out
}

func hours(h float64) string {
	return strconv.FormatFloat(h, 'f', 2, 64)
}

func weekday(date string) string {
	d, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return ""
	}
	return d.Weekday().String()[:3]
}

// dayLabel renders "2024-03-09 Sat*", the star marking weekends.
func dayLabel(date string) string {
	label := date + " " + weekday(date)
	if timecalc.IsWeekend(date) {
		label += "*"
	}
	return label
}

// errWriter keeps the first write error so printing code stays linear.
type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) printf(format string, args ...any) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintf(e.w, format, args...)
}
