package timesheet_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/git-timesheets/internal/model"
	"github.com/Tiliavir/git-timesheets/internal/store"
	"github.com/Tiliavir/git-timesheets/internal/timesheet"
)

var march = model.Period{Year: 2024, Month: time.March}

var (
	shopAcme  = model.Binding{ID: "b1", ClientName: "Acme", ProjectName: "Shop"}
	shopZeta  = model.Binding{ID: "b0", ClientName: "Zeta", ProjectName: "Shop"}
	blogAcme  = model.Binding{ID: "b2", ClientName: "Acme", ProjectName: "Blog"}
	bindings  = []model.Binding{shopAcme, shopZeta, blogAcme}
	createdAt = time.Date(2024, 4, 2, 8, 0, 0, 0, time.UTC)
)

func entry(bindingID, date string, hours float64, src model.Source) model.WorkEntry {
	return model.WorkEntry{BindingID: bindingID, Date: date, Hours: hours, Source: src, CommitCount: 2}
}

func sample() []model.WorkEntry {
	return []model.WorkEntry{
		entry("b1", "2024-03-06", 6, model.SourceManual),
		entry("b2", "2024-03-05", 1.5, model.SourceInferred),
		entry("b0", "2024-03-05", 2, model.SourceInferred),
		entry("b1", "2024-03-05", 0.25, model.SourceInferred),
		entry("b1", "2024-03-09", 3, model.SourceInferred),
		entry("b1", "2024-04-01", 8, model.SourceInferred),
		entry("orphan", "2024-03-05", 8, model.SourceInferred),
	}
}

func TestBuildOrderingAndTotal(t *testing.T) {
	ts := timesheet.Build(march, bindings, sample(), timesheet.Filter{})

	type row struct{ project, date, client string }
	var got []row
	for _, l := range ts.Lines {
		got = append(got, row{l.Binding.ProjectName, l.Entry.Date, l.Binding.ClientName})
	}
	require.Equal(t, []row{
		{"Blog", "2024-03-05", "Acme"},
		{"Shop", "2024-03-05", "Acme"},
		{"Shop", "2024-03-05", "Zeta"},
		{"Shop", "2024-03-06", "Acme"},
		{"Shop", "2024-03-09", "Acme"},
	}, got)
	require.Equal(t, 12.75, ts.TotalHours)
	require.Equal(t, model.SourceManual, ts.Lines[3].Entry.Source)
	require.Equal(t, 6.0, ts.Lines[3].Entry.Hours)
}

func TestBuildFilter(t *testing.T) {
	ts := timesheet.Build(march, bindings, sample(), timesheet.Filter{Clients: []string{"Acme"}, Projects: []string{"Shop"}})
	require.Len(t, ts.Lines, 3)
	require.Equal(t, 9.25, ts.TotalHours)

	ts = timesheet.Build(march, bindings, sample(), timesheet.Filter{Clients: []string{"Nobody"}})
	require.True(t, ts.Empty())
	require.Zero(t, ts.TotalHours)
}

func TestBuildEmptyPeriod(t *testing.T) {
	ts := timesheet.Build(model.Period{Year: 2024, Month: time.January}, bindings, sample(), timesheet.Filter{})
	require.True(t, ts.Empty())
	require.NotNil(t, ts.Lines)
	require.Zero(t, ts.TotalHours)
}

func TestAggregateFromStore(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, filepath.Join(t.TempDir(), "gts.db"), store.Options{})
	require.NoError(t, err)
	defer s.Close()

	b, err := s.CreateBinding(ctx, model.Binding{RepositoryPath: "/src/shop", ClientName: "Acme", ProjectName: "Shop"})
	require.NoError(t, err)
	_, err = s.ApplyScan(ctx, []store.ScanResult{{
		BindingID: b.ID,
		Period:    march,
		Entries: []model.WorkEntry{
			entry(b.ID, "2024-03-05", 0.25, model.SourceInferred),
			entry(b.ID, "2024-03-06", 8, model.SourceInferred),
		},
	}})
	require.NoError(t, err)
	require.NoError(t, s.SetManual(ctx, b.ID, "2024-03-06", 6))

	// A rescan keeps the manual override.
	_, err = s.ApplyScan(ctx, []store.ScanResult{{
		BindingID: b.ID,
		Period:    march,
		Entries: []model.WorkEntry{
			entry(b.ID, "2024-03-05", 0.25, model.SourceInferred),
			entry(b.ID, "2024-03-06", 8, model.SourceInferred),
		},
	}})
	require.NoError(t, err)
	acme := model.Client{Name: "Acme", Address: "1 Main St", RequiresApproval: true, ApproverName: "Jane Roe", ApproverEmail: "jane@acme.test"}
	require.NoError(t, s.SaveClient(ctx, acme))

	agg := timesheet.NewAggregator(s)
	ts, err := agg.Aggregate(ctx, march, timesheet.Filter{})
	require.NoError(t, err)
	require.Equal(t, []model.Client{acme}, ts.Clients)
	require.Len(t, ts.Lines, 2)
	require.Equal(t, 6.0, ts.Lines[1].Entry.Hours)
	require.Equal(t, model.SourceManual, ts.Lines[1].Entry.Source)
	require.Equal(t, 6.25, ts.TotalHours)

	empty, err := agg.Aggregate(ctx, model.Period{Year: 2024, Month: time.January}, timesheet.Filter{})
	require.NoError(t, err)
	require.True(t, empty.Empty())
	require.Empty(t, empty.Clients, "no lines, no letterhead")
}

func TestNewDocument(t *testing.T) {
	ts := timesheet.Build(march, bindings, sample(), timesheet.Filter{})
	doc := timesheet.NewDocument(ts, "Dev One", createdAt)

	require.Equal(t, "March, 2024", doc.MonthYear)
	require.Equal(t, "Dev One", doc.User)
	require.Equal(t, 12.75, doc.TotalHours)
	require.Len(t, doc.Timesheets, 3)

	require.Equal(t, "Blog", doc.Timesheets[0].Project)
	require.Equal(t, "Acme", doc.Timesheets[1].Client)
	require.Equal(t, "Shop", doc.Timesheets[1].Project)
	require.Equal(t, "Zeta", doc.Timesheets[2].Client)

	acmeShop := doc.Timesheets[1]
	require.Len(t, acmeShop.Days, 3)
	require.Equal(t, 9.25, acmeShop.TotalHours)
	require.True(t, acmeShop.Days[2].Weekend, "2024-03-09 is a Saturday")
	require.False(t, acmeShop.Days[0].Weekend)
}

func TestParseFormat(t *testing.T) {
	for _, s := range []string{"md", "csv", "json", ""} {
		_, err := timesheet.ParseFormat(s)
		require.NoError(t, err, s)
	}
	_, err := timesheet.ParseFormat("xml")
	require.Error(t, err)
}

func TestRenderMarkdown(t *testing.T) {
	ts := timesheet.Build(march, bindings, sample(), timesheet.Filter{})
	var buf bytes.Buffer
	require.NoError(t, timesheet.Renderer{}.Render(&buf, ts, timesheet.FormatMarkdown))
	out := buf.String()

	require.True(t, strings.HasPrefix(out, "# Timesheet March, 2024\n"))
	require.Contains(t, out, "## Blog\n")
	require.Contains(t, out, "## Shop\n")
	require.Contains(t, out, "| 2024-03-09 Sat* | Acme | 3.00 | inferred |")
	require.Contains(t, out, "| 2024-03-06 Wed | Acme | 6.00 | manual |")
	require.Contains(t, out, "**Total: 12.75 (12h 45m)**")
	require.Less(t, strings.Index(out, "## Blog"), strings.Index(out, "## Shop"))
}

func TestRenderMarkdownEmpty(t *testing.T) {
	ts := timesheet.Build(model.Period{Year: 2024, Month: time.January}, nil, nil, timesheet.Filter{})
	var buf bytes.Buffer
	require.NoError(t, timesheet.Renderer{}.Render(&buf, ts, timesheet.FormatMarkdown))
	require.Contains(t, buf.String(), "No entries found.")
	require.Contains(t, buf.String(), "**Total: 0.00 (0m)**")
}

func TestRenderCSV(t *testing.T) {
	b := shopAcme
	b.ClientName = `Acme, "Inc"`
	b.ProjectNumber = "PO-7"
	ts := timesheet.Build(march, []model.Binding{b}, []model.WorkEntry{entry("b1", "2024-03-09", 3, model.SourceInferred)}, timesheet.Filter{})

	var buf bytes.Buffer
	require.NoError(t, timesheet.Renderer{}.Render(&buf, ts, timesheet.FormatCSV))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, []string{"date", "weekday", "weekend", "client", "project", "project_number", "hours", "source", "commits"}, records[0])
	require.Equal(t, []string{"2024-03-09", "Sat", "true", `Acme, "Inc"`, "Shop", "PO-7", "3.00", "inferred", "2"}, records[1])
	require.Equal(t, "3.00", records[2][6])
}

func TestRenderJSON(t *testing.T) {
	ts := timesheet.Build(march, bindings, sample(), timesheet.Filter{})
	r := timesheet.Renderer{User: "Dev One", Now: func() time.Time { return createdAt }}

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, ts, timesheet.FormatJSON))

	var doc timesheet.Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Equal(t, timesheet.NewDocument(ts, "Dev One", createdAt), doc)
}

func TestClientDetailsAndProjectNumbers(t *testing.T) {
	shop := shopAcme
	shop.ProjectNumber = "PO-1234"
	ts := timesheet.Build(march, []model.Binding{shop, shopZeta, blogAcme}, sample(), timesheet.Filter{})
	ts.Clients = []model.Client{{
		Name:             "Acme",
		Address:          "1 Main St",
		ContactPerson:    "John Doe",
		RequiresApproval: true,
		ApproverName:     "Jane Roe",
		ApproverEmail:    "jane@acme.test",
	}}

	var buf bytes.Buffer
	require.NoError(t, timesheet.Renderer{}.Render(&buf, ts, timesheet.FormatMarkdown))
	out := buf.String()
	require.Contains(t, out, "**Client:** Acme  \n**Address:** 1 Main St  \n**Contact:** John Doe  \n")
	require.Contains(t, out, "**Approver:** Jane Roe <jane@acme.test> (approval required)")
	require.Contains(t, out, "## Shop (PO-1234)\n")
	require.Contains(t, out, "## Blog\n")

	doc := timesheet.NewDocument(ts, "Dev One", createdAt)
	require.True(t, doc.RequiresApproval)
	require.False(t, doc.Approved)
	require.Equal(t, []timesheet.ClientDetails{{
		Name:             "Acme",
		Address:          "1 Main St",
		ContactPerson:    "John Doe",
		RequiresApproval: true,
		Approver:         &timesheet.Approver{Name: "Jane Roe", Email: "jane@acme.test"},
	}}, doc.Clients)
	require.Equal(t, "PO-1234", doc.Timesheets[1].ProjectNumber)
	require.Empty(t, doc.Timesheets[2].ProjectNumber, "Zeta's Shop has no number")
}
