package timesheet

import (
	"sort"
	"time"

	"github.com/Tiliavir/git-timesheets/internal/model"
	"github.com/Tiliavir/git-timesheets/internal/timecalc"
)

// Document is the serialised form of a timesheet: the JSON output format
// and the payload submitted for sharing.
type Document struct {
	CreatedAt  time.Time       `json:"created_at"`
	MonthYear  string          `json:"month_year"`
	Year       int             `json:"year"`
	Month      int             `json:"month"`
	User       string          `json:"user,omitempty"`
	Clients    []ClientDetails `json:"clients,omitempty"`
	Timesheets []ProjectSheet  `json:"timesheets"`
	TotalHours float64         `json:"total_hours"`
	// RequiresApproval is set when any client on the document requires
	// sign-off. Approved is always false when gts creates a document.
	RequiresApproval bool `json:"requires_approval"`
	Approved         bool `json:"approved"`
}

// ClientDetails is the letterhead of one client.
type ClientDetails struct {
	Name             string    `json:"name"`
	Address          string    `json:"address,omitempty"`
	ContactPerson    string    `json:"contact_person,omitempty"`
	RequiresApproval bool      `json:"requires_approval"`
	Approver         *Approver `json:"approver,omitempty"`
}

// Approver signs off a client's timesheets.
type Approver struct {
	Name  string `json:"approvers_name"`
	Email string `json:"approvers_email"`
}

// ProjectSheet holds the days of one (client, project) pair.
type ProjectSheet struct {
	Client        string  `json:"client"`
	Project       string  `json:"project"`
	ProjectNumber string  `json:"project_number,omitempty"`
	Days          []Day   `json:"days"`
	TotalHours    float64 `json:"total_hours"`
}

// Day is one worked day.
type Day struct {
	Date    string       `json:"date"`
	Hours   float64      `json:"hours"`
	Weekend bool         `json:"weekend"`
	Source  model.Source `json:"source"`
}

// NewDocument converts ts into a Document created at createdAt.
func NewDocument(ts model.Timesheet, user string, createdAt time.Time) Document {
	doc := Document{
		CreatedAt:  createdAt.UTC(),
		MonthYear:  ts.Period.String(),
		Year:       ts.Period.Year,
		Month:      int(ts.Period.Month),
		User:       user,
		Timesheets: []ProjectSheet{},
		TotalHours: ts.TotalHours,
	}
	for _, c := range ts.Clients {
		details := ClientDetails{
			Name:             c.Name,
			Address:          c.Address,
			ContactPerson:    c.ContactPerson,
			RequiresApproval: c.RequiresApproval,
		}
		if c.ApproverName != "" || c.ApproverEmail != "" {
			details.Approver = &Approver{Name: c.ApproverName, Email: c.ApproverEmail}
		}
		doc.Clients = append(doc.Clients, details)
		doc.RequiresApproval = doc.RequiresApproval || c.RequiresApproval
	}

	type key struct{ client, project string }
	index := map[key]int{}
	for _, l := range ts.Lines {
		k := key{l.Binding.ClientName, l.Binding.ProjectName}
		i, ok := index[k]
		if !ok {
			i = len(doc.Timesheets)
			index[k] = i
			doc.Timesheets = append(doc.Timesheets, ProjectSheet{Client: k.client, Project: k.project})
		}
		sheet := &doc.Timesheets[i]
		if sheet.ProjectNumber == "" {
			sheet.ProjectNumber = l.Binding.ProjectNumber
		}
		sheet.Days = append(sheet.Days, Day{
			Date:    l.Entry.Date,
			Hours:   l.Entry.Hours,
			Weekend: timecalc.IsWeekend(l.Entry.Date),
			Source:  l.Entry.Source,
		})
		sheet.TotalHours += l.Entry.Hours
	}
	for i := range doc.Timesheets {
		doc.Timesheets[i].TotalHours = timecalc.RoundHours(doc.Timesheets[i].TotalHours)
	}
	sort.SliceStable(doc.Timesheets, func(i, j int) bool {
		a, b := doc.Timesheets[i], doc.Timesheets[j]
		if a.Project != b.Project {
			return a.Project < b.Project
		}
		return a.Client < b.Client
	})
	return doc
}
