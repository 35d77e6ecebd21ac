package model

import (
	"time"
	_ "time/tzdata" // zone names resolve without host zoneinfo
)

// Binding associates one local repository with one (client, project) pair.
// Entries reference the binding by ID so a repository can back several
// projects without its history being attributed twice.
type Binding struct {
	ID             string `json:"id"`
	RepositoryPath string `json:"repository_path"`
	ClientName     string `json:"client_name"`
	ProjectName    string `json:"project_name"`
	// ProjectNumber is the client's project or PO number, printed on
	// timesheets when set.
	ProjectNumber string `json:"project_number,omitempty"`
	// Timezone is the IANA zone recorded at bind time. Commits are grouped
	// into calendar days in this zone, never in the host's current zone.
	Timezone    string    `json:"timezone"`
	AuthorName  string    `json:"author_name,omitempty"`
	AuthorEmail string    `json:"author_email,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Location resolves the binding's time zone, falling back to UTC when the
// recorded name is empty or unknown to the host.
func (b Binding) Location() *time.Location {
	if b.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Label returns "client / project".
func (b Binding) Label() string {
	return b.ClientName + " / " + b.ProjectName
}
