package model

import (
	"errors"
	"strings"
)

// Client holds the details printed on a client's timesheets. A client
// exists by name as soon as one repository is bound to it; a Client record
// only stores the optional extras.
type Client struct {
	Name          string `json:"name"`
	Address       string `json:"address,omitempty"`
	ContactPerson string `json:"contact_person,omitempty"`
	// RequiresApproval marks timesheets that must be signed off by the
	// approver before they count.
	RequiresApproval bool   `json:"requires_approval"`
	ApproverName     string `json:"approver_name,omitempty"`
	ApproverEmail    string `json:"approver_email,omitempty"`
}

// Validate checks that an approval-required client names its approver.
func (c Client) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("client name is required")
	}
	if c.RequiresApproval && (strings.TrimSpace(c.ApproverName) == "" || strings.TrimSpace(c.ApproverEmail) == "") {
		return errors.New("an approver name and email are required when approval is required")
	}
	return nil
}

// HasDetails reports whether c carries anything beyond its name.
func (c Client) HasDetails() bool {
	return c.Address != "" || c.ContactPerson != "" || c.RequiresApproval ||
		c.ApproverName != "" || c.ApproverEmail != ""
}
