package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Tiliavir/git-timesheets/internal/apperr"
	"github.com/Tiliavir/git-timesheets/internal/model"
)

const clientColumns = `client_name, address, contact_person, requires_approval, approver_name, approver_email`

// SaveClient stores the details of a client, replacing earlier ones. The
// client must have at least one binding.
func (s *Store) SaveClient(ctx context.Context, c model.Client) error {
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		return apperr.New("save client", c.Name, fmt.Errorf("%w: %w", apperr.ErrInvalidClient, err))
	}
	return s.withTx(ctx, "save client", func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM bindings WHERE client_name = ?`, c.Name).Scan(&n); err != nil {
			return ioErr("save client", err)
		}
		if n == 0 {
			return apperr.New("save client", c.Name, apperr.ErrBindingNotFound)
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO clients (`+clientColumns+`, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (client_name) DO UPDATE SET
				address = excluded.address,
				contact_person = excluded.contact_person,
				requires_approval = excluded.requires_approval,
				approver_name = excluded.approver_name,
				approver_email = excluded.approver_email,
				updated_at = excluded.updated_at`,
			c.Name, c.Address, c.ContactPerson, c.RequiresApproval, c.ApproverName, c.ApproverEmail,
			formatTime(s.now()))
		if err != nil {
			return ioErr("save client", err)
		}
		s.logger.Debug("saved client", "client", c.Name, "requires_approval", c.RequiresApproval)
		return nil
	})
}

// Client returns the stored details of one client. A client without
// stored details is returned with only its name set and ok false.
func (s *Store) Client(ctx context.Context, name string) (model.Client, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE client_name = ?`, name)
	c, err := scanClient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Client{Name: name}, false, nil
	}
	if err != nil {
		return model.Client{}, false, ioErr("get client", err)
	}
	return c, true, nil
}

// Clients returns every client with stored details, ordered by name.
func (s *Store) Clients(ctx context.Context) ([]model.Client, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY client_name`)
	if err != nil {
		return nil, ioErr("list clients", err)
	}
	defer rows.Close()

	var clients []model.Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, ioErr("list clients", err)
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, ioErr("list clients", err)
	}
	return clients, nil
}

func scanClient(row scanner) (model.Client, error) {
	var c model.Client
	err := row.Scan(&c.Name, &c.Address, &c.ContactPerson, &c.RequiresApproval, &c.ApproverName, &c.ApproverEmail)
	return c, err
}
