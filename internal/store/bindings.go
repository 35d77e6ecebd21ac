package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/Tiliavir/git-timesheets/internal/apperr"
	"github.com/Tiliavir/git-timesheets/internal/model"
)

const bindingColumns = `id, repository_path, client_name, project_name, project_number, timezone, author_name, author_email, created_at`

// CreateBinding inserts b, assigning an ID and creation time when unset.
// It fails with apperr.ErrDuplicateBinding if the (path, client, project)
// triple is already bound.
func (s *Store) CreateBinding(ctx context.Context, b model.Binding) (model.Binding, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.now()
	}
	if b.Timezone == "" {
		b.Timezone = "UTC"
	}

	err := s.withTx(ctx, "create binding", func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM bindings WHERE repository_path = ? AND client_name = ? AND project_name = ?`,
			b.RepositoryPath, b.ClientName, b.ProjectName).Scan(&exists)
		if err != nil {
			return ioErr("create binding", err)
		}
		if exists > 0 {
			return apperr.New("bind", fmt.Sprintf("%s (%s)", b.RepositoryPath, b.Label()), apperr.ErrDuplicateBinding)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO bindings (`+bindingColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			b.ID, b.RepositoryPath, b.ClientName, b.ProjectName, b.ProjectNumber, b.Timezone,
			b.AuthorName, b.AuthorEmail, formatTime(b.CreatedAt))
		if err != nil {
			return ioErr("create binding", err)
		}
		return nil
	})
	if err != nil {
		return model.Binding{}, err
	}
	s.logger.Debug("created binding", "id", b.ID, "path", b.RepositoryPath, "client", b.ClientName, "project", b.ProjectName)
	return b, nil
}

// ListBindings returns every binding ordered by client, project, path.
func (s *Store) ListBindings(ctx context.Context) ([]model.Binding, error) {
	return s.queryBindings(ctx, "list bindings",
		`SELECT `+bindingColumns+` FROM bindings ORDER BY client_name, project_name, repository_path`)
}

// BindingsByPath returns the bindings of one repository path.
func (s *Store) BindingsByPath(ctx context.Context, repoPath string) ([]model.Binding, error) {
	return s.queryBindings(ctx, "bindings by path",
		`SELECT `+bindingColumns+` FROM bindings WHERE repository_path = ? ORDER BY client_name, project_name`,
		repoPath)
}

// GetBinding returns the binding with the given ID.
func (s *Store) GetBinding(ctx context.Context, id string) (model.Binding, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bindingColumns+` FROM bindings WHERE id = ?`, id)
	b, err := scanBinding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Binding{}, apperr.New("get binding", id, apperr.ErrBindingNotFound)
	}
	if err != nil {
		return model.Binding{}, ioErr("get binding", err)
	}
	return b, nil
}

// DeleteBinding removes a binding and all of its entries in one
// transaction and returns the number of entries removed. The client's
// details go too once its last binding is gone.
func (s *Store) DeleteBinding(ctx context.Context, id string) (int, error) {
	var removed int64
	err := s.withTx(ctx, "delete binding", func(tx *sql.Tx) error {
		var client string
		err := tx.QueryRowContext(ctx, `SELECT client_name FROM bindings WHERE id = ?`, id).Scan(&client)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.New("delete binding", id, apperr.ErrBindingNotFound)
		}
		if err != nil {
			return ioErr("delete binding", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE binding_id = ?`, id)
		if err != nil {
			return ioErr("delete binding", err)
		}
		removed, _ = res.RowsAffected()
		if _, err := tx.ExecContext(ctx, `DELETE FROM bindings WHERE id = ?`, id); err != nil {
			return ioErr("delete binding", err)
		}
		_, err = tx.ExecContext(ctx,
			`DELETE FROM clients WHERE client_name = ? AND NOT EXISTS (SELECT 1 FROM bindings WHERE client_name = ?)`,
			client, client)
		if err != nil {
			return ioErr("delete binding", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.logger.Debug("deleted binding", "id", id, "entries", removed)
	return int(removed), nil
}

// SetProjectNumber records the project or PO number of a binding. An empty
// number clears it.
func (s *Store) SetProjectNumber(ctx context.Context, id, number string) error {
	return s.withTx(ctx, "set project number", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE bindings SET project_number = ? WHERE id = ?`,
			strings.TrimSpace(number), id)
		if err != nil {
			return ioErr("set project number", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return apperr.New("set project number", id, apperr.ErrBindingNotFound)
		}
		return nil
	})
}

func (s *Store) queryBindings(ctx context.Context, op, query string, args ...any) ([]model.Binding, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, ioErr(op, err)
	}
	defer rows.Close()

	var bindings []model.Binding
	for rows.Next() {
		b, err := scanBinding(rows)
		if err != nil {
			return nil, ioErr(op, err)
		}
		bindings = append(bindings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, ioErr(op, err)
	}
	return bindings, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBinding(row scanner) (model.Binding, error) {
	var (
		b       model.Binding
		created sql.NullString
	)
	if err := row.Scan(&b.ID, &b.RepositoryPath, &b.ClientName, &b.ProjectName, &b.ProjectNumber,
		&b.Timezone, &b.AuthorName, &b.AuthorEmail, &created); err != nil {
		return model.Binding{}, err
	}
	t, err := parseTime(created)
	if err != nil {
		return model.Binding{}, fmt.Errorf("binding %s created_at: %w", b.ID, err)
	}
	b.CreatedAt = t
	b.Timezone = strings.TrimSpace(b.Timezone)
	return b, nil
}
