package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/samber/oops"

	"github.com/sakif/userdesk/internal/apperror"
	"github.com/sakif/userdesk/internal/model"
	"github.com/sakif/userdesk/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash); err != nil {
		return nil, err
	}
	return &u, nil
}

// Seed inserts records with their ids preserved. Existing ids or emails are
// skipped. AUTOINCREMENT then continues above the largest seeded id.
func (db *DB) Seed(ctx context.Context, users []model.User) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		for _, u := range users {
			_, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO users (id, name, email, password_hash) VALUES (?, ?, ?, ?)`,
				u.ID, u.Name, u.Email, u.PasswordHash,
			)
			if err != nil {
				return oops.Code("SQLITE_SEED_FAILED").With("email", u.Email).Wrap(err)
			}
		}
		return nil
	})
}

// Create inserts a new user and sets user.ID from the generated rowid.
func (db *DB) Create(ctx context.Context, user *model.User) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		taken, err := emailTaken(ctx, tx, user.Email, 0)
		if err != nil {
			return err
		}
		if taken {
			return apperror.ValidationFailed("email", "Email already exists")
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO users (name, email, password_hash) VALUES (?, ?, ?)`,
			user.Name, user.Email, user.PasswordHash,
		)
		if err != nil {
			return oops.Code("SQLITE_INSERT_FAILED").With("email", user.Email).Wrap(err)
		}

		id, err := res.LastInsertId()
		if err != nil {
			return oops.Code("SQLITE_INSERT_FAILED").Wrap(err)
		}
		user.ID = id
		return nil
	})
}

func (db *DB) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash FROM users WHERE email = ?`, email,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("User not found")
		}
		return nil, oops.Code("SQLITE_QUERY_FAILED").Wrap(err)
	}
	return u, nil
}

func (db *DB) FindByID(ctx context.Context, id int64) (*model.User, error) {
	u, err := findByID(ctx, db.conn, id)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Update applies patch inside one transaction: existence, empty-patch and
// collision checks plus the UPDATE itself.
func (db *DB) Update(ctx context.Context, id int64, patch model.UserPatch) (*model.User, error) {
	var updated *model.User

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		current, err := findByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if patch.IsEmpty() {
			return apperror.ValidationFailed("", "At least one field (name or email) is required")
		}

		if patch.Email != nil {
			taken, err := emailTaken(ctx, tx, *patch.Email, id)
			if err != nil {
				return err
			}
			if taken {
				return apperror.ValidationFailed("email", "Email already exists")
			}
			current.Email = *patch.Email
		}
		if patch.Name != nil {
			current.Name = *patch.Name
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE users SET name = ?, email = ? WHERE id = ?`,
			current.Name, current.Email, id,
		); err != nil {
			return oops.Code("SQLITE_UPDATE_FAILED").With("id", id).Wrap(err)
		}

		updated = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (db *DB) Delete(ctx context.Context, id int64) (*model.User, error) {
	var removed *model.User

	err := db.withTx(ctx, func(tx *sql.Tx) error {
		u, err := findByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); err != nil {
			return oops.Code("SQLITE_DELETE_FAILED").With("id", id).Wrap(err)
		}
		removed = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return removed, nil
}

// List returns users in insertion order. Ids are assigned monotonically,
// so ORDER BY id is insertion order.
func (db *DB) List(ctx context.Context) ([]model.User, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, email, password_hash FROM users ORDER BY id`,
	)
	if err != nil {
		return nil, oops.Code("SQLITE_QUERY_FAILED").Wrap(err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, oops.Code("SQLITE_SCAN_FAILED").Wrap(err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("SQLITE_QUERY_FAILED").Wrap(err)
	}
	return users, nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func findByID(ctx context.Context, q querier, id int64) (*model.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash FROM users WHERE id = ?`, id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("User not found")
		}
		return nil, oops.Code("SQLITE_QUERY_FAILED").With("id", id).Wrap(err)
	}
	return u, nil
}

// emailTaken reports whether a record other than exceptID owns email.
func emailTaken(ctx context.Context, q querier, email string, exceptID int64) (bool, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE email = ? AND id <> ?`, email, exceptID,
	).Scan(&count)
	if err != nil {
		return false, oops.Code("SQLITE_QUERY_FAILED").Wrap(err)
	}
	return count > 0, nil
}
