package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/skyhub/auth-service/internal/model"
	"github.com/skyhub/auth-service/internal/utils"
)

// mysqlDuplicateEntry is the server error number for unique key violations.
const mysqlDuplicateEntry = 1062

const userColumns = "id,user_name,email,password,role,created_at,updated_at"

// UserRepo is the MySQL identity store.
type UserRepo struct {
	DB         *sql.DB
	BcryptCost int
}

func NewUserRepo(db *sql.DB, bcryptCost int) *UserRepo {
	return &UserRepo{DB: db, BcryptCost: bcryptCost}
}

// Create hashes the password and inserts the principal. Duplicate username
// or email yields a *ConflictError. Uniqueness is checked up front for a
// precise message and enforced again by the unique keys under races.
func (r *UserRepo) Create(ctx context.Context, in model.NewPrincipal) (model.Principal, error) {
	in.Email = normalizeEmail(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	if in.Role == "" {
		in.Role = model.RoleUser
	}

	if _, err := r.FindByUsername(ctx, in.Username); err == nil {
		return model.Principal{}, &ConflictError{Field: "username"}
	} else if !errors.Is(err, ErrNotFound) {
		return model.Principal{}, err
	}
	if _, err := r.FindByEmail(ctx, in.Email); err == nil {
		return model.Principal{}, &ConflictError{Field: "email"}
	} else if !errors.Is(err, ErrNotFound) {
		return model.Principal{}, err
	}

	hash, err := utils.HashPassword(in.Password, r.BcryptCost)
	if err != nil {
		return model.Principal{}, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (user_name, email, password, role) VALUES (?,?,?,?)",
		in.Username, in.Email, hash, string(in.Role))
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
			field := "email"
			if strings.Contains(me.Message, "user_name") {
				field = "username"
			}
			return model.Principal{}, &ConflictError{Field: field}
		}
		return model.Principal{}, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Principal{}, err
	}
	return r.FindByID(ctx, uint64(id))
}

// FindByID fetches a principal by id.
func (r *UserRepo) FindByID(ctx context.Context, id uint64) (model.Principal, error) {
	return r.scanOne(ctx, "SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
}

// FindByEmail fetches a principal by normalized email.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (model.Principal, error) {
	return r.scanOne(ctx, "SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", normalizeEmail(email))
}

// FindByUsername fetches a principal by exact username.
func (r *UserRepo) FindByUsername(ctx context.Context, username string) (model.Principal, error) {
	return r.scanOne(ctx, "SELECT "+userColumns+" FROM users WHERE user_name=? LIMIT 1", strings.TrimSpace(username))
}

// FindByUsernameOrEmail matches either column; login accepts both.
func (r *UserRepo) FindByUsernameOrEmail(ctx context.Context, usernameOrEmail string) (model.Principal, error) {
	v := strings.TrimSpace(usernameOrEmail)
	return r.scanOne(ctx,
		"SELECT "+userColumns+" FROM users WHERE user_name=? OR email=? LIMIT 1",
		v, normalizeEmail(v))
}

// ExistsByEmail reports whether email belongs to a registered principal.
func (r *UserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx, "SELECT 1 FROM users WHERE email=? LIMIT 1", normalizeEmail(email)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// VerifyPassword compares plain against the principal's stored hash.
func (r *UserRepo) VerifyPassword(p model.Principal, plain string) bool {
	return utils.VerifyPassword(p.PasswordHash, plain)
}

func (r *UserRepo) scanOne(ctx context.Context, query string, args ...any) (model.Principal, error) {
	var (
		p    model.Principal
		role string
	)
	err := r.DB.QueryRowContext(ctx, query, args...).
		Scan(&p.ID, &p.Username, &p.Email, &p.PasswordHash, &role, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Principal{}, ErrNotFound
	}
	if err != nil {
		return model.Principal{}, err
	}
	p.Role = model.Role(role)
	return p, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
