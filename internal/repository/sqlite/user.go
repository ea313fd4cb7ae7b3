// 文件路径: internal/repository/sqlite/user.go
// 模块说明: 用户表的读写；本地创建的用户 origin_id 为 NULL。
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/creamcroissant/panelmirror/internal/repository"
)

type userRepo struct {
	db querier
}

const userColumns = `id, origin_id, name, email, password, lang, timezone, root_admin, created_at, updated_at`

func (r *userRepo) Create(ctx context.Context, user *repository.User) (bool, error) {
	now := time.Now().Unix()
	if user.CreatedAt == 0 {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.Lang == "" {
		user.Lang = "en"
	}
	if user.Timezone == "" {
		user.Timezone = "UTC"
	}
	const query = `INSERT INTO users (origin_id, name, email, password, lang, timezone, root_admin, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT DO NOTHING`
	id, ok, err := inserted(r.db.ExecContext(ctx, query,
		nullableID(user.OriginID), user.Name, user.Email, user.Password, user.Lang, user.Timezone,
		boolToInt(user.RootAdmin), user.CreatedAt, user.UpdatedAt))
	if err != nil || !ok {
		return false, err
	}
	user.ID = id
	return true, nil
}

func (r *userRepo) FindByOriginID(ctx context.Context, originID int64) (*repository.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE origin_id = ?`, originID)
	user, err := scanUser(row)
	return user, notFound(err)
}

func (r *userRepo) ExistsByEmailAndName(ctx context.Context, email, name string) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE email = ? AND name = ?)`, email, name).Scan(&exists)
	return exists == 1, err
}

func (r *userRepo) Update(ctx context.Context, user *repository.User) error {
	if user.UpdatedAt <= 0 {
		user.UpdatedAt = time.Now().Unix()
	}
	const query = `UPDATE users
        SET origin_id = ?, name = ?, email = ?, password = ?, lang = ?, timezone = ?, root_admin = ?, updated_at = ?
        WHERE id = ?`
	return affected(r.db.ExecContext(ctx, query,
		nullableID(user.OriginID), user.Name, user.Email, user.Password, user.Lang, user.Timezone,
		boolToInt(user.RootAdmin), user.UpdatedAt, user.ID))
}

func (r *userRepo) Delete(ctx context.Context, id int64) error {
	return affected(r.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id))
}

func (r *userRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

func scanUser(scanner rowScanner) (*repository.User, error) {
	var (
		user     repository.User
		originID sql.NullInt64
	)
	if err := scanner.Scan(
		&user.ID,
		&originID,
		&user.Name,
		&user.Email,
		&user.Password,
		&user.Lang,
		&user.Timezone,
		&user.RootAdmin,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	user.OriginID = originID.Int64
	return &user, nil
}
