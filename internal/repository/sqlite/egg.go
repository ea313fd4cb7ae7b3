// 文件路径: internal/repository/sqlite/egg.go
// 模块说明: 模板镜像表的读写；镜像列表与变量以 JSON 文本列存储。
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/creamcroissant/panelmirror/internal/repository"
)

type eggRepo struct {
	db querier
}

const eggColumns = `id, origin_id, uuid, name, description, url, docker_images, variables, startup, slug, public, created_at, updated_at`

func (r *eggRepo) Create(ctx context.Context, egg *repository.Egg) (bool, error) {
	images, variables, err := encodeEggColumns(egg)
	if err != nil {
		return false, err
	}
	now := time.Now().Unix()
	if egg.CreatedAt == 0 {
		egg.CreatedAt = now
	}
	egg.UpdatedAt = now
	const query = `INSERT INTO eggs (origin_id, uuid, name, description, url, docker_images, variables, startup, slug, public, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT DO NOTHING`
	id, ok, err := inserted(r.db.ExecContext(ctx, query,
		egg.OriginID, egg.UUID, egg.Name, nullableString(egg.Description), nullableString(egg.URL),
		images, variables, egg.Startup, nullableString(egg.Slug), boolToInt(egg.Public),
		egg.CreatedAt, egg.UpdatedAt))
	if err != nil || !ok {
		return false, err
	}
	egg.ID = id
	return true, nil
}

func (r *eggRepo) FindByUUID(ctx context.Context, uuid string) (*repository.Egg, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+eggColumns+` FROM eggs WHERE uuid = ?`, uuid)
	egg, err := scanEgg(row)
	return egg, notFound(err)
}

func (r *eggRepo) FindByOriginID(ctx context.Context, originID int64) (*repository.Egg, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+eggColumns+` FROM eggs WHERE origin_id = ?`, originID)
	egg, err := scanEgg(row)
	return egg, notFound(err)
}

func (r *eggRepo) ExistsByOriginID(ctx context.Context, originID int64) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM eggs WHERE origin_id = ?)`, originID).Scan(&exists)
	return exists == 1, err
}

func (r *eggRepo) Update(ctx context.Context, egg *repository.Egg) error {
	images, variables, err := encodeEggColumns(egg)
	if err != nil {
		return err
	}
	egg.UpdatedAt = time.Now().Unix()
	const query = `UPDATE eggs
        SET name = ?, description = ?, url = ?, docker_images = ?, variables = ?, startup = ?, slug = ?, public = ?, updated_at = ?
        WHERE id = ?`
	return affected(r.db.ExecContext(ctx, query,
		egg.Name, nullableString(egg.Description), nullableString(egg.URL), images, variables,
		egg.Startup, nullableString(egg.Slug), boolToInt(egg.Public), egg.UpdatedAt, egg.ID))
}

func (r *eggRepo) Delete(ctx context.Context, id int64) error {
	return affected(r.db.ExecContext(ctx, `DELETE FROM eggs WHERE id = ?`, id))
}

func (r *eggRepo) List(ctx context.Context) ([]*repository.Egg, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+eggColumns+` FROM eggs ORDER BY origin_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var eggs []*repository.Egg
	for rows.Next() {
		egg, err := scanEgg(rows)
		if err != nil {
			return nil, err
		}
		eggs = append(eggs, egg)
	}
	return eggs, rows.Err()
}

func encodeEggColumns(egg *repository.Egg) (string, string, error) {
	images := egg.DockerImages
	if images == nil {
		images = map[string]string{}
	}
	encodedImages, err := encodeJSON(images)
	if err != nil {
		return "", "", err
	}
	variables := egg.Variables
	if variables == nil {
		variables = []repository.EggVariable{}
	}
	encodedVariables, err := encodeJSON(variables)
	if err != nil {
		return "", "", err
	}
	return encodedImages, encodedVariables, nil
}

func scanEgg(scanner rowScanner) (*repository.Egg, error) {
	var (
		egg         repository.Egg
		description sql.NullString
		url         sql.NullString
		images      sql.NullString
		variables   sql.NullString
		slug        sql.NullString
	)
	if err := scanner.Scan(
		&egg.ID,
		&egg.OriginID,
		&egg.UUID,
		&egg.Name,
		&description,
		&url,
		&images,
		&variables,
		&egg.Startup,
		&slug,
		&egg.Public,
		&egg.CreatedAt,
		&egg.UpdatedAt,
	); err != nil {
		return nil, err
	}
	egg.Description = description.String
	egg.URL = url.String
	egg.Slug = slug.String
	if err := decodeJSON(images.String, &egg.DockerImages); err != nil {
		return nil, err
	}
	if err := decodeJSON(variables.String, &egg.Variables); err != nil {
		return nil, err
	}
	return &egg, nil
}
