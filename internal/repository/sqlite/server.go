// 文件路径: internal/repository/sqlite/server.go
// 模块说明: 服务器镜像表的读写；limits 等结构以 JSON 文本列存储。
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/creamcroissant/panelmirror/internal/repository"
)

type serverRepo struct {
	db querier
}

const serverColumns = `id, origin_id, uuid, name, slug, description, status, allocation_id, node_id, owner_id, egg_id,
        start_on_completion, docker_image, startup, limits, feature_limits, egg_variables, created_at, updated_at`

func (r *serverRepo) Create(ctx context.Context, server *repository.Server) (bool, error) {
	limits, features, variables, err := encodeServerColumns(server)
	if err != nil {
		return false, err
	}
	now := time.Now().Unix()
	if server.CreatedAt == 0 {
		server.CreatedAt = now
	}
	server.UpdatedAt = now
	const query = `INSERT INTO servers (origin_id, uuid, name, slug, description, status, allocation_id, node_id, owner_id, egg_id,
            start_on_completion, docker_image, startup, limits, feature_limits, egg_variables, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(uuid) DO NOTHING`
	id, ok, err := inserted(r.db.ExecContext(ctx, query,
		nullableID(server.OriginID), nullableString(server.UUID), server.Name, server.Slug,
		nullableString(server.Description), server.Status, server.AllocationID, server.NodeID,
		server.OwnerID, server.EggID, boolToInt(server.StartOnCompletion), server.DockerImage,
		server.Startup, limits, features, variables, server.CreatedAt, server.UpdatedAt))
	if err != nil || !ok {
		return false, err
	}
	server.ID = id
	return true, nil
}

func (r *serverRepo) FindByID(ctx context.Context, id int64) (*repository.Server, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+serverColumns+` FROM servers WHERE id = ?`, id)
	server, err := scanServer(row)
	return server, notFound(err)
}

func (r *serverRepo) FindByUUID(ctx context.Context, uuid string) (*repository.Server, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+serverColumns+` FROM servers WHERE uuid = ?`, uuid)
	server, err := scanServer(row)
	return server, notFound(err)
}

func (r *serverRepo) Update(ctx context.Context, server *repository.Server) error {
	limits, features, variables, err := encodeServerColumns(server)
	if err != nil {
		return err
	}
	if server.UpdatedAt <= 0 {
		server.UpdatedAt = time.Now().Unix()
	}
	const query = `UPDATE servers
        SET origin_id = ?, uuid = ?, name = ?, description = ?, status = ?, allocation_id = ?, node_id = ?, owner_id = ?,
            egg_id = ?, start_on_completion = ?, docker_image = ?, startup = ?, limits = ?, feature_limits = ?,
            egg_variables = ?, updated_at = ?
        WHERE id = ?`
	return affected(r.db.ExecContext(ctx, query,
		nullableID(server.OriginID), nullableString(server.UUID), server.Name,
		nullableString(server.Description), server.Status, server.AllocationID, server.NodeID,
		server.OwnerID, server.EggID, boolToInt(server.StartOnCompletion), server.DockerImage,
		server.Startup, limits, features, variables, server.UpdatedAt, server.ID))
}

func (r *serverRepo) UpdateStatus(ctx context.Context, uuid, status string) error {
	return affected(r.db.ExecContext(ctx,
		`UPDATE servers SET status = ?, updated_at = ? WHERE uuid = ?`,
		status, time.Now().Unix(), uuid))
}

func (r *serverRepo) Delete(ctx context.Context, id int64) error {
	return affected(r.db.ExecContext(ctx, `DELETE FROM servers WHERE id = ?`, id))
}

func (r *serverRepo) List(ctx context.Context) ([]*repository.Server, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+serverColumns+` FROM servers ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var servers []*repository.Server
	for rows.Next() {
		server, err := scanServer(rows)
		if err != nil {
			return nil, err
		}
		servers = append(servers, server)
	}
	return servers, rows.Err()
}

func (r *serverRepo) ListUUIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT uuid FROM servers WHERE uuid IS NOT NULL ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var uuids []string
	for rows.Next() {
		var uuid string
		if err := rows.Scan(&uuid); err != nil {
			return nil, err
		}
		uuids = append(uuids, uuid)
	}
	return uuids, rows.Err()
}

func encodeServerColumns(server *repository.Server) (string, string, string, error) {
	limits, err := encodeJSON(server.Limits)
	if err != nil {
		return "", "", "", err
	}
	features, err := encodeJSON(server.FeatureLimits)
	if err != nil {
		return "", "", "", err
	}
	vars := server.EggVariables
	if vars == nil {
		vars = map[string]string{}
	}
	variables, err := encodeJSON(vars)
	if err != nil {
		return "", "", "", err
	}
	return limits, features, variables, nil
}

func scanServer(scanner rowScanner) (*repository.Server, error) {
	var (
		server      repository.Server
		originID    sql.NullInt64
		uuid        sql.NullString
		description sql.NullString
		limits      string
		features    string
		variables   string
	)
	if err := scanner.Scan(
		&server.ID,
		&originID,
		&uuid,
		&server.Name,
		&server.Slug,
		&description,
		&server.Status,
		&server.AllocationID,
		&server.NodeID,
		&server.OwnerID,
		&server.EggID,
		&server.StartOnCompletion,
		&server.DockerImage,
		&server.Startup,
		&limits,
		&features,
		&variables,
		&server.CreatedAt,
		&server.UpdatedAt,
	); err != nil {
		return nil, err
	}
	server.OriginID = originID.Int64
	server.UUID = uuid.String
	server.Description = description.String
	if err := decodeJSON(limits, &server.Limits); err != nil {
		return nil, err
	}
	if err := decodeJSON(features, &server.FeatureLimits); err != nil {
		return nil, err
	}
	if err := decodeJSON(variables, &server.EggVariables); err != nil {
		return nil, err
	}
	return &server, nil
}
