// 文件路径: internal/repository/sqlite/node.go
// 模块说明: 节点镜像表的读写。
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/creamcroissant/panelmirror/internal/repository"
)

type nodeRepo struct {
	db querier
}

const nodeColumns = `id, origin_id, uuid, name, slug, description, public, maintenance_mode, created_at, updated_at`

func (r *nodeRepo) Create(ctx context.Context, node *repository.Node) (bool, error) {
	now := time.Now().Unix()
	if node.CreatedAt == 0 {
		node.CreatedAt = now
	}
	node.UpdatedAt = now
	const query = `INSERT INTO nodes (origin_id, uuid, name, slug, description, public, maintenance_mode, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT DO NOTHING`
	id, ok, err := inserted(r.db.ExecContext(ctx, query,
		node.OriginID, node.UUID, node.Name, node.Slug, nullableString(node.Description),
		boolToInt(node.Public), boolToInt(node.MaintenanceMode), node.CreatedAt, node.UpdatedAt))
	if err != nil || !ok {
		return false, err
	}
	node.ID = id
	return true, nil
}

func (r *nodeRepo) FindByUUID(ctx context.Context, uuid string) (*repository.Node, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE uuid = ?`, uuid)
	node, err := scanNode(row)
	return node, notFound(err)
}

func (r *nodeRepo) FindByOriginID(ctx context.Context, originID int64) (*repository.Node, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+nodeColumns+` FROM nodes WHERE origin_id = ?`, originID)
	node, err := scanNode(row)
	return node, notFound(err)
}

func (r *nodeRepo) Update(ctx context.Context, node *repository.Node) error {
	node.UpdatedAt = time.Now().Unix()
	const query = `UPDATE nodes
        SET name = ?, slug = ?, description = ?, public = ?, maintenance_mode = ?, updated_at = ?
        WHERE id = ?`
	return affected(r.db.ExecContext(ctx, query,
		node.Name, node.Slug, nullableString(node.Description), boolToInt(node.Public),
		boolToInt(node.MaintenanceMode), node.UpdatedAt, node.ID))
}

func (r *nodeRepo) Delete(ctx context.Context, id int64) error {
	return affected(r.db.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id))
}

func (r *nodeRepo) List(ctx context.Context) ([]*repository.Node, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+nodeColumns+` FROM nodes ORDER BY origin_id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []*repository.Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, rows.Err()
}

func scanNode(scanner rowScanner) (*repository.Node, error) {
	var (
		node        repository.Node
		description sql.NullString
	)
	if err := scanner.Scan(
		&node.ID,
		&node.OriginID,
		&node.UUID,
		&node.Name,
		&node.Slug,
		&description,
		&node.Public,
		&node.MaintenanceMode,
		&node.CreatedAt,
		&node.UpdatedAt,
	); err != nil {
		return nil, err
	}
	node.Description = description.String
	return &node, nil
}
