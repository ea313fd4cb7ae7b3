// 文件路径: internal/repository/sqlite/allocation.go
// 模块说明: 端口分配镜像表的读写。
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/creamcroissant/panelmirror/internal/repository"
)

type allocationRepo struct {
	db querier
}

const allocationColumns = `id, origin_id, node_origin_id, ip, alias, port, assigned, public, created_at, updated_at`

func (r *allocationRepo) Create(ctx context.Context, allocation *repository.Allocation) (bool, error) {
	now := time.Now().Unix()
	if allocation.CreatedAt == 0 {
		allocation.CreatedAt = now
	}
	allocation.UpdatedAt = now
	const query = `INSERT INTO allocations (origin_id, node_origin_id, ip, alias, port, assigned, public, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT DO NOTHING`
	id, ok, err := inserted(r.db.ExecContext(ctx, query,
		allocation.OriginID, allocation.NodeOriginID, allocation.IP, nullableString(allocation.Alias),
		allocation.Port, boolToInt(allocation.Assigned), boolToInt(allocation.Public),
		allocation.CreatedAt, allocation.UpdatedAt))
	if err != nil || !ok {
		return false, err
	}
	allocation.ID = id
	return true, nil
}

func (r *allocationRepo) FindByOriginID(ctx context.Context, originID int64) (*repository.Allocation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+allocationColumns+` FROM allocations WHERE origin_id = ?`, originID)
	allocation, err := scanAllocation(row)
	return allocation, notFound(err)
}

func (r *allocationRepo) FindByNodeAndOriginID(ctx context.Context, nodeOriginID, originID int64) (*repository.Allocation, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+allocationColumns+` FROM allocations WHERE node_origin_id = ? AND origin_id = ?`,
		nodeOriginID, originID)
	allocation, err := scanAllocation(row)
	return allocation, notFound(err)
}

func (r *allocationRepo) ExistsByNodePort(ctx context.Context, nodeOriginID int64, port int) (bool, error) {
	var exists int
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM allocations WHERE node_origin_id = ? AND port = ?)`,
		nodeOriginID, port).Scan(&exists)
	return exists == 1, err
}

func (r *allocationRepo) Update(ctx context.Context, allocation *repository.Allocation) error {
	if allocation.UpdatedAt <= 0 {
		allocation.UpdatedAt = time.Now().Unix()
	}
	const query = `UPDATE allocations
        SET node_origin_id = ?, ip = ?, alias = ?, port = ?, assigned = ?, public = ?, updated_at = ?
        WHERE id = ?`
	return affected(r.db.ExecContext(ctx, query,
		allocation.NodeOriginID, allocation.IP, nullableString(allocation.Alias), allocation.Port,
		boolToInt(allocation.Assigned), boolToInt(allocation.Public), allocation.UpdatedAt, allocation.ID))
}

func (r *allocationRepo) SetAssigned(ctx context.Context, originID int64, assigned bool) error {
	return affected(r.db.ExecContext(ctx,
		`UPDATE allocations SET assigned = ?, updated_at = ? WHERE origin_id = ?`,
		boolToInt(assigned), time.Now().Unix(), originID))
}

func (r *allocationRepo) Delete(ctx context.Context, id int64) error {
	return affected(r.db.ExecContext(ctx, `DELETE FROM allocations WHERE id = ?`, id))
}

func (r *allocationRepo) ListByNode(ctx context.Context, nodeOriginID int64) ([]*repository.Allocation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+allocationColumns+` FROM allocations WHERE node_origin_id = ? ORDER BY port ASC`, nodeOriginID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var allocations []*repository.Allocation
	for rows.Next() {
		allocation, err := scanAllocation(rows)
		if err != nil {
			return nil, err
		}
		allocations = append(allocations, allocation)
	}
	return allocations, rows.Err()
}

func scanAllocation(scanner rowScanner) (*repository.Allocation, error) {
	var (
		allocation repository.Allocation
		alias      sql.NullString
	)
	if err := scanner.Scan(
		&allocation.ID,
		&allocation.OriginID,
		&allocation.NodeOriginID,
		&allocation.IP,
		&alias,
		&allocation.Port,
		&allocation.Assigned,
		&allocation.Public,
		&allocation.CreatedAt,
		&allocation.UpdatedAt,
	); err != nil {
		return nil, err
	}
	allocation.Alias = alias.String
	return &allocation, nil
}
