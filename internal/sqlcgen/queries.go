package sqlcgen

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX matches the minimal interface needed from pgxpool.Pool or pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgx.Row
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const getLatestResultSet = `-- name: GetLatestResultSet :one
SELECT id,
       label,
       created_at
FROM search_result_sets
ORDER BY created_at DESC, id DESC
LIMIT 1;
`

func (q *Queries) GetLatestResultSet(ctx context.Context) (SearchResultSet, error) {
	row := q.db.QueryRow(ctx, getLatestResultSet)
	var i SearchResultSet
	err := row.Scan(&i.ID, &i.Label, &i.CreatedAt)
	return i, err
}

const listResultSetMarkers = `-- name: ListResultSetMarkers :many
SELECT result_set_id,
       marker_id,
       lat,
       lng,
       rank,
       color,
       is_selected
FROM search_result_markers
WHERE result_set_id = $1
ORDER BY rank ASC, marker_id ASC;
`

func (q *Queries) ListResultSetMarkers(ctx context.Context, resultSetID int64) ([]SearchResultMarker, error) {
	rows, err := q.db.Query(ctx, listResultSetMarkers, resultSetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []SearchResultMarker
	for rows.Next() {
		var i SearchResultMarker
		if err := rows.Scan(
			&i.ResultSetID,
			&i.MarkerID,
			&i.Lat,
			&i.Lng,
			&i.Rank,
			&i.Color,
			&i.IsSelected,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const insertResultSet = `-- name: InsertResultSet :one
INSERT INTO search_result_sets (label)
VALUES ($1)
RETURNING id, label, created_at;
`

func (q *Queries) InsertResultSet(ctx context.Context, label *string) (SearchResultSet, error) {
	row := q.db.QueryRow(ctx, insertResultSet, label)
	var i SearchResultSet
	err := row.Scan(&i.ID, &i.Label, &i.CreatedAt)
	return i, err
}

const insertResultSetMarker = `-- name: InsertResultSetMarker :exec
INSERT INTO search_result_markers (
  result_set_id,
  marker_id,
  lat,
  lng,
  rank,
  color,
  is_selected
)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (result_set_id, marker_id) DO NOTHING;
`

type InsertResultSetMarkerParams struct {
	ResultSetID int64
	MarkerID    string
	Lat         float64
	Lng         float64
	Rank        int32
	Color       *string
	IsSelected  bool
}

func (q *Queries) InsertResultSetMarker(ctx context.Context, arg InsertResultSetMarkerParams) error {
	_, err := q.db.Exec(ctx, insertResultSetMarker,
		arg.ResultSetID,
		arg.MarkerID,
		arg.Lat,
		arg.Lng,
		arg.Rank,
		arg.Color,
		arg.IsSelected,
	)
	return err
}
