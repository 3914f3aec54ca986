package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"crave/map-core/internal/geo"
	"crave/map-core/internal/marker"
	"crave/map-core/internal/sqlcgen"
)

// Queries is the minimal DB interface the Postgres feed needs.
// *sqlcgen.Queries satisfies it.
type Queries interface {
	GetLatestResultSet(ctx context.Context) (sqlcgen.SearchResultSet, error)
	ListResultSetMarkers(ctx context.Context, resultSetID int64) ([]sqlcgen.SearchResultMarker, error)
	InsertResultSet(ctx context.Context, label *string) (sqlcgen.SearchResultSet, error)
	InsertResultSetMarker(ctx context.Context, arg sqlcgen.InsertResultSetMarkerParams) error
}

// PostgresSource serves the newest row of search_result_sets.
type PostgresSource struct {
	q Queries
}

func NewPostgresSource(q Queries) *PostgresSource {
	return &PostgresSource{q: q}
}

func (s *PostgresSource) Name() string {
	return "postgres"
}

func (s *PostgresSource) Fetch(ctx context.Context) (ResultSet, error) {
	set, err := s.q.GetLatestResultSet(ctx)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ResultSet{}, ErrNoResultSet
		}
		return ResultSet{}, fmt.Errorf("load latest result set: %w", err)
	}

	rows, err := s.q.ListResultSetMarkers(ctx, set.ID)
	if err != nil {
		return ResultSet{}, fmt.Errorf("load markers of result set %d: %w", set.ID, err)
	}

	entries := make([]marker.Entry, 0, len(rows))
	for _, r := range rows {
		e := marker.Entry{
			ID:         r.MarkerID,
			Coordinate: geo.LatLng{Lat: r.Lat, Lng: r.Lng},
			Rank:       int(r.Rank),
			IsSelected: r.IsSelected,
		}
		if r.Color != nil {
			e.Color = *r.Color
		}
		entries = append(entries, e)
	}

	return ResultSet{
		Version: fmt.Sprintf("%d@%s", set.ID, set.CreatedAt.UTC().Format(time.RFC3339Nano)),
		Entries: entries,
	}, nil
}

// Publish stores entries as a new result set. q should be bound to a
// transaction so readers never see a partial set.
func Publish(ctx context.Context, q Queries, label string, entries []marker.Entry) (int64, error) {
	var lbl *string
	if label != "" {
		lbl = &label
	}
	set, err := q.InsertResultSet(ctx, lbl)
	if err != nil {
		return 0, fmt.Errorf("insert result set: %w", err)
	}

	for _, e := range entries {
		var color *string
		if e.Color != "" {
			c := e.Color
			color = &c
		}
		if err := q.InsertResultSetMarker(ctx, sqlcgen.InsertResultSetMarkerParams{
			ResultSetID: set.ID,
			MarkerID:    e.ID,
			Lat:         e.Coordinate.Lat,
			Lng:         e.Coordinate.Lng,
			Rank:        int32(e.Rank),
			Color:       color,
			IsSelected:  e.IsSelected,
		}); err != nil {
			return 0, fmt.Errorf("insert marker %q: %w", e.ID, err)
		}
	}
	return set.ID, nil
}
