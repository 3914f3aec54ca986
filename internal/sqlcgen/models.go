package sqlcgen

import "time"

type SearchResultSet struct {
	ID        int64
	Label     *string
	CreatedAt time.Time
}

type SearchResultMarker struct {
	ResultSetID int64
	MarkerID    string
	Lat         float64
	Lng         float64
	Rank        int32
	Color       *string
	IsSelected  bool
}
