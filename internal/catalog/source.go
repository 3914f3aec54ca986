// Package catalog loads ranked marker result sets from a file, Postgres or
// Redis and feeds them to the LOD engine when they change.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"

	"gopkg.in/yaml.v3"

	"crave/map-core/internal/marker"
)

// ErrNoResultSet is returned when a source has nothing to offer yet.
var ErrNoResultSet = errors.New("no result set available")

// ResultSet is one version of the ranked markers.
type ResultSet struct {
	Version string
	Entries []marker.Entry
}

type Source interface {
	Name() string
	Fetch(ctx context.Context) (ResultSet, error)
}

// Document is the on-disk and in-cache form of a result set. JSON documents
// decode as well since JSON is valid YAML.
type Document struct {
	Version string         `yaml:"version" json:"version,omitempty"`
	Markers []marker.Entry `yaml:"markers" json:"markers"`
}

// Decode parses a document. When it carries no version, fallback is used.
func Decode(raw []byte, fallback string) (ResultSet, error) {
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return ResultSet{}, fmt.Errorf("decode result set: %w", err)
	}
	v := doc.Version
	if v == "" {
		v = fallback
	}
	return ResultSet{Version: v, Entries: doc.Markers}, nil
}

func contentVersion(raw []byte) string {
	h := fnv.New64a()
	_, _ = h.Write(raw)
	return fmt.Sprintf("fnv:%016x", h.Sum64())
}
