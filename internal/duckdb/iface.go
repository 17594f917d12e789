package duckdb

import "github.com/tinytelemetry/slowdigest/internal/model"

// Type aliases re-export model interfaces so consumers that only need the
// read contract can depend on the duckdb package alone.
type DigestQuerier = model.DigestQuerier
type SchemaQuerier = model.SchemaQuerier
type DigestWriter = model.DigestWriter
type ReadAPI = model.ReadAPI

var (
	_ ReadAPI      = (*Store)(nil)
	_ DigestWriter = (*Store)(nil)
)
