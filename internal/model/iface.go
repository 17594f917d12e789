package model

// DigestQuerier provides read-only access to one run's digest.
type DigestQuerier interface {
	TopDigests(limit int, metric string) ([]DigestRow, error)
	DigestByID(id string) (DigestRow, bool, error)
	Summary() (RunSummary, error)
}

// SchemaQuerier provides schema introspection and arbitrary read-only queries.
type SchemaQuerier interface {
	ExecuteQuery(query string) ([]map[string]interface{}, error)
	GetSchemaDescription() string
	TableRowCounts() (map[string]int64, error)
}

// DigestWriter loads a finished run into a store.
type DigestWriter interface {
	InsertDigests(rows []DigestRow, summary RunSummary) error
}

// ReadAPI is the unified read contract for read surfaces (HTTP and TUI).
type ReadAPI interface {
	DigestQuerier
	SchemaQuerier
}
