package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/tinytelemetry/slowdigest/internal/model"
)

type jsonRow struct {
	model.DigestRow
	FirstSeen *string `json:"first_seen"`
	LastSeen  *string `json:"last_seen"`
}

type jsonReport struct {
	Metric   string           `json:"metric,omitempty"`
	Timezone string           `json:"timezone"`
	Summary  model.RunSummary `json:"summary"`
	Digests  []jsonRow        `json:"digests"`
}

// jsonTime renders t in loc as RFC 3339, or nil when unset.
func jsonTime(t time.Time, loc *time.Location) *string {
	if t.IsZero() {
		return nil
	}
	s := t.In(loc).Format(time.RFC3339Nano)
	return &s
}

func renderJSON(w io.Writer, rep Report) error {
	loc := rep.location()
	out := jsonReport{
		Metric:   rep.Metric,
		Timezone: loc.String(),
		Summary:  rep.Summary,
		Digests:  make([]jsonRow, len(rep.Rows)),
	}
	for i, row := range rep.Rows {
		out.Digests[i] = jsonRow{
			DigestRow: row,
			FirstSeen: jsonTime(row.FirstSeen, loc),
			LastSeen:  jsonTime(row.LastSeen, loc),
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("rendering json: %w", err)
	}
	return nil
}
