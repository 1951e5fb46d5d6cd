package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// FixtureConnector serves records from a JSON file on disk. It backs local
// development and the admin-triggered smoke runs against a known dataset.
type FixtureConnector struct {
	agency string
	path   string
}

func NewFixtureConnector(agency, path string) *FixtureConnector {
	return &FixtureConnector{agency: agency, path: path}
}

func (c *FixtureConnector) Agency() string { return c.agency }

func (c *FixtureConnector) Fetch(ctx context.Context, req FetchRequest) ([]RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", c.path, err)
	}
	var records []RawRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode fixture %s: %w", c.path, err)
	}

	out := make([]RawRecord, 0, len(records))
	for _, r := range records {
		if r.SourceAgency == "" {
			r.SourceAgency = c.agency
		}
		if !req.Since.IsZero() {
			if d, pErr := time.Parse("2006-01-02", r.RecallDate); pErr == nil && d.Before(req.Since) {
				continue
			}
		}
		out = append(out, r)
		if req.Limit > 0 && len(out) >= req.Limit {
			break
		}
	}
	return out, nil
}
