package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/babyshield/crownsafe-backend/internal/platform/logger"
)

const defaultHealthCanadaBaseURL = "https://healthycanadians.gc.ca/recall-alert-rappel-avis/api"

type healthCanadaFeed struct {
	Results struct {
		ALL []struct {
			RecallID string `json:"recallId"`
			Title    string `json:"title"`
			Category []string `json:"category"`
			DatePublished int64  `json:"date_published"`
			URL           string `json:"url"`
		} `json:"ALL"`
	} `json:"results"`
}

// HealthCanadaConnector pulls the Healthy Canadians recall and safety alert
// feed. The feed is shallow; detail enrichment stays in agency_specific data.
type HealthCanadaConnector struct {
	baseURL string
	client  httpDoer
	log     *logger.Logger
}

func NewHealthCanadaConnector(baseURL string, client httpDoer, baseLog *logger.Logger) *HealthCanadaConnector {
	if baseURL == "" {
		baseURL = defaultHealthCanadaBaseURL
	}
	if client == nil {
		client = newFeedClient()
	}
	return &HealthCanadaConnector{baseURL: baseURL, client: client, log: baseLog.With("connector", "HealthCanada")}
}

func (c *HealthCanadaConnector) Agency() string { return "HEALTH_CANADA" }

func (c *HealthCanadaConnector) Fetch(ctx context.Context, req FetchRequest) ([]RawRecord, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = 250
	}
	q := url.Values{"search": {""}, "lim": {strconv.Itoa(limit)}, "lang": {"en"}}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/recent/en?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetch Health Canada feed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &feedStatusError{Agency: c.Agency(), Status: resp.StatusCode}
	}

	var feed healthCanadaFeed
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode Health Canada feed: %w", err)
	}

	out := make([]RawRecord, 0, len(feed.Results.ALL))
	for _, item := range feed.Results.ALL {
		published := time.Unix(item.DatePublished, 0).UTC()
		if !req.Since.IsZero() && published.Before(req.Since) {
			continue
		}
		category := ""
		if len(item.Category) > 0 {
			category = item.Category[0]
		}
		out = append(out, RawRecord{
			RecallID:     item.RecallID,
			SourceAgency: c.Agency(),
			ProductName:  item.Title,
			RecallDate:   published.Format("2006-01-02"),
			URL:          item.URL,
			Country:      "CA",
			AgencySpecific: map[string]interface{}{
				"category": category,
			},
		})
	}
	c.log.Info("Fetched Health Canada feed", "records", len(out))
	return out, nil
}
