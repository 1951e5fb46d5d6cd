package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/babyshield/crownsafe-backend/internal/platform/logger"
)

const defaultFDABaseURL = "https://api.fda.gov/food/enforcement.json"

type fdaEnforcementFeed struct {
	Results []struct {
		RecallNumber          string `json:"recall_number"`
		ProductDescription    string `json:"product_description"`
		RecallingFirm         string `json:"recalling_firm"`
		RecallInitiationDate  string `json:"recall_initiation_date"`
		ReasonForRecall       string `json:"reason_for_recall"`
		Classification        string `json:"classification"`
		CodeInfo              string `json:"code_info"`
		UPC                   string `json:"upc"`
		DistributionPattern   string `json:"distribution_pattern"`
		Status                string `json:"status"`
		VoluntaryMandated     string `json:"voluntary_mandated"`
		ProductQuantity       string `json:"product_quantity"`
		InitialFirmNotification string `json:"initial_firm_notification"`
	} `json:"results"`
}

// FDAConnector pulls food and product enforcement reports from openFDA.
type FDAConnector struct {
	baseURL string
	apiKey  string
	client  httpDoer
	log     *logger.Logger
}

func NewFDAConnector(baseURL, apiKey string, client httpDoer, baseLog *logger.Logger) *FDAConnector {
	if baseURL == "" {
		baseURL = defaultFDABaseURL
	}
	if client == nil {
		client = newFeedClient()
	}
	return &FDAConnector{baseURL: baseURL, apiKey: apiKey, client: client, log: baseLog.With("connector", "FDA")}
}

func (c *FDAConnector) Agency() string { return "FDA" }

func (c *FDAConnector) Fetch(ctx context.Context, req FetchRequest) ([]RawRecord, error) {
	limit := req.Limit
	if limit <= 0 || limit > 1000 {
		limit = 1000
	}
	q := url.Values{"limit": {fmt.Sprintf("%d", limit)}}
	if !req.Since.IsZero() {
		q.Set("search", fmt.Sprintf("recall_initiation_date:[%s TO 3000-01-01]", req.Since.Format("20060102")))
	}
	if c.apiKey != "" {
		q.Set("api_key", c.apiKey)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetch FDA feed: %w", err)
	}
	defer resp.Body.Close()
	// openFDA answers 404 for an empty result window
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &feedStatusError{Agency: c.Agency(), Status: resp.StatusCode}
	}

	var feed fdaEnforcementFeed
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode FDA feed: %w", err)
	}

	out := make([]RawRecord, 0, len(feed.Results))
	for _, item := range feed.Results {
		out = append(out, RawRecord{
			RecallID:     item.RecallNumber,
			SourceAgency: c.Agency(),
			ProductName:  item.ProductDescription,
			Manufacturer: item.RecallingFirm,
			UPC:          item.UPC,
			LotNumber:    item.CodeInfo,
			RecallDate:   item.RecallInitiationDate,
			RecallReason: item.ReasonForRecall,
			RecallClass:  item.Classification,
			Country:      "US",
			AgencySpecific: map[string]interface{}{
				"status":               item.Status,
				"voluntary_mandated":   item.VoluntaryMandated,
				"distribution_pattern": item.DistributionPattern,
				"product_quantity":     item.ProductQuantity,
				"initial_notification": item.InitialFirmNotification,
			},
		})
	}
	c.log.Info("Fetched FDA feed", "records", len(out))
	return out, nil
}
