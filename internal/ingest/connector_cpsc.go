package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/babyshield/crownsafe-backend/internal/platform/logger"
)

const defaultCPSCBaseURL = "https://www.saferproducts.gov/RestWebServices/Recall"

// cpscRecall mirrors the shape of the saferproducts.gov recall API.
type cpscRecall struct {
	RecallID     json.Number `json:"RecallID"`
	RecallNumber string      `json:"RecallNumber"`
	RecallDate   string      `json:"RecallDate"`
	Description  string      `json:"Description"`
	URL          string      `json:"URL"`
	Title        string      `json:"Title"`
	Products     []struct {
		Name        string `json:"Name"`
		Description string `json:"Description"`
		Model       string `json:"Model"`
		Type        string `json:"Type"`
		UPC         string `json:"UPC"`
	} `json:"Products"`
	Hazards []struct {
		Name string `json:"Name"`
	} `json:"Hazards"`
	Remedies []struct {
		Name string `json:"Name"`
	} `json:"Remedies"`
	Manufacturers []struct {
		Name string `json:"Name"`
	} `json:"Manufacturers"`
}

// CPSCConnector pulls US consumer product recalls from saferproducts.gov.
type CPSCConnector struct {
	baseURL string
	client  httpDoer
	log     *logger.Logger
}

func NewCPSCConnector(baseURL string, client httpDoer, baseLog *logger.Logger) *CPSCConnector {
	if baseURL == "" {
		baseURL = defaultCPSCBaseURL
	}
	if client == nil {
		client = newFeedClient()
	}
	return &CPSCConnector{baseURL: baseURL, client: client, log: baseLog.With("connector", "CPSC")}
}

func (c *CPSCConnector) Agency() string { return "CPSC" }

func (c *CPSCConnector) Fetch(ctx context.Context, req FetchRequest) ([]RawRecord, error) {
	q := url.Values{"format": {"json"}}
	if !req.Since.IsZero() {
		q.Set("RecallDateStart", req.Since.Format("2006-01-02"))
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("fetch CPSC feed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &feedStatusError{Agency: c.Agency(), Status: resp.StatusCode}
	}

	var feed []cpscRecall
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decode CPSC feed: %w", err)
	}

	out := make([]RawRecord, 0, len(feed))
	for _, item := range feed {
		raw := RawRecord{
			RecallID:     item.RecallNumber,
			SourceAgency: c.Agency(),
			RecallDate:   item.RecallDate,
			Description:  item.Description,
			URL:          item.URL,
			Country:      "US",
			AgencySpecific: map[string]interface{}{
				"cpsc_recall_id": item.RecallID.String(),
				"title":          item.Title,
			},
		}
		if raw.RecallID == "" {
			raw.RecallID = item.RecallID.String()
		}
		if len(item.Products) > 0 {
			p := item.Products[0]
			raw.ProductName = p.Name
			raw.ModelNumber = p.Model
			raw.UPC = p.UPC
			raw.HazardCategory = p.Type
		}
		if raw.ProductName == "" {
			raw.ProductName = item.Title
		}
		if len(item.Hazards) > 0 {
			names := make([]string, 0, len(item.Hazards))
			for _, h := range item.Hazards {
				names = append(names, h.Name)
			}
			raw.Hazard = strings.Join(names, "; ")
		}
		if len(item.Remedies) > 0 {
			raw.Remedy = item.Remedies[0].Name
		}
		if len(item.Manufacturers) > 0 {
			raw.Manufacturer = item.Manufacturers[0].Name
		}
		out = append(out, raw)
		if req.Limit > 0 && len(out) >= req.Limit {
			break
		}
	}
	c.log.Info("Fetched CPSC feed", "records", len(out))
	return out, nil
}
