package ingest

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/babyshield/crownsafe-backend/internal/domain"
	"github.com/babyshield/crownsafe-backend/internal/platform/logger"
)

// RawRecord is the agency-shaped payload a connector hands to the normalizer.
// All fields are strings because that is what the upstream feeds actually
// send; the normalizer owns parsing and cleanup.
type RawRecord struct {
	RecallID     string `json:"recall_id"`
	SourceAgency string `json:"source_agency"`

	ProductName  string `json:"product_name"`
	Brand        string `json:"brand"`
	Manufacturer string `json:"manufacturer"`

	UPC           string `json:"upc"`
	EANCode       string `json:"ean_code"`
	GTIN          string `json:"gtin"`
	ArticleNumber string `json:"article_number"`
	LotNumber     string `json:"lot_number"`
	BatchNumber   string `json:"batch_number"`
	SerialNumber  string `json:"serial_number"`
	PartNumber    string `json:"part_number"`
	ModelNumber   string `json:"model_number"`

	RecallDate     string `json:"recall_date"`
	ExpiryDate     string `json:"expiry_date"`
	BestBeforeDate string `json:"best_before_date"`
	ProductionDate string `json:"production_date"`

	Hazard         string `json:"hazard"`
	HazardCategory string `json:"hazard_category"`
	Severity       string `json:"severity"`
	RiskCategory   string `json:"risk_category"`
	RecallClass    string `json:"recall_class"`

	Description     string   `json:"description"`
	RecallReason    string   `json:"recall_reason"`
	Remedy          string   `json:"remedy"`
	URL             string   `json:"url"`
	Country         string   `json:"country"`
	RegionsAffected []string `json:"regions_affected"`

	AgencySpecific map[string]interface{} `json:"agency_specific"`
}

// agencyDateLayouts maps agency codes to the date formats their feeds emit,
// tried in order. Agencies not listed fall back to the common set.
var agencyDateLayouts = map[string][]string{
	"CPSC":          {"January 2, 2006", "2006-01-02"},
	"FDA":           {"2006-01-02", "01/02/2006", "20060102"},
	"USDA_FSIS":     {"Jan 2, 2006", "2006-01-02"},
	"HEALTH_CANADA": {"2006-01-02", "2006-01-02T15:04:05Z"},
	"CFIA":          {"2006-01-02"},
	"UK_OPSS":       {"02/01/2006", "2 January 2006"},
	"EU_SAFETY_GATE": {
		"02/01/2006", "2006-01-02",
	},
	"ACCC": {"02/01/2006", "2 Jan 2006"},
}

var commonDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"01/02/2006",
	"January 2, 2006",
}

// Normalizer converts raw agency payloads into canonical recall rows.
// Normalization is deterministic: the same raw record always yields the same
// canonical record.
type Normalizer struct {
	log *logger.Logger
}

func NewNormalizer(baseLog *logger.Logger) *Normalizer {
	return &Normalizer{log: baseLog.With("component", "Normalizer")}
}

// Normalize builds the canonical record. Records missing a required field
// (recall id, agency, product name, or a parseable recall date) are rejected
// with an error; optional malformed dates are dropped, not fatal.
func (n *Normalizer) Normalize(raw RawRecord) (*domain.Recall, error) {
	agency := strings.ToUpper(strings.TrimSpace(raw.SourceAgency))
	recallID := strings.TrimSpace(raw.RecallID)
	productName := collapseSpaces(raw.ProductName)

	if recallID == "" {
		return nil, fmt.Errorf("missing recall_id")
	}
	if agency == "" {
		return nil, fmt.Errorf("missing source_agency")
	}
	if productName == "" {
		return nil, fmt.Errorf("missing product_name (recall_id=%s)", recallID)
	}

	recallDate, err := parseAgencyDate(agency, raw.RecallDate)
	if err != nil {
		return nil, fmt.Errorf("unparseable recall_date %q (recall_id=%s): %w", raw.RecallDate, recallID, err)
	}

	rec := &domain.Recall{
		RecallID:     recallID,
		SourceAgency: agency,
		ProductName:  productName,
		Brand:        collapseSpaces(raw.Brand),
		Manufacturer: collapseSpaces(raw.Manufacturer),

		UPC:           cleanBarcode(raw.UPC),
		EANCode:       cleanBarcode(raw.EANCode),
		GTIN:          cleanBarcode(raw.GTIN),
		ArticleNumber: cleanIdentifier(raw.ArticleNumber),
		LotNumber:     cleanIdentifier(raw.LotNumber),
		BatchNumber:   cleanIdentifier(raw.BatchNumber),
		SerialNumber:  cleanIdentifier(raw.SerialNumber),
		PartNumber:    cleanIdentifier(raw.PartNumber),
		ModelNumber:   cleanIdentifier(raw.ModelNumber),

		RecallDate:     recallDate,
		ExpiryDate:     n.optionalDate(agency, recallID, "expiry_date", raw.ExpiryDate),
		BestBeforeDate: n.optionalDate(agency, recallID, "best_before_date", raw.BestBeforeDate),
		ProductionDate: n.optionalDate(agency, recallID, "production_date", raw.ProductionDate),

		Hazard:         collapseSpaces(raw.Hazard),
		HazardCategory: strings.ToLower(collapseSpaces(raw.HazardCategory)),
		Severity:       normalizeSeverity(raw.Severity),
		RiskCategory:   normalizeRiskCategory(raw.RiskCategory),
		RecallClass:    strings.TrimSpace(raw.RecallClass),

		Description:  strings.TrimSpace(raw.Description),
		RecallReason: strings.TrimSpace(raw.RecallReason),
		Remedy:       strings.TrimSpace(raw.Remedy),
		URL:          strings.TrimSpace(raw.URL),
		Country:      strings.ToUpper(strings.TrimSpace(raw.Country)),
	}

	if len(raw.RegionsAffected) > 0 {
		if b, mErr := json.Marshal(raw.RegionsAffected); mErr == nil {
			rec.RegionsAffected = datatypes.JSON(b)
		}
	}
	if len(raw.AgencySpecific) > 0 {
		if b, mErr := json.Marshal(raw.AgencySpecific); mErr == nil {
			rec.AgencySpecificData = datatypes.JSON(b)
		}
	}

	if rec.ProductionDate != nil && rec.RecallDate.Before(*rec.ProductionDate) {
		n.log.Warn("Recall date precedes production date, keeping both",
			"agency", agency, "recall_id", recallID,
			"recall_date", rec.RecallDate, "production_date", *rec.ProductionDate)
	}

	rec.SearchKeywords = buildSearchKeywords(rec)
	return rec, nil
}

func (n *Normalizer) optionalDate(agency, recallID, field, value string) *time.Time {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	d, err := parseAgencyDate(agency, value)
	if err != nil {
		n.log.Warn("Dropping unparseable optional date",
			"agency", agency, "recall_id", recallID, "field", field, "value", value)
		return nil
	}
	return &d
}

func parseAgencyDate(agency, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	layouts := make([]string, 0, len(agencyDateLayouts[agency])+len(commonDateLayouts))
	layouts = append(layouts, agencyDateLayouts[agency]...)
	layouts = append(layouts, commonDateLayouts...)
	for _, layout := range layouts {
		if d, err := time.Parse(layout, value); err == nil {
			return d.UTC().Truncate(24 * time.Hour), nil
		}
	}
	return time.Time{}, fmt.Errorf("no layout matched")
}

// cleanBarcode strips separators and keeps digits only. A cleaned value with
// no digits left is treated as absent.
func cleanBarcode(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// cleanIdentifier uppercases and trims free-form identifiers like lot and
// model numbers so the same lot reported by two agencies compares equal.
func cleanIdentifier(s string) string {
	return strings.ToUpper(collapseSpaces(s))
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func normalizeSeverity(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "minor":
		return domain.SeverityLow
	case "high", "serious":
		return domain.SeverityHigh
	case "critical", "severe", "life-threatening":
		return domain.SeverityCritical
	default:
		return domain.SeverityMedium
	}
}

func normalizeRiskCategory(s string) string {
	s = strings.ToLower(collapseSpaces(s))
	if s == "" {
		return domain.DefaultRiskCategory
	}
	return s
}

// buildSearchKeywords produces the lowercased blob behind the trigram index
// and the in-memory fuzzy matcher. Order is fixed so rebuilding is idempotent.
func buildSearchKeywords(r *domain.Recall) string {
	parts := make([]string, 0, 12)
	for _, v := range []string{
		r.ProductName, r.Brand, r.Manufacturer,
		r.UPC, r.EANCode, r.GTIN,
		r.ModelNumber, r.LotNumber, r.BatchNumber,
		r.ArticleNumber, r.PartNumber, r.SerialNumber,
	} {
		if v != "" {
			parts = append(parts, strings.ToLower(v))
		}
	}
	return strings.Join(parts, " ")
}
