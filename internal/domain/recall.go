package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"

	// DefaultRiskCategory is stored when a source feed carries no risk
	// classification, so severity/risk filters never have to deal with NULL.
	DefaultRiskCategory = "general"
)

// Recall is the canonical recall record every agency feed is normalized into.
// Rows are written only by the ingestion pipeline; the API surface reads them.
type Recall struct {
	ID           uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	RecallID     string    `gorm:"column:recall_id;not null;uniqueIndex:idx_recall_agency_external" json:"recall_id"`
	SourceAgency string    `gorm:"column:source_agency;not null;index;uniqueIndex:idx_recall_agency_external" json:"source_agency"`

	ProductName  string `gorm:"column:product_name;not null" json:"product_name"`
	Brand        string `gorm:"column:brand" json:"brand,omitempty"`
	Manufacturer string `gorm:"column:manufacturer" json:"manufacturer,omitempty"`

	UPC           string `gorm:"column:upc;index" json:"upc,omitempty"`
	EANCode       string `gorm:"column:ean_code" json:"ean_code,omitempty"`
	GTIN          string `gorm:"column:gtin" json:"gtin,omitempty"`
	ArticleNumber string `gorm:"column:article_number" json:"article_number,omitempty"`
	LotNumber     string `gorm:"column:lot_number" json:"lot_number,omitempty"`
	BatchNumber   string `gorm:"column:batch_number" json:"batch_number,omitempty"`
	SerialNumber  string `gorm:"column:serial_number" json:"serial_number,omitempty"`
	PartNumber    string `gorm:"column:part_number" json:"part_number,omitempty"`
	ModelNumber   string `gorm:"column:model_number;index" json:"model_number,omitempty"`

	RecallDate     time.Time  `gorm:"column:recall_date;not null;index" json:"recall_date"`
	ExpiryDate     *time.Time `gorm:"column:expiry_date" json:"expiry_date,omitempty"`
	BestBeforeDate *time.Time `gorm:"column:best_before_date" json:"best_before_date,omitempty"`
	ProductionDate *time.Time `gorm:"column:production_date" json:"production_date,omitempty"`

	Hazard         string `gorm:"column:hazard" json:"hazard,omitempty"`
	HazardCategory string `gorm:"column:hazard_category;index" json:"hazard_category,omitempty"`
	Severity       string `gorm:"column:severity;not null;default:'medium';index" json:"severity"`
	RiskCategory   string `gorm:"column:risk_category;not null;default:'general';index" json:"risk_category"`
	RecallClass    string `gorm:"column:recall_class" json:"recall_class,omitempty"`

	Description     string         `gorm:"column:description;type:text" json:"description,omitempty"`
	RecallReason    string         `gorm:"column:recall_reason;type:text" json:"recall_reason,omitempty"`
	Remedy          string         `gorm:"column:remedy;type:text" json:"remedy,omitempty"`
	URL             string         `gorm:"column:url" json:"url,omitempty"`
	Country         string         `gorm:"column:country" json:"country,omitempty"`
	RegionsAffected datatypes.JSON `gorm:"column:regions_affected;type:jsonb" json:"regions_affected,omitempty"`

	// SearchKeywords is a denormalized lowercased blob (name + brand +
	// manufacturer + identifiers) feeding the trigram index.
	SearchKeywords string `gorm:"column:search_keywords;type:text" json:"-"`

	AgencySpecificData datatypes.JSON `gorm:"column:agency_specific_data;type:jsonb" json:"agency_specific_data,omitempty"`

	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Recall) TableName() string { return "recall" }

// IdentifierCount reports how many identifier fields are populated. The dedup
// engine uses it to pick the richest record in a cluster as primary.
func (r *Recall) IdentifierCount() int {
	n := 0
	for _, v := range []string{
		r.UPC, r.EANCode, r.GTIN, r.ArticleNumber,
		r.LotNumber, r.BatchNumber, r.SerialNumber,
		r.PartNumber, r.ModelNumber,
	} {
		if v != "" {
			n++
		}
	}
	return n
}

// RecallClusterMember links a recall row to its deduplication cluster.
// Membership is symmetric and transitive within a run; exactly one member per
// cluster carries IsPrimary.
type RecallClusterMember struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	RecallID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex" json:"recall_id"`
	Recall    *Recall   `gorm:"constraint:OnDelete:CASCADE;foreignKey:RecallID;references:ID" json:"recall,omitempty"`
	ClusterID uuid.UUID `gorm:"type:uuid;not null;index" json:"cluster_id"`
	IsPrimary bool      `gorm:"column:is_primary;not null;default:false" json:"is_primary"`

	CreatedAt time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (RecallClusterMember) TableName() string { return "recall_cluster_member" }
