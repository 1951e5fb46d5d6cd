package domain

// Agency describes one regulatory body whose recall feed can be ingested.
// The catalog is static; connector coverage is a subset of it.
type Agency struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Country string `json:"country"`
	Region  string `json:"region"`
}

// Agencies is the catalog of regulatory bodies the aggregator knows about.
var Agencies = []Agency{
	{Code: "CPSC", Name: "U.S. Consumer Product Safety Commission", Country: "US", Region: "North America"},
	{Code: "FDA", Name: "U.S. Food and Drug Administration", Country: "US", Region: "North America"},
	{Code: "USDA_FSIS", Name: "USDA Food Safety and Inspection Service", Country: "US", Region: "North America"},
	{Code: "NHTSA", Name: "National Highway Traffic Safety Administration", Country: "US", Region: "North America"},
	{Code: "HEALTH_CANADA", Name: "Health Canada", Country: "CA", Region: "North America"},
	{Code: "CFIA", Name: "Canadian Food Inspection Agency", Country: "CA", Region: "North America"},
	{Code: "TRANSPORT_CANADA", Name: "Transport Canada", Country: "CA", Region: "North America"},
	{Code: "PROFECO", Name: "Procuraduría Federal del Consumidor", Country: "MX", Region: "North America"},
	{Code: "UK_OPSS", Name: "Office for Product Safety and Standards", Country: "GB", Region: "Europe"},
	{Code: "UK_FSA", Name: "UK Food Standards Agency", Country: "GB", Region: "Europe"},
	{Code: "UK_MHRA", Name: "Medicines and Healthcare products Regulatory Agency", Country: "GB", Region: "Europe"},
	{Code: "UK_DVSA", Name: "Driver and Vehicle Standards Agency", Country: "GB", Region: "Europe"},
	{Code: "EU_SAFETY_GATE", Name: "EU Safety Gate (RAPEX)", Country: "EU", Region: "Europe"},
	{Code: "EU_RASFF", Name: "EU Rapid Alert System for Food and Feed", Country: "EU", Region: "Europe"},
	{Code: "BAUA", Name: "Bundesanstalt für Arbeitsschutz und Arbeitsmedizin", Country: "DE", Region: "Europe"},
	{Code: "BVL", Name: "Bundesamt für Verbraucherschutz und Lebensmittelsicherheit", Country: "DE", Region: "Europe"},
	{Code: "DGCCRF", Name: "Direction générale de la concurrence (RappelConso)", Country: "FR", Region: "Europe"},
	{Code: "MISE", Name: "Ministero delle Imprese e del Made in Italy", Country: "IT", Region: "Europe"},
	{Code: "AECOSAN", Name: "Agencia Española de Seguridad Alimentaria", Country: "ES", Region: "Europe"},
	{Code: "NVWA", Name: "Nederlandse Voedsel- en Warenautoriteit", Country: "NL", Region: "Europe"},
	{Code: "FAVV", Name: "Federaal Agentschap voor de veiligheid van de voedselketen", Country: "BE", Region: "Europe"},
	{Code: "SIK", Name: "Säkerhets- och kemikalieverket", Country: "SE", Region: "Europe"},
	{Code: "TUKES", Name: "Finnish Safety and Chemicals Agency", Country: "FI", Region: "Europe"},
	{Code: "DVFA", Name: "Danish Veterinary and Food Administration", Country: "DK", Region: "Europe"},
	{Code: "FSAI", Name: "Food Safety Authority of Ireland", Country: "IE", Region: "Europe"},
	{Code: "CCPC", Name: "Competition and Consumer Protection Commission", Country: "IE", Region: "Europe"},
	{Code: "UOKIK", Name: "Urząd Ochrony Konkurencji i Konsumentów", Country: "PL", Region: "Europe"},
	{Code: "ACCC", Name: "Australian Competition and Consumer Commission", Country: "AU", Region: "Oceania"},
	{Code: "FSANZ", Name: "Food Standards Australia New Zealand", Country: "AU", Region: "Oceania"},
	{Code: "NZ_COMMERCE", Name: "New Zealand Commerce Commission", Country: "NZ", Region: "Oceania"},
	{Code: "MPI_NZ", Name: "Ministry for Primary Industries", Country: "NZ", Region: "Oceania"},
	{Code: "CAA_JP", Name: "Consumer Affairs Agency", Country: "JP", Region: "Asia"},
	{Code: "METI", Name: "Ministry of Economy, Trade and Industry", Country: "JP", Region: "Asia"},
	{Code: "KATS", Name: "Korean Agency for Technology and Standards", Country: "KR", Region: "Asia"},
	{Code: "MFDS", Name: "Ministry of Food and Drug Safety", Country: "KR", Region: "Asia"},
	{Code: "SAMR", Name: "State Administration for Market Regulation", Country: "CN", Region: "Asia"},
	{Code: "CASE_SG", Name: "Consumers Association of Singapore", Country: "SG", Region: "Asia"},
	{Code: "BIS_IN", Name: "Bureau of Indian Standards", Country: "IN", Region: "Asia"},
	{Code: "ANVISA", Name: "Agência Nacional de Vigilância Sanitária", Country: "BR", Region: "South America"},
}

// AgencyByCode returns the catalog entry for code, or nil when unknown.
func AgencyByCode(code string) *Agency {
	for i := range Agencies {
		if Agencies[i].Code == code {
			return &Agencies[i]
		}
	}
	return nil
}

// KnownAgency reports whether code is in the catalog.
func KnownAgency(code string) bool { return AgencyByCode(code) != nil }
