package property

// Fallback and default titles used when the model returns no usable citation data.
const (
	FallbackSourceTitle = "Property Finder"
	DefaultSourceTitle  = "Source"
)

// Details is the structured summary of one listing as returned by the model.
// All display fields are opaque strings; the model decides their formatting.
type Details struct {
	PropertyID         string             `json:"propertyId"`
	DLDPermitNumber    string             `json:"dldPermitNumber"`
	Title              string             `json:"title"`
	Price              string             `json:"price"`
	Location           string             `json:"location"`
	Bedrooms           string             `json:"bedrooms"`
	Bathrooms          string             `json:"bathrooms"`
	Area               string             `json:"area"`
	PropertyType       string             `json:"propertyType"`
	Description        string             `json:"description"`
	Amenities          []string           `json:"amenities"`
	InvestmentAnalysis InvestmentAnalysis `json:"investmentAnalysis"`
	Sources            []Source           `json:"sources"`
}

// InvestmentAnalysis value object. Score is 0-100 by convention only.
type InvestmentAnalysis struct {
	ROIEstimate      string  `json:"roiEstimate"`
	MarketComparison string  `json:"marketComparison"`
	Score            float64 `json:"score"`
}

// Source is one web page the provider consulted while grounding its answer.
type Source struct {
	Title string `json:"title"`
	URI   string `json:"uri"`
}

// Clone returns a deep copy so callers never share slices with a stored value.
func (d Details) Clone() Details {
	out := d
	if d.Amenities != nil {
		out.Amenities = append([]string(nil), d.Amenities...)
	}
	if d.Sources != nil {
		out.Sources = append([]Source(nil), d.Sources...)
	}
	return out
}
