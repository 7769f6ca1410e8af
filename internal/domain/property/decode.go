package property

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMissingField is wrapped when a required field is absent from the model payload.
var ErrMissingField = errors.New("missing required field")

// wire mirrors Details with pointers so absent keys can be told apart from empty values.
type wire struct {
	PropertyID         *string       `json:"propertyId"`
	DLDPermitNumber    *string       `json:"dldPermitNumber"`
	Title              *string       `json:"title"`
	Price              *string       `json:"price"`
	Location           *string       `json:"location"`
	Bedrooms           *string       `json:"bedrooms"`
	Bathrooms          *string       `json:"bathrooms"`
	Area               *string       `json:"area"`
	PropertyType       *string       `json:"propertyType"`
	Description        *string       `json:"description"`
	Amenities          *[]string     `json:"amenities"`
	InvestmentAnalysis *wireAnalysis `json:"investmentAnalysis"`
}

type wireAnalysis struct {
	ROIEstimate      *string  `json:"roiEstimate"`
	MarketComparison *string  `json:"marketComparison"`
	Score            *float64 `json:"score"`
}

// Decode parses a model payload and checks every required field is present.
// Sources are not part of the payload; see WithSources.
func Decode(payload []byte) (Details, error) {
	body := stripFences(payload)
	if len(body) == 0 {
		return Details{}, errors.New("empty model response")
	}
	var w wire
	if err := json.Unmarshal(body, &w); err != nil {
		return Details{}, fmt.Errorf("decode model response: %w", err)
	}

	var missing []string
	str := func(name string, v *string) string {
		if v == nil {
			missing = append(missing, name)
			return ""
		}
		return *v
	}

	d := Details{
		PropertyID:      str("propertyId", w.PropertyID),
		DLDPermitNumber: str("dldPermitNumber", w.DLDPermitNumber),
		Title:           str("title", w.Title),
		Price:           str("price", w.Price),
		Location:        str("location", w.Location),
		Bedrooms:        str("bedrooms", w.Bedrooms),
		Bathrooms:       str("bathrooms", w.Bathrooms),
		Area:            str("area", w.Area),
		PropertyType:    str("propertyType", w.PropertyType),
		Description:     str("description", w.Description),
	}
	if w.Amenities == nil || *w.Amenities == nil {
		missing = append(missing, "amenities")
	} else {
		d.Amenities = append([]string{}, (*w.Amenities)...)
	}
	if ia := w.InvestmentAnalysis; ia == nil {
		missing = append(missing, "investmentAnalysis")
	} else {
		d.InvestmentAnalysis.ROIEstimate = str("investmentAnalysis.roiEstimate", ia.ROIEstimate)
		d.InvestmentAnalysis.MarketComparison = str("investmentAnalysis.marketComparison", ia.MarketComparison)
		if ia.Score == nil {
			missing = append(missing, "investmentAnalysis.score")
		} else {
			d.InvestmentAnalysis.Score = *ia.Score
		}
	}

	if len(missing) > 0 {
		return Details{}, fmt.Errorf("%w: %v", ErrMissingField, missing)
	}
	return d, nil
}

// stripFences drops a surrounding ```json ... ``` block some models emit anyway.
func stripFences(b []byte) []byte {
	b = bytes.TrimSpace(b)
	if !bytes.HasPrefix(b, []byte("```")) {
		return b
	}
	b = bytes.TrimPrefix(b, []byte("```"))
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		b = b[i+1:]
	} else {
		b = bytes.TrimPrefix(b, []byte("json"))
	}
	b = bytes.TrimSuffix(bytes.TrimSpace(b), []byte("```"))
	return bytes.TrimSpace(b)
}
