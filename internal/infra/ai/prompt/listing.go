package prompt

import (
	"fmt"
	"strings"
)

// Kind is the JSON type of a schema field.
type Kind int

const (
	String Kind = iota
	Number
	StringList
	Object
)

// Field describes one key of the expected JSON object. Every field is required.
type Field struct {
	Name        string
	Kind        Kind
	Description string
	Children    []Field
}

// Fields is the output schema shared by every provider adapter.
var Fields = []Field{
	{Name: "propertyId", Kind: String, Description: "The unique reference number or property ID from the listing"},
	{Name: "dldPermitNumber", Kind: String, Description: "The official DLD (Dubai Land Department) Permit Number or RERA permit number"},
	{Name: "title", Kind: String, Description: "Full property title"},
	{Name: "price", Kind: String, Description: "Price in AED (e.g., AED 45,000,000)"},
	{Name: "location", Kind: String, Description: "Detailed location/address"},
	{Name: "bedrooms", Kind: String, Description: "Number of bedrooms"},
	{Name: "bathrooms", Kind: String, Description: "Number of bathrooms"},
	{Name: "area", Kind: String, Description: "Total area in sq ft"},
	{Name: "propertyType", Kind: String, Description: "e.g., Villa, Apartment"},
	{Name: "description", Kind: String, Description: "Short 2-3 sentence professional summary of the listing"},
	{Name: "amenities", Kind: StringList, Description: "List of top 5 amenities"},
	{Name: "investmentAnalysis", Kind: Object, Description: "Investment view of the listing", Children: []Field{
		{Name: "roiEstimate", Kind: String, Description: "Estimated annual rental yield or capital appreciation for this specific area (Palm Jumeirah)"},
		{Name: "marketComparison", Kind: String, Description: "Is it priced above or below market average for this unit type?"},
		{Name: "score", Kind: Number, Description: "Investment score, typically 0-100"},
	}},
}

// Names returns the field names of fs in order.
func Names(fs []Field) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Name
	}
	return out
}

// SystemPrompt tells the model to answer with a single JSON object.
func SystemPrompt() string {
	return `You are a Dubai real estate analyst. You must produce one valid JSON object only (no markdown, no commentary) that matches the requested structure. Do not include code fences. Every key is required; use an empty string when a value cannot be found.`
}

// Instruction builds the user message for one listing URL.
func Instruction(url string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following property listing URL: %s\n\n", url)
	b.WriteString("Using Google Search, find and extract all available specific property details for this listing from Property Finder or similar real estate portals.\n")
	b.WriteString("Pay special attention to regulatory details like the DLD Permit Number (often listed as 'Permit Number' or 'DLD Permit').\n\n")
	b.WriteString("Expected JSON Structure:\n")
	writeFields(&b, Fields, "  ")
	b.WriteString("\nInclude only the JSON in your response. Ensure the investment analysis is professional and based on typical market data for the region if specific listing data is missing.\n")
	return b.String()
}

func writeFields(b *strings.Builder, fs []Field, indent string) {
	for _, f := range fs {
		switch f.Kind {
		case Object:
			fmt.Fprintf(b, "%s- %s (object): %s\n", indent, f.Name, f.Description)
			writeFields(b, f.Children, indent+"  ")
		case StringList:
			fmt.Fprintf(b, "%s- %s (array of strings): %s\n", indent, f.Name, f.Description)
		case Number:
			fmt.Fprintf(b, "%s- %s (number): %s\n", indent, f.Name, f.Description)
		default:
			fmt.Fprintf(b, "%s- %s (string): %s\n", indent, f.Name, f.Description)
		}
	}
}
