package property

// WithSources attaches normalized citations to d and returns it.
// Citations keep the order the model returned them in; an empty title becomes
// DefaultSourceTitle. Without citations the listing URL itself is the only source.
func WithSources(d Details, url string, citations []Source) Details {
	if len(citations) == 0 {
		d.Sources = []Source{{Title: FallbackSourceTitle, URI: url}}
		return d
	}
	d.Sources = make([]Source, 0, len(citations))
	for _, c := range citations {
		title := c.Title
		if title == "" {
			title = DefaultSourceTitle
		}
		d.Sources = append(d.Sources, Source{Title: title, URI: c.URI})
	}
	return d
}

// Build decodes payload and attaches sources. Any failure is returned as a
// generic *ExtractionError.
func Build(payload []byte, url string, citations []Source) (Details, error) {
	d, err := Decode(payload)
	if err != nil {
		return Details{}, NewExtractionError(KindGeneric, err)
	}
	return WithSources(d, url, citations), nil
}
