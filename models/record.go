package models

// Record is one row of the savings table after extraction.
//
// SavedAmount is always defined: 0 when SavedText could not be parsed.
// DetailData is nil (the absence marker) unless Link matched the enrichment
// domain filter and the detail page produced at least one label/value pair.
type Record struct {
	Agency      string  `json:"agency"`
	Description string  `json:"description"`
	UploadedOn  string  `json:"uploaded_on"`
	Link        string  `json:"link"`
	SavedText   string  `json:"saved_text"`
	SavedAmount float64 `json:"saved_amount"`
	DetailData  *string `json:"detail_data"`
}

// HasDetail reports whether the record carries enrichment data.
func (r Record) HasDetail() bool {
	return r.DetailData != nil
}

// RawCell is a single table cell as read from the rendered page.
type RawCell struct {
	Text string `json:"text"`
	// Href is the first anchor target inside the cell, resolved against the
	// page URL. Empty when the cell has no anchor.
	Href string `json:"href,omitempty"`
}

// RawRow is an ordered list of cells from one table row.
type RawRow []RawCell
