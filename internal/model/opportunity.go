package model

// Opportunity is a volunteer point of interest. Immutable once loaded.
type Opportunity struct {
	ID      string  `json:"id"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Name    string  `json:"name"`
	Link    string  `json:"link"`
	Country string  `json:"country"`
}
