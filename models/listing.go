package models

import "time"

// Listing is one card scraped from a results page. Only URL identifies it.
type Listing struct {
	Source   string
	URL      string
	Price    string
	Address  string
	Pictures []string
}

// SeenEntry is the persisted record of a listing URL the operator was told about.
type SeenEntry struct {
	ID        int64
	URL       string
	FirstSeen time.Time
}

// TimestampLayout is how first-seen times are stored: sortable local time.
const TimestampLayout = "2006-01-02 15:04:05"

// SourceResult is what one source produced in a run.
type SourceResult struct {
	Source   string
	Pages    int
	Listings []Listing
}
