package domain

import "encoding/json"

// Chunk is one bounded slice of a source document.
type Chunk struct {
	// Index is 1-based and dense within one split.
	Index int
	// Total is the number of chunks produced by the split.
	Total int
	// Text is the trimmed chunk content.
	Text string
	// Start and End are rune offsets of the untrimmed window in the source text.
	Start int
	End   int
}

// Analysis is the final artifact of one pipeline run over a document.
type Analysis struct {
	Summary string   `json:"summary"`
	Topics  []string `json:"topics"`
}

// Empty reports whether the analysis carries no usable summary.
func (a Analysis) Empty() bool {
	return a.Summary == ""
}

// TopicsJSON returns the topics as a JSON array, never null.
func (a Analysis) TopicsJSON() string {
	topics := a.Topics
	if topics == nil {
		topics = []string{}
	}

	b, err := json.Marshal(topics)
	if err != nil {
		return "[]"
	}

	return string(b)
}

func (a Analysis) MarshalJSON() ([]byte, error) {
	type plain Analysis

	if a.Topics == nil {
		a.Topics = []string{}
	}

	return json.Marshal(plain(a))
}

// MeetingListing is one row of the National Assembly meeting listing.
type MeetingListing struct {
	ConferNum   string
	Title       string
	ClassName   string
	DaeNum      string
	ConfDate    string
	SubName     string
	VodLinkURL  string
	ConfLinkURL string
	PDFLinkURL  string
	ConfID      string
}

type Meeting struct {
	ID int64
	MeetingListing
	Summary string
	Topics  []string
}

// BillListing is one row of the National Assembly bill listing.
type BillListing struct {
	BillID       string
	BillNo       string
	BillName     string
	ProposeDate  string
	Proposer     string
	ProposerKind string
	Stage        string
	LinkURL      string
}

type BillAnalysis struct {
	Background []string `json:"background"`
	Content    []string `json:"content"`
	Effect     []string `json:"effect"`
	Summary    string   `json:"summary"`
	Highlight  string   `json:"highlight"`
	Tag        string   `json:"tag"`
}

type Bill struct {
	ID int64
	BillListing
	Analysis BillAnalysis
}
