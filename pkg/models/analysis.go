package models

import "sort"

// PreviewWidth is the number of characters of a raw line kept in a
// MalformedLine preview.
const PreviewWidth = 80

// AnalysisResult holds the aggregate statistics of one analyzed log file.
type AnalysisResult struct {
	TotalRequests  int             `json:"total_requests" yaml:"total_requests"`
	StatusCounts   map[int]int     `json:"status_counts" yaml:"status_counts"`
	MalformedLines []MalformedLine `json:"malformed_lines" yaml:"malformed_lines"`
}

// MalformedLine records a line that could not be parsed.
// LineNumber is 1-based and counts every physical line of the file.
type MalformedLine struct {
	LineNumber int    `json:"line_number" yaml:"line_number"`
	Preview    string `json:"preview" yaml:"preview"`
	Error      string `json:"error" yaml:"error"`
}

// StatusCount pairs a status code with its number of occurrences.
type StatusCount struct {
	Code  int `json:"code" yaml:"code"`
	Count int `json:"count" yaml:"count"`
}

// NewAnalysisResult returns an empty result ready for accumulation.
func NewAnalysisResult() *AnalysisResult {
	return &AnalysisResult{
		StatusCounts:   make(map[int]int),
		MalformedLines: []MalformedLine{},
	}
}

// SortedStatusCounts returns the status counts ordered by ascending code.
func (r *AnalysisResult) SortedStatusCounts() []StatusCount {
	counts := make([]StatusCount, 0, len(r.StatusCounts))
	for code, n := range r.StatusCounts {
		counts = append(counts, StatusCount{Code: code, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		return counts[i].Code < counts[j].Code
	})
	return counts
}

// MalformedCount returns the number of lines that failed to parse.
func (r *AnalysisResult) MalformedCount() int {
	return len(r.MalformedLines)
}

// ClassCounts groups status counts by class ("2xx", "4xx", ...).
// Codes outside 100-599 are grouped under "other".
func (r *AnalysisResult) ClassCounts() map[string]int {
	classes := make(map[string]int)
	for code, n := range r.StatusCounts {
		classes[StatusClass(code)] += n
	}
	return classes
}

// StatusClass returns the class label of a status code.
func StatusClass(code int) string {
	switch {
	case code >= 100 && code < 200:
		return "1xx"
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "other"
	}
}

// AnalysisReport is the serialised form of an AnalysisResult. Status counts
// are an ordered list so output is deterministic.
type AnalysisReport struct {
	Filename       string          `json:"filename,omitempty" yaml:"filename,omitempty"`
	TotalRequests  int             `json:"total_requests" yaml:"total_requests"`
	StatusCounts   []StatusCount   `json:"status_counts" yaml:"status_counts"`
	MalformedLines []MalformedLine `json:"malformed_lines" yaml:"malformed_lines"`
}

// Report builds the serialisable report of r for the named file.
func (r *AnalysisResult) Report(filename string) AnalysisReport {
	malformed := r.MalformedLines
	if malformed == nil {
		malformed = []MalformedLine{}
	}
	return AnalysisReport{
		Filename:       filename,
		TotalRequests:  r.TotalRequests,
		StatusCounts:   r.SortedStatusCounts(),
		MalformedLines: malformed,
	}
}
