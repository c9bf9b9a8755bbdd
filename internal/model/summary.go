package model

// Slice is one pie chart slice: a detected label and its count.
type Slice struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// Series is the detection trend line: one value per label (day).
type Series struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

// Summary carries the chart data of the stats endpoint.
type Summary struct {
	Pie  []Slice `json:"pie_data"`
	Line Series  `json:"line_data"`
}

// Total returns the sum of all pie slices.
func (s Summary) Total() float64 {
	var t float64
	for _, sl := range s.Pie {
		t += sl.Value
	}
	return t
}
