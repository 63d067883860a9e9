package export

// Table defines tabular export content such as a tutor's session schedule.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}
