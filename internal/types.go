package internal

type SourceKind string

const (
	SourceCSV   SourceKind = "csv"
	SourceHTML  SourceKind = "html"
	SourceXLSX  SourceKind = "xlsx"
	SourceEmail SourceKind = "eml"
)

type SourceStatus string

const (
	StatusMerged  SourceStatus = "merged"
	StatusSkipped SourceStatus = "skipped"
	StatusFailed  SourceStatus = "failed"
)

// RowIssue is a row-level shape problem. The row is still merged with the
// cells it has.
type RowIssue struct {
	Grid    string
	RowNo   int
	Cells   int
	Columns int
	Message string
}

type SourceResult struct {
	Path     string
	Kind     SourceKind
	Status   SourceStatus
	Hash     string
	Grids    int
	Rows     int
	Inserted int
	Merged   int
	Issues   []RowIssue
	Error    string
}

func (r *SourceResult) Add(other SourceResult) {
	r.Grids += other.Grids
	r.Rows += other.Rows
	r.Inserted += other.Inserted
	r.Merged += other.Merged
	r.Issues = append(r.Issues, other.Issues...)
}
