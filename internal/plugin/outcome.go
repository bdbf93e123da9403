package plugin

// Status is the result of processing one asset.
type Status string

// Asset statuses.
const (
	StatusDeduped   Status = "deduped"
	StatusUnchanged Status = "unchanged"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
)

// Outcome reports what happened to one asset. Skipped and failed assets
// are left as they were.
type Outcome struct {
	Asset     string
	Chunk     string
	Status    Status
	Reason    string
	Ancestors []string
	Warnings  []string

	BytesBefore int
	BytesAfter  int

	Err error
}

// Saved returns the number of bytes removed from the asset.
func (o Outcome) Saved() int {
	return o.BytesBefore - o.BytesAfter
}

// Summary aggregates the outcomes of one run.
type Summary struct {
	Assets    int
	Deduped   int
	Unchanged int
	Skipped   int
	Failed    int
	Warnings  int

	BytesBefore int
	BytesAfter  int
}

// Saved returns the bytes removed across all assets.
func (s Summary) Saved() int {
	return s.BytesBefore - s.BytesAfter
}

// Summarize counts outcomes by status.
func Summarize(outcomes []Outcome) Summary {
	var s Summary
	for _, o := range outcomes {
		s.Assets++
		s.Warnings += len(o.Warnings)
		s.BytesBefore += o.BytesBefore
		s.BytesAfter += o.BytesAfter
		switch o.Status {
		case StatusDeduped:
			s.Deduped++
		case StatusUnchanged:
			s.Unchanged++
		case StatusSkipped:
			s.Skipped++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}
