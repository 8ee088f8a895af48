package models

import "time"

type LinkEntry struct {
	Label     string `json:"label"`
	Reference string `json:"reference"`
}

type FetchStatus string

const (
	StatusOK       FetchStatus = "ok"
	StatusNotFound FetchStatus = "not_found"
	StatusCorrupt  FetchStatus = "corrupt"
)

type FetchedDocument struct {
	Reference string      `json:"reference"`
	LocalPath string      `json:"local_path"`
	Status    FetchStatus `json:"status"`
}

// Field is a cell value recovered from a source table. Known is false
// when the cell was empty or failed validation; consumers must branch
// on it instead of trusting Value.
type Field struct {
	Value string `json:"value"`
	Known bool   `json:"known"`
}

func KnownField(value string) Field {
	return Field{Value: value, Known: true}
}

func UnknownField() Field {
	return Field{}
}

type Confidence string

const (
	ConfidenceKnown   Confidence = "known"
	ConfidenceUnknown Confidence = "unknown"
)

// RawActivityRecord is one row extracted from one document table.
// Rows are never dropped by the parser: a row that could not be fully
// recovered is emitted with ConfidenceUnknown and the offending fields
// left unknown.
type RawActivityRecord struct {
	StudentID      Field      `json:"student_id"`
	StudentName    Field      `json:"student_name"`
	ClassCode      Field      `json:"class_code"`
	ActivityName   string     `json:"activity_name"`
	Score          float64    `json:"score"`
	SourceDocument string     `json:"source_document"`
	Confidence     Confidence `json:"confidence"`
}

// StudentRecord is the aggregation unit, unique per student id.
// TotalScore is always the exact sum over Activities; Activities keep
// first-seen order.
type StudentRecord struct {
	StudentID  string              `json:"student_id"`
	Name       string              `json:"name"`
	ClassCode  string              `json:"class_code"`
	TotalScore float64             `json:"total_score"`
	Activities []RawActivityRecord `json:"activities"`
}

type MatchKind string

const (
	MatchExact MatchKind = "exact"
	MatchFuzzy MatchKind = "fuzzy"
)

type SearchResult struct {
	Query   string          `json:"query"`
	Kind    MatchKind       `json:"kind"`
	Records []StudentRecord `json:"records"`
}

type Stats struct {
	TotalStudents   int `json:"total_students"`
	TotalActivities int `json:"total_activities"`
}

// FetchLedgerEntry is one row of the append-only fetch ledger.
type FetchLedgerEntry struct {
	ID        int
	Reference string
	LocalPath string
	Checksum  string
	Status    FetchStatus
	Attempts  int
	Detail    string
	CreatedAt time.Time
}

// SearchLogEntry records one served query for analytics.
type SearchLogEntry struct {
	ID          string
	Query       string
	SearchType  string
	ResultCount int
	LatencyMS   int
	CreatedAt   time.Time
}
