package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/nhien36hk/StudentActivityTracker/internal/metrics"
	"github.com/nhien36hk/StudentActivityTracker/internal/storage/models"
	"github.com/nhien36hk/StudentActivityTracker/pkg/logger"
)

// ErrMalformedDocument means the file could not be opened as a document
// container at all. Malformed content inside a readable container never
// raises; it degrades to unknown fields.
var ErrMalformedDocument = errors.New("malformed document container")

type Config struct {
	IDPattern      string
	ClassPattern   string
	NameKeywords   []string
	IDKeywords     []string
	ClassKeywords  []string
	ScoreKeywords  []string
	OrdinalKeyword string
}

func DefaultConfig() Config {
	return Config{
		IDPattern:      `^\d{8,}$`,
		ClassPattern:   `^\d{2}\p{L}+\d*$`,
		NameKeywords:   []string{"họ", "tên"},
		IDKeywords:     []string{"mssv", "mã sv", "mã sinh viên"},
		ClassKeywords:  []string{"lớp", "trường"},
		ScoreKeywords:  []string{"nrl", "điểm"},
		OrdinalKeyword: "stt",
	}
}

type Parser struct {
	cfg     Config
	idRe    *regexp.Regexp
	classRe *regexp.Regexp
	rules   []swapRule
}

func New(cfg Config) (*Parser, error) {
	def := DefaultConfig()
	if cfg.IDPattern == "" {
		cfg.IDPattern = def.IDPattern
	}
	if cfg.ClassPattern == "" {
		cfg.ClassPattern = def.ClassPattern
	}
	if len(cfg.NameKeywords) == 0 {
		cfg.NameKeywords = def.NameKeywords
	}
	if len(cfg.IDKeywords) == 0 {
		cfg.IDKeywords = def.IDKeywords
	}
	if len(cfg.ClassKeywords) == 0 {
		cfg.ClassKeywords = def.ClassKeywords
	}
	if len(cfg.ScoreKeywords) == 0 {
		cfg.ScoreKeywords = def.ScoreKeywords
	}
	if cfg.OrdinalKeyword == "" {
		cfg.OrdinalKeyword = def.OrdinalKeyword
	}

	idRe, err := regexp.Compile(cfg.IDPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid id pattern: %w", err)
	}
	classRe, err := regexp.Compile(cfg.ClassPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid class pattern: %w", err)
	}

	p := &Parser{cfg: cfg, idRe: idRe, classRe: classRe}
	p.rules = p.swapRules()
	return p, nil
}

// Parse extracts raw activity records from a fetched document. A
// readable container with no student table yields zero records and no
// error; only an unreadable container is ErrMalformedDocument.
func (p *Parser) Parse(doc models.FetchedDocument, activityName string) ([]models.RawActivityRecord, error) {
	tables, err := readTables(doc.LocalPath)
	if err != nil {
		return nil, err
	}

	table := p.findStudentTable(tables)
	if table == nil {
		logger.Debug("No student table in document", zap.String("reference", doc.Reference))
		return nil, nil
	}

	cols := p.detectColumns(table[0])
	records := p.parseRows(table[1:], cols, activityName, doc.Reference)

	for _, r := range records {
		metrics.RecordsParsed.WithLabelValues(string(r.Confidence)).Inc()
	}

	logger.Info("Document parsed",
		zap.String("reference", doc.Reference),
		zap.String("activity", activityName),
		zap.Int("records", len(records)),
	)

	return records, nil
}

// findStudentTable scores each table's header row by keyword hits and
// returns the best one. A usable table needs a name column plus either
// an id or a score column.
func (p *Parser) findStudentTable(tables []docxTable) docxTable {
	var best docxTable
	bestScore := 0

	for _, table := range tables {
		if len(table) < 2 {
			continue
		}

		header := strings.ToLower(strings.Join(table[0], " "))

		hasName := containsAny(header, p.cfg.NameKeywords)
		hasID := containsAny(header, p.cfg.IDKeywords)
		hasScore := containsAny(header, p.cfg.ScoreKeywords)
		hasOrdinal := strings.Contains(header, p.cfg.OrdinalKeyword)

		score := 0
		if hasName {
			score += 3
		}
		if hasID {
			score += 2
		}
		if hasScore {
			score += 2
		}
		if hasOrdinal {
			score++
		}

		if hasName && (hasID || hasScore) && score > bestScore {
			bestScore = score
			best = table
		}
	}

	return best
}

type columnIndices struct {
	ordinal int
	name    int
	id      int
	class   int
	score   int
}

func (p *Parser) detectColumns(header []string) columnIndices {
	cols := columnIndices{ordinal: -1, name: -1, id: -1, class: -1, score: -1}

	for idx, cell := range header {
		text := strings.ToLower(strings.TrimSpace(cell))
		switch {
		case strings.Contains(text, p.cfg.OrdinalKeyword):
			if cols.ordinal < 0 {
				cols.ordinal = idx
			}
		case containsAny(text, p.cfg.IDKeywords):
			if cols.id < 0 {
				cols.id = idx
			}
		case containsAll(text, p.cfg.NameKeywords):
			if cols.name < 0 {
				cols.name = idx
			}
		case containsAny(text, p.cfg.ClassKeywords):
			if cols.class < 0 {
				cols.class = idx
			}
		case containsAny(text, p.cfg.ScoreKeywords):
			if cols.score < 0 {
				cols.score = idx
			}
		}
	}

	return cols
}

func (p *Parser) parseRows(rows [][]string, cols columnIndices, activityName, source string) []models.RawActivityRecord {
	var records []models.RawActivityRecord

	for _, row := range rows {
		name := cellAt(row, cols.name)
		rawID := cellAt(row, cols.id)
		rawClass := cellAt(row, cols.class)

		scoreText := "0"
		if cols.score >= 0 {
			scoreText = cellAt(row, cols.score)
		}

		// Swap detection runs per row: the id/class columns can be
		// inconsistently ordered within a single table.
		id, class := p.applySwapRules(rawID, rawClass)

		if id == "" && name == "" {
			continue
		}

		idField := models.UnknownField()
		if clean := cleanID(id); p.idRe.MatchString(clean) {
			idField = models.KnownField(clean)
		}

		nameField := models.UnknownField()
		if name != "" {
			nameField = models.KnownField(name)
		}

		classField := models.UnknownField()
		if class != "" {
			classField = models.KnownField(class)
		}

		score, scoreOK := parseScore(scoreText)

		confidence := models.ConfidenceKnown
		if !idField.Known || !scoreOK {
			confidence = models.ConfidenceUnknown
		}

		records = append(records, models.RawActivityRecord{
			StudentID:      idField,
			StudentName:    nameField,
			ClassCode:      classField,
			ActivityName:   activityName,
			Score:          score,
			SourceDocument: source,
			Confidence:     confidence,
		})
	}

	return records
}

// swapRule is one (predicate, action) pair of the column-repair rule
// engine. Rules are evaluated in order; the first match wins.
type swapRule struct {
	name    string
	applies func(id, class string) bool
	apply   func(id, class string) (string, string)
	swapped bool
}

func (p *Parser) swapRules() []swapRule {
	return []swapRule{
		{
			name:    "swap-both",
			applies: func(id, class string) bool { return p.isClassCode(id) && p.isStudentID(class) },
			apply:   func(id, class string) (string, string) { return class, id },
			swapped: true,
		},
		{
			name:    "id-from-class",
			applies: func(id, class string) bool { return id == "" && p.isStudentID(class) },
			apply:   func(id, class string) (string, string) { return class, "" },
			swapped: true,
		},
		{
			name:    "class-in-id",
			applies: func(id, class string) bool { return p.isClassCode(id) && class == "" },
			apply:   func(id, class string) (string, string) { return "", id },
			swapped: true,
		},
	}
}

func (p *Parser) applySwapRules(rawID, rawClass string) (string, string) {
	id := strings.TrimSpace(rawID)
	class := strings.TrimSpace(rawClass)

	for _, rule := range p.rules {
		if rule.applies(id, class) {
			if rule.swapped {
				metrics.ColumnSwapsRecovered.Inc()
				logger.Debug("Column swap recovered",
					zap.String("rule", rule.name),
					zap.String("id_cell", rawID),
					zap.String("class_cell", rawClass),
				)
			}
			return rule.apply(id, class)
		}
	}

	return id, class
}

func (p *Parser) isStudentID(value string) bool {
	return p.idRe.MatchString(cleanID(value))
}

func (p *Parser) isClassCode(value string) bool {
	clean := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(value), " ", ""))
	return clean != "" && p.classRe.MatchString(clean)
}

func cleanID(raw string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), " ", ""))
}

var numberRe = regexp.MustCompile(`\d+(?:\.\d+)?`)

// parseScore reads a score cell permissively: surrounding text is
// ignored and a comma decimal separator is accepted. The second return
// is false when no numeric content could be recovered.
func parseScore(text string) (float64, bool) {
	clean := strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	if clean == "" {
		return 0, false
	}

	match := numberRe.FindString(clean)
	if match == "" {
		return 0, false
	}

	value, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}
	if value < 0 {
		value = 0
	}
	return value, true
}

// DeriveActivityName turns a link label into a display name: ordinal
// prefixes, decision-number prefixes and the recognition boilerplate
// are stripped.
func DeriveActivityName(label string) string {
	name := strings.TrimSpace(label)
	name = regexp.MustCompile(`^\d+[_.)\s-]+`).ReplaceAllString(name, "")
	name = regexp.MustCompile(`(?i)^QĐ\S*\s*-\s*`).ReplaceAllString(name, "")
	name = regexp.MustCompile(`(?i)^CÔNG NHẬN\s+NRL\s*`).ReplaceAllString(name, "")
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return "Unknown"
	}
	return name
}

func cellAt(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func containsAny(haystack string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(haystack, kw) {
			return true
		}
	}
	return false
}

func containsAll(haystack string, keywords []string) bool {
	for _, kw := range keywords {
		if !strings.Contains(haystack, kw) {
			return false
		}
	}
	return len(keywords) > 0
}
