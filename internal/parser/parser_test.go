package parser

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhien36hk/StudentActivityTracker/internal/storage/models"
)

// buildDocx writes a minimal .docx container holding the given tables
// and returns its path.
func buildDocx(t *testing.T, tables ...[][]string) string {
	t.Helper()

	var body strings.Builder
	body.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	body.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, table := range tables {
		body.WriteString("<w:tbl>")
		for _, row := range table {
			body.WriteString("<w:tr>")
			for _, cell := range row {
				body.WriteString("<w:tc><w:p><w:r><w:t>")
				if err := xmlEscape(&body, cell); err != nil {
					t.Fatal(err)
				}
				body.WriteString("</w:t></w:r></w:p></w:tc>")
			}
			body.WriteString("</w:tr>")
		}
		body.WriteString("</w:tbl>")
	}
	body.WriteString(`</w:body></w:document>`)

	path := filepath.Join(t.TempDir(), "fixture.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	entry, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = entry.Write([]byte(body.String()))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	return path
}

func xmlEscape(b *strings.Builder, s string) error {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	_, err := r.WriteString(b, s)
	return err
}

func studentHeader() []string {
	return []string{"STT", "MSSV", "Họ và tên", "Lớp", "Điểm NRL"}
}

func mustParser(t *testing.T) *Parser {
	t.Helper()
	p, err := New(Config{})
	require.NoError(t, err)
	return p
}

func parseFixture(t *testing.T, p *Parser, path string) []models.RawActivityRecord {
	t.Helper()
	records, err := p.Parse(models.FetchedDocument{
		Reference: "doc-ref",
		LocalPath: path,
		Status:    models.StatusOK,
	}, "Hiến máu tình nguyện")
	require.NoError(t, err)
	return records
}

func TestParse_WellFormedTable(t *testing.T) {
	path := buildDocx(t, [][]string{
		studentHeader(),
		{"1", "22110123", "Nguyễn Văn A", "22DTHD3", "5"},
		{"2", "22110456", "Trần Thị B", "22DTHD3", "3,5"},
	})

	records := parseFixture(t, mustParser(t), path)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, models.KnownField("22110123"), first.StudentID)
	assert.Equal(t, models.KnownField("Nguyễn Văn A"), first.StudentName)
	assert.Equal(t, models.KnownField("22DTHD3"), first.ClassCode)
	assert.Equal(t, 5.0, first.Score)
	assert.Equal(t, "Hiến máu tình nguyện", first.ActivityName)
	assert.Equal(t, "doc-ref", first.SourceDocument)
	assert.Equal(t, models.ConfidenceKnown, first.Confidence)

	// Comma decimal separator.
	assert.Equal(t, 3.5, records[1].Score)
	assert.Equal(t, models.ConfidenceKnown, records[1].Confidence)
}

func TestParse_RecoversSwappedColumns(t *testing.T) {
	path := buildDocx(t, [][]string{
		studentHeader(),
		{"1", "22DTHD3", "Nguyễn Văn A", "22110123", "5"},
	})

	records := parseFixture(t, mustParser(t), path)
	require.Len(t, records, 1)
	assert.Equal(t, models.KnownField("22110123"), records[0].StudentID)
	assert.Equal(t, models.KnownField("22DTHD3"), records[0].ClassCode)
	assert.Equal(t, models.ConfidenceKnown, records[0].Confidence)
}

func TestParse_IDFoundInClassColumn(t *testing.T) {
	path := buildDocx(t, [][]string{
		studentHeader(),
		{"1", "", "Nguyễn Văn A", "22110123", "5"},
	})

	records := parseFixture(t, mustParser(t), path)
	require.Len(t, records, 1)
	assert.Equal(t, models.KnownField("22110123"), records[0].StudentID)
	assert.False(t, records[0].ClassCode.Known)
}

func TestParse_InvalidIDKeptAsUnknown(t *testing.T) {
	path := buildDocx(t, [][]string{
		studentHeader(),
		{"1", "abc", "Nguyễn Văn A", "22DTHD3", "5"},
	})

	records := parseFixture(t, mustParser(t), path)
	require.Len(t, records, 1)
	assert.False(t, records[0].StudentID.Known)
	assert.Equal(t, models.ConfidenceUnknown, records[0].Confidence)
	// The row survives for the unresolved report.
	assert.Equal(t, models.KnownField("Nguyễn Văn A"), records[0].StudentName)
}

func TestParse_UnparsableScoreKeptAsUnknown(t *testing.T) {
	path := buildDocx(t, [][]string{
		studentHeader(),
		{"1", "22110123", "Nguyễn Văn A", "22DTHD3", "vắng"},
	})

	records := parseFixture(t, mustParser(t), path)
	require.Len(t, records, 1)
	assert.Equal(t, 0.0, records[0].Score)
	assert.Equal(t, models.ConfidenceUnknown, records[0].Confidence)
	assert.Equal(t, models.KnownField("22110123"), records[0].StudentID)
}

func TestParse_ScoreWithSurroundingText(t *testing.T) {
	path := buildDocx(t, [][]string{
		studentHeader(),
		{"1", "22110123", "Nguyễn Văn A", "22DTHD3", "5 điểm"},
	})

	records := parseFixture(t, mustParser(t), path)
	require.Len(t, records, 1)
	assert.Equal(t, 5.0, records[0].Score)
	assert.Equal(t, models.ConfidenceKnown, records[0].Confidence)
}

func TestParse_SkipsEmptyRows(t *testing.T) {
	path := buildDocx(t, [][]string{
		studentHeader(),
		{"1", "", "", "", ""},
		{"2", "22110123", "Nguyễn Văn A", "22DTHD3", "5"},
	})

	records := parseFixture(t, mustParser(t), path)
	require.Len(t, records, 1)
	assert.Equal(t, models.KnownField("22110123"), records[0].StudentID)
}

func TestParse_MissingScoreColumn(t *testing.T) {
	path := buildDocx(t, [][]string{
		{"STT", "MSSV", "Họ và tên", "Lớp"},
		{"1", "22110123", "Nguyễn Văn A", "22DTHD3"},
	})

	records := parseFixture(t, mustParser(t), path)
	require.Len(t, records, 1)
	assert.Equal(t, 0.0, records[0].Score)
	assert.Equal(t, models.ConfidenceKnown, records[0].Confidence)
}

func TestParse_PicksStudentTableAmongOthers(t *testing.T) {
	decoration := [][]string{
		{"Trường", "Khoa"},
		{"SPKT", "CNTT"},
	}
	path := buildDocx(t, decoration, [][]string{
		studentHeader(),
		{"1", "22110123", "Nguyễn Văn A", "22DTHD3", "5"},
	})

	records := parseFixture(t, mustParser(t), path)
	require.Len(t, records, 1)
	assert.Equal(t, models.KnownField("22110123"), records[0].StudentID)
}

func TestParse_NoStudentTable(t *testing.T) {
	path := buildDocx(t, [][]string{
		{"Hạng mục", "Ghi chú"},
		{"A", "B"},
	})

	records, err := mustParser(t).Parse(models.FetchedDocument{LocalPath: path}, "x")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestParse_NotAContainer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.docx")
	require.NoError(t, os.WriteFile(path, []byte("<html>not a docx</html>"), 0644))

	_, err := mustParser(t).Parse(models.FetchedDocument{LocalPath: path}, "x")
	assert.ErrorIs(t, err, ErrMalformedDocument)
}

func TestParse_ContainerWithoutDocumentXML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.docx")
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	_, err = zw.Create("word/other.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	_, err = mustParser(t).Parse(models.FetchedDocument{LocalPath: path}, "x")
	assert.ErrorIs(t, err, ErrMalformedDocument)
}

func TestNew_InvalidPattern(t *testing.T) {
	_, err := New(Config{IDPattern: "["})
	assert.Error(t, err)
}

func TestDeriveActivityName(t *testing.T) {
	tests := []struct {
		name     string
		label    string
		expected string
	}{
		{"ordinal prefix", "12_Hiến máu tình nguyện", "Hiến máu tình nguyện"},
		{"dotted ordinal", "3. Hội thao sinh viên", "Hội thao sinh viên"},
		{"decision prefix", "QĐ123 - Mùa hè xanh", "Mùa hè xanh"},
		{"recognition boilerplate", "CÔNG NHẬN NRL Hội trại truyền thống", "Hội trại truyền thống"},
		{"combined prefixes", "12_QĐ45 - Hiến máu", "Hiến máu"},
		{"whitespace collapsed", "  Hội   thao  ", "Hội thao"},
		{"empty label", "", "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DeriveActivityName(tt.label))
		})
	}
}
