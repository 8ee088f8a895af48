package parser

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// docxTable is the text content of one table, row-major.
type docxTable [][]string

// readTables opens a .docx container and returns the text of every
// table in body order. The container format is a zip holding
// word/document.xml; tables are w:tbl elements of w:tr rows and w:tc
// cells, with text carried by w:t runs.
func readTables(path string) ([]docxTable, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	defer rc.Close()

	body, err := readZipFile(rc.File, "word/document.xml")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}

	return extractTables(body), nil
}

func readZipFile(files []*zip.File, target string) ([]byte, error) {
	for _, f := range files {
		if f == nil {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(f.Name), target) {
			r, err := f.Open()
			if err != nil {
				return nil, err
			}
			defer r.Close()
			return io.ReadAll(r)
		}
	}
	return nil, fmt.Errorf("file not found: %s", target)
}

func extractTables(body []byte) []docxTable {
	if len(body) == 0 {
		return nil
	}
	dec := xml.NewDecoder(strings.NewReader(string(body)))

	var (
		tables    []docxTable
		table     docxTable
		row       []string
		cell      strings.Builder
		tblDepth  int
		inCell    bool
		inText    bool
	)

	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				break
			}
			return tables
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tblDepth++
				if tblDepth == 1 {
					table = nil
				}
			case "tr":
				if tblDepth == 1 {
					row = nil
				}
			case "tc":
				if tblDepth == 1 {
					inCell = true
					cell.Reset()
				}
			case "t":
				if inCell {
					inText = true
				}
			}
		case xml.CharData:
			if inCell && inText {
				cell.WriteString(string(t))
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "tc":
				if tblDepth == 1 && inCell {
					row = append(row, strings.TrimSpace(cell.String()))
					inCell = false
				}
			case "tr":
				if tblDepth == 1 && row != nil {
					table = append(table, row)
					row = nil
				}
			case "tbl":
				if tblDepth == 1 && len(table) > 0 {
					tables = append(tables, table)
				}
				if tblDepth > 0 {
					tblDepth--
				}
			}
		}
	}

	return tables
}
