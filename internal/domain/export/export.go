package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"helphub/internal/domain/notice"
)

// NoticesFilename is the download name offered for the notices export.
const NoticesFilename = "ignou-notices.csv"

// NoticeHeader is the first row of a notices export.
var NoticeHeader = []string{"category", "title", "date", "description", "link"}

// NoticesCSV writes the notices as CSV, header first, one row per notice in
// the order given. Fields are written verbatim; embedded quotes are doubled.
// PRE: w is writable
// POST: len(notices)+1 records written, or the first write error returned
func NoticesCSV(w io.Writer, notices []notice.Notice) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(NoticeHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, n := range notices {
		if err := cw.Write(noticeRecord(n)); err != nil {
			return fmt.Errorf("write notice %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

func noticeRecord(n notice.Notice) []string {
	return []string{n.Category, n.Title, n.Date, n.Description, n.Link}
}

// ReadNoticesCSV parses an export produced by NoticesCSV.
func ReadNoticesCSV(r io.Reader) ([]notice.Notice, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(NoticeHeader)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("read csv: missing header")
	}
	for i, h := range NoticeHeader {
		if records[0][i] != h {
			return nil, fmt.Errorf("read csv: column %d is %q, want %q", i, records[0][i], h)
		}
	}
	notices := make([]notice.Notice, 0, len(records)-1)
	for _, rec := range records[1:] {
		notices = append(notices, notice.Notice{
			Category:    rec[0],
			Title:       rec[1],
			Date:        rec[2],
			Description: rec[3],
			Link:        rec[4],
		})
	}
	return notices, nil
}
