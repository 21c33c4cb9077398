package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/xuri/excelize/v2"

	"tneaboard/internal/model"
)

// HTTPSheetSource downloads one spreadsheet export (xlsx) with a plain GET
// and returns every sheet untyped. The client timeout bounds the whole fetch;
// a slow or failed source degrades the view, it never takes the server down.
type HTTPSheetSource struct {
	url    string
	client *http.Client
}

func NewHTTPSheetSource(url string, timeout time.Duration) *HTTPSheetSource {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSheetSource{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSheetSource) Fetch(ctx context.Context) ([]model.Sheet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build spreadsheet request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch spreadsheet: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch spreadsheet: unexpected status %s", resp.Status)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read spreadsheet body: %w", err)
	}

	return ParseWorkbook(raw)
}

// ParseWorkbook decodes an xlsx workbook into raw sheets, first row as header.
func ParseWorkbook(raw []byte) ([]model.Sheet, error) {
	book, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer book.Close()

	var sheets []model.Sheet
	for _, name := range book.GetSheetList() {
		rows, err := book.GetRows(name)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", name, err)
		}
		sheet := model.Sheet{Name: name}
		if len(rows) > 0 {
			sheet.Header = rows[0]
			sheet.Rows = rows[1:]
		}
		sheets = append(sheets, sheet)
	}
	return sheets, nil
}
