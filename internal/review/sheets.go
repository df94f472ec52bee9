// Package review exports verification results to a Google Sheet that the
// admin team works through as a manual review queue.
//
// Credentials come from GOOGLE_APPLICATION_CREDENTIALS (file path) or
// GOOGLE_CREDENTIALS (inline JSON). The service account needs edit access to
// the target spreadsheet.
package review

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"idverify/internal/logger"
	"idverify/pkg/services"
)

// Row statuses.
const (
	StatusApproved = "approved"
	StatusReview   = "needs_review"
	StatusError    = "error"
)

// Headers are the sheet columns, A to O.
var Headers = []string{
	"Verification ID", "Image", "Role", "Document Type", "Valid",
	"Pass %", "Passed", "Document Number", "Extracted Name", "Declared Name",
	"Name Match", "Failed Checks", "Message", "Status", "Verified At",
}

var spreadsheetIDRe = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

// Row is one verification result as written to the sheet.
type Row struct {
	VerificationID string
	Image          string
	Role           string
	DocumentType   string
	Valid          bool
	PassPercentage float64
	Passed         string
	DocumentNumber string
	ExtractedName  string
	DeclaredName   string
	NameMatch      string
	FailedChecks   string
	Message        string
	Status         string
	VerifiedAt     string
}

// SheetsWriter appends verification results to a spreadsheet.
type SheetsWriter struct {
	sheetsService *sheets.Service
	spreadsheetID string
	log           zerolog.Logger
}

// NewSheetsWriter creates a writer for the spreadsheet at sheetURL.
func NewSheetsWriter(ctx context.Context, sheetURL string) (*SheetsWriter, error) {
	const op = "NewSheetsWriter"

	log := logger.WithComponent("review")

	spreadsheetID, err := extractSpreadsheetID(sheetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Debug().Str("spreadsheet_id", spreadsheetID).Msg("Extracted spreadsheet ID")

	creds, err := loadCredentials()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	config, err := google.JWTConfigFromJSON(creds, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
	}

	svc, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create sheets service: %w", op, err)
	}

	return &SheetsWriter{
		sheetsService: svc,
		spreadsheetID: spreadsheetID,
		log:           log,
	}, nil
}

func loadCredentials() ([]byte, error) {
	if path := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); path != "" {
		creds, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		return creds, nil
	}
	if inline := os.Getenv("GOOGLE_CREDENTIALS"); inline != "" {
		return []byte(inline), nil
	}
	return nil, fmt.Errorf("neither GOOGLE_APPLICATION_CREDENTIALS nor GOOGLE_CREDENTIALS is set")
}

func extractSpreadsheetID(url string) (string, error) {
	m := spreadsheetIDRe.FindStringSubmatch(url)
	if len(m) < 2 {
		return "", fmt.Errorf("invalid Google Sheets URL format: %q", url)
	}
	return m[1], nil
}

// WriteResults appends one row per result to sheetName, creating the sheet
// and its header row when missing.
func (w *SheetsWriter) WriteResults(ctx context.Context, results []services.VerificationResult, sheetName string) error {
	const op = "WriteResults"

	w.log.Info().
		Str("sheet", sheetName).
		Int("rows", len(results)).
		Msg("Writing verification results to review sheet")

	if err := w.ensureSheetWithHeaders(ctx, sheetName); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rows := BuildRows(results, time.Now())
	values := make([][]interface{}, 0, len(rows))
	for _, row := range rows {
		values = append(values, row.Values())
	}

	_, err := w.sheetsService.Spreadsheets.Values.Append(
		w.spreadsheetID,
		sheetName+"!"+columnRange(),
		&sheets.ValueRange{Values: values},
	).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to append values to sheet: %w", op, err)
	}

	w.log.Info().Int("rows_written", len(values)).Msg("Review sheet updated")
	return nil
}

// BuildRows converts results into sheet rows stamped with now.
func BuildRows(results []services.VerificationResult, now time.Time) []Row {
	verifiedAt := now.Format("2006-01-02 15:04:05")
	rows := make([]Row, 0, len(results))

	for _, res := range results {
		row := Row{
			Image:        res.Request.ImagePath,
			Role:         res.Request.Role,
			DeclaredName: res.Request.DeclaredName,
			VerifiedAt:   verifiedAt,
		}

		if res.Err != nil || res.Report == nil {
			row.Status = StatusError
			if res.Err != nil {
				row.Message = res.Err.Error()
			}
			rows = append(rows, row)
			continue
		}

		r := res.Report
		row.VerificationID = r.VerificationID
		row.Role = r.Role
		row.DocumentType = r.DocumentType
		row.Valid = r.IsValid
		row.PassPercentage = r.PassPercentage
		row.Passed = fmt.Sprintf("%d/%d", r.PassedParameters, r.TotalParameters)
		row.DocumentNumber = MaskNumber(r.DocumentNumber)
		row.ExtractedName = r.ExtractedName
		row.FailedChecks = strings.Join(r.FailedParameters(), ", ")
		row.Message = r.Message
		if r.NameMatch != nil {
			row.NameMatch = fmt.Sprintf("%t (%.2f, %s)", r.NameMatch.Matched, r.NameMatch.Similarity, r.NameMatch.Method)
		}

		row.Status = StatusReview
		if r.IsValid && (r.NameMatch == nil || r.NameMatch.Matched) {
			row.Status = StatusApproved
		}
		rows = append(rows, row)
	}
	return rows
}

// MaskNumber hides all but the last four characters of a document number.
func MaskNumber(number string) string {
	if len(number) <= 4 {
		return number
	}
	return strings.Repeat("X", len(number)-4) + number[len(number)-4:]
}

// Values returns the row in column order.
func (r Row) Values() []interface{} {
	return []interface{}{
		r.VerificationID, // A
		r.Image,          // B
		r.Role,           // C
		r.DocumentType,   // D
		r.Valid,          // E
		r.PassPercentage, // F
		r.Passed,         // G
		r.DocumentNumber, // H
		r.ExtractedName,  // I
		r.DeclaredName,   // J
		r.NameMatch,      // K
		r.FailedChecks,   // L
		r.Message,        // M
		r.Status,         // N
		r.VerifiedAt,     // O
	}
}

// columnRange is A through the last header column.
func columnRange() string {
	return fmt.Sprintf("A:%c", 'A'+len(Headers)-1)
}

func (w *SheetsWriter) ensureSheetWithHeaders(ctx context.Context, sheetName string) error {
	const op = "ensureSheetWithHeaders"

	spreadsheet, err := w.sheetsService.Spreadsheets.Get(w.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get spreadsheet: %w", op, err)
	}

	sheetID := int64(-1)
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties.Title == sheetName {
			sheetID = sheet.Properties.SheetId
			break
		}
	}

	if sheetID < 0 {
		w.log.Info().Str("sheet", sheetName).Msg("Creating review sheet")
		resp, err := w.sheetsService.Spreadsheets.BatchUpdate(w.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{
				{AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: sheetName}}},
			},
		}).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("%s: failed to create sheet: %w", op, err)
		}
		sheetID = resp.Replies[0].AddSheet.Properties.SheetId
	}

	headerRange := fmt.Sprintf("%s!A1:%c1", sheetName, 'A'+len(Headers)-1)
	resp, err := w.sheetsService.Spreadsheets.Values.Get(w.spreadsheetID, headerRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get headers: %w", op, err)
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}

	header := make([]interface{}, len(Headers))
	for i, h := range Headers {
		header[i] = h
	}
	_, err = w.sheetsService.Spreadsheets.Values.Update(
		w.spreadsheetID,
		headerRange,
		&sheets.ValueRange{Values: [][]interface{}{header}},
	).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to add headers: %w", op, err)
	}

	if err := w.formatHeaders(ctx, sheetID); err != nil {
		w.log.Warn().Err(err).Msg("Failed to format headers, continuing anyway")
	}
	return nil
}

// formatHeaders bolds the header row, freezes it and sizes the columns.
func (w *SheetsWriter) formatHeaders(ctx context.Context, sheetID int64) error {
	cols := int64(len(Headers))
	requests := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   cols,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat:      &sheets.TextFormat{Bold: true},
						BackgroundColor: &sheets.Color{Red: 0.9, Green: 0.9, Blue: 0.9},
					},
				},
				Fields: "userEnteredFormat(textFormat,backgroundColor)",
			},
		},
		{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId:        sheetID,
					GridProperties: &sheets.GridProperties{FrozenRowCount: 1},
				},
				Fields: "gridProperties.frozenRowCount",
			},
		},
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   cols,
				},
			},
		},
	}

	_, err := w.sheetsService.Spreadsheets.BatchUpdate(w.spreadsheetID,
		&sheets.BatchUpdateSpreadsheetRequest{Requests: requests}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("formatHeaders: %w", err)
	}
	return nil
}
