package sheets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/Veraticus/spice-ledger/internal/analytics"
	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const sheetTitle = "Report"

// Writer writes monthly reports into a single spreadsheet.
type Writer struct {
	service *sheets.Service
	logger  *slog.Logger
	config  Config
}

// NewWriter authenticates against Google and returns a writer. Extra client
// options are passed to the Sheets service.
func NewWriter(ctx context.Context, config Config, opts ...option.ClientOption) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sheets config: %w", err)
	}

	if len(opts) == 0 {
		source, err := tokenSource(ctx, config)
		if err != nil {
			return nil, err
		}
		opts = []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, source))}
	}
	srv, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}

	return &Writer{
		service: srv,
		config:  config,
		logger:  slog.Default().With("component", "sheets"),
	}, nil
}

func tokenSource(ctx context.Context, config Config) (oauth2.TokenSource, error) {
	if config.ServiceAccountPath != "" {
		key, err := os.ReadFile(config.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key: %w", err)
		}
		jwt, err := google.JWTConfigFromJSON(key, sheets.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}
		return jwt.TokenSource(ctx), nil
	}
	return oauthConfig(config.ClientID, config.ClientSecret, "").
		TokenSource(ctx, &oauth2.Token{RefreshToken: config.RefreshToken, TokenType: "Bearer"}), nil
}

// WriteMonthly replaces the report sheet's contents with the month's summary
// and transactions and returns the spreadsheet ID. Writes are retried; a
// formatting failure is logged and ignored.
func (w *Writer) WriteMonthly(ctx context.Context, summary *analytics.MonthlySummary, transactions []model.Transaction) (string, error) {
	values, l := monthlyValues(summary, transactions)
	w.logger.Info("Writing monthly report", "year", summary.Year, "month", summary.Month, "rows", len(values))

	id, sheetID, err := w.spreadsheet(ctx)
	if err != nil {
		return "", err
	}

	retry := common.RetryOptions{
		MaxAttempts:  w.config.RetryAttempts,
		InitialDelay: w.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
	}
	if retry.MaxAttempts == 0 {
		retry.MaxAttempts = 1
	}

	err = common.WithRetry(ctx, func() error {
		_, err := w.service.Spreadsheets.Values.Clear(id, sheetTitle, &sheets.ClearValuesRequest{}).Context(ctx).Do()
		return err
	}, retry)
	if err != nil {
		return "", fmt.Errorf("failed to clear sheet: %w", err)
	}

	for start := 0; start < len(values); start += w.config.BatchSize {
		end := min(start+w.config.BatchSize, len(values))
		batch := &sheets.ValueRange{Values: values[start:end]}
		cell := fmt.Sprintf("%s!A%d", sheetTitle, start+1)
		err := common.WithRetry(ctx, func() error {
			_, err := w.service.Spreadsheets.Values.Update(id, cell, batch).
				ValueInputOption("USER_ENTERED").Context(ctx).Do()
			return err
		}, retry)
		if err != nil {
			return "", fmt.Errorf("failed to write rows %d-%d: %w", start+1, end, err)
		}
		w.logger.Debug("Wrote batch", "start_row", start+1, "rows", end-start)
	}

	if w.config.EnableFormatting {
		err := common.WithRetry(ctx, func() error {
			_, err := w.service.Spreadsheets.BatchUpdate(id, &sheets.BatchUpdateSpreadsheetRequest{
				Requests: formatRequests(sheetID, l),
			}).Context(ctx).Do()
			return err
		}, retry)
		if err != nil {
			w.logger.Warn("Failed to format report", "error", err)
		}
	}

	w.logger.Info("Monthly report written", "spreadsheet_id", id, "rows", len(values))
	return id, nil
}

// spreadsheet opens the configured spreadsheet, adding the report sheet if
// missing, or creates a new spreadsheet.
func (w *Writer) spreadsheet(ctx context.Context) (string, int64, error) {
	if w.config.SpreadsheetID == "" {
		created, err := w.service.Spreadsheets.Create(&sheets.Spreadsheet{
			Properties: &sheets.SpreadsheetProperties{Title: w.config.SpreadsheetName, TimeZone: w.config.TimeZone},
			Sheets:     []*sheets.Sheet{{Properties: &sheets.SheetProperties{Title: sheetTitle}}},
		}).Context(ctx).Do()
		if err != nil {
			return "", 0, fmt.Errorf("unable to create spreadsheet: %w", err)
		}
		w.logger.Info("Created spreadsheet", "id", created.SpreadsheetId, "url", created.SpreadsheetUrl)
		var sheetID int64
		if len(created.Sheets) > 0 && created.Sheets[0].Properties != nil {
			sheetID = created.Sheets[0].Properties.SheetId
		}
		return created.SpreadsheetId, sheetID, nil
	}

	existing, err := w.service.Spreadsheets.Get(w.config.SpreadsheetID).Context(ctx).Do()
	if err != nil {
		return "", 0, fmt.Errorf("unable to open spreadsheet %s: %w", w.config.SpreadsheetID, err)
	}
	for _, s := range existing.Sheets {
		if s.Properties != nil && s.Properties.Title == sheetTitle {
			return existing.SpreadsheetId, s.Properties.SheetId, nil
		}
	}

	resp, err := w.service.Spreadsheets.BatchUpdate(existing.SpreadsheetId, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: sheetTitle}}}},
	}).Context(ctx).Do()
	if err != nil {
		return "", 0, fmt.Errorf("unable to add %s sheet: %w", sheetTitle, err)
	}
	var sheetID int64
	if len(resp.Replies) > 0 && resp.Replies[0].AddSheet != nil && resp.Replies[0].AddSheet.Properties != nil {
		sheetID = resp.Replies[0].AddSheet.Properties.SheetId
	}
	return existing.SpreadsheetId, sheetID, nil
}

func boldRow(sheetID int64, row int) *sheets.Request {
	return &sheets.Request{RepeatCell: &sheets.RepeatCellRequest{
		Range:  &sheets.GridRange{SheetId: sheetID, StartRowIndex: int64(row), EndRowIndex: int64(row + 1)},
		Cell:   &sheets.CellData{UserEnteredFormat: &sheets.CellFormat{TextFormat: &sheets.TextFormat{Bold: true}}},
		Fields: "userEnteredFormat.textFormat.bold",
	}}
}

func currency(sheetID int64, startRow, endRow, column int) *sheets.Request {
	return &sheets.Request{RepeatCell: &sheets.RepeatCellRequest{
		Range: &sheets.GridRange{
			SheetId:          sheetID,
			StartRowIndex:    int64(startRow),
			EndRowIndex:      int64(endRow),
			StartColumnIndex: int64(column),
			EndColumnIndex:   int64(column + 1),
		},
		Cell:   &sheets.CellData{UserEnteredFormat: &sheets.CellFormat{NumberFormat: &sheets.NumberFormat{Type: "CURRENCY", Pattern: "$#,##0.00"}}},
		Fields: "userEnteredFormat.numberFormat",
	}}
}

func formatRequests(sheetID int64, l layout) []*sheets.Request {
	return []*sheets.Request{
		{RepeatCell: &sheets.RepeatCellRequest{
			Range:  &sheets.GridRange{SheetId: sheetID, StartRowIndex: 0, EndRowIndex: 1},
			Cell:   &sheets.CellData{UserEnteredFormat: &sheets.CellFormat{TextFormat: &sheets.TextFormat{Bold: true, FontSize: 16}}},
			Fields: "userEnteredFormat.textFormat",
		}},
		boldRow(sheetID, 2),
		boldRow(sheetID, l.categoryHeader),
		boldRow(sheetID, l.transactionHeader),
		currency(sheetID, 3, 6, 1),
		currency(sheetID, l.categoryHeader+1, l.transactionHeader, 2),
		currency(sheetID, l.transactionHeader+1, l.rows, 4),
		{AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
			Dimensions: &sheets.DimensionRange{SheetId: sheetID, Dimension: "COLUMNS", StartIndex: 0, EndIndex: int64(len(transactionColumns))},
		}},
	}
}
