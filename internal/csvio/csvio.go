// Package csvio reads bank and budgeting-app CSV exports into transaction
// drafts and writes transactions back out as CSV.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/shopspring/decimal"
)

// Dialect names a CSV layout.
type Dialect string

// Supported dialects.
const (
	// Generic has lower-case columns: date, merchant, amount and optional
	// category, description, notes and type.
	Generic Dialect = "generic"
	// Mint is the Mint.com export: Date, Description, Original Description,
	// Amount, Transaction Type, Category, Notes.
	Mint Dialect = "mint"
	// YNAB is the YNAB register export: Date, Payee, Category, Memo, Outflow, Inflow.
	YNAB Dialect = "ynab"
)

// ExportColumns is the header Export writes.
var ExportColumns = []string{"id", "date", "merchant", "category", "amount", "type", "account_id", "description", "notes"}

const unknownMerchant = "Unknown"

// ParseDialect resolves a dialect name, case-insensitively.
func ParseDialect(s string) (Dialect, error) {
	switch d := Dialect(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return Generic, nil
	case Generic, Mint, YNAB:
		return d, nil
	default:
		return "", common.Validationf("unknown CSV format %q (want generic, mint or ynab)", s)
	}
}

// row gives header-keyed access to one record.
type row struct {
	index  map[string]int
	record []string
}

func (r row) get(column string) string {
	i, ok := r.index[column]
	if !ok || i >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[i])
}

func (r row) has(column string) bool {
	_, ok := r.index[column]
	return ok
}

// Parse reads every record of r as d. Rows without a readable date are
// dropped; the importer validates what remains.
func Parse(r io.Reader, d Dialect) ([]model.TransactionDraft, error) {
	convert, headerCase := rowParser(d)
	if convert == nil {
		return nil, common.Validationf("unknown CSV format %q", d)
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		index[headerCase(name)] = i
	}

	var drafts []model.TransactionDraft
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV line %d: %w", line, err)
		}
		draft, ok := convert(row{index: index, record: record})
		if !ok {
			common.LogDebug("Skipping CSV row", common.Fields{"line": line, "dialect": string(d)})
			continue
		}
		draft.Source = model.SourceCSV
		drafts = append(drafts, draft)
	}
	return drafts, nil
}

func rowParser(d Dialect) (func(row) (model.TransactionDraft, bool), func(string) string) {
	switch d {
	case Generic:
		return parseGeneric, strings.ToLower
	case Mint:
		return parseMint, identity
	case YNAB:
		return parseYNAB, identity
	}
	return nil, nil
}

func identity(s string) string { return s }

func parseGeneric(r row) (model.TransactionDraft, bool) {
	date, ok := parseDate(r.get("date"), "2006-01-02", "1/2/2006")
	if !ok {
		return model.TransactionDraft{}, false
	}

	kind := model.TransactionType(strings.ToLower(r.get("type")))
	switch kind {
	case model.TypeExpense, model.TypeIncome, model.TypeTransfer:
	default:
		kind = model.TypeExpense
	}

	return model.TransactionDraft{
		Date:        date,
		Amount:      parseAbs(r.get("amount")),
		Merchant:    orDefault(r, "merchant", unknownMerchant),
		Category:    r.get("category"),
		Description: r.get("description"),
		Notes:       r.get("notes"),
		Type:        kind,
	}, true
}

func parseMint(r row) (model.TransactionDraft, bool) {
	date, ok := parseDate(r.get("Date"), "1/2/2006")
	if !ok {
		return model.TransactionDraft{}, false
	}

	kind := model.TypeExpense
	if strings.EqualFold(r.get("Transaction Type"), "credit") {
		kind = model.TypeIncome
	}

	return model.TransactionDraft{
		Date:        date,
		Amount:      parseAbs(r.get("Amount")),
		Merchant:    orDefault(r, "Description", unknownMerchant),
		Category:    r.get("Category"),
		Description: r.get("Original Description"),
		Notes:       r.get("Notes"),
		Type:        kind,
	}, true
}

func parseYNAB(r row) (model.TransactionDraft, bool) {
	date, ok := parseDate(r.get("Date"), "1/2/2006", "2006-01-02")
	if !ok {
		return model.TransactionDraft{}, false
	}

	outflow, err := parseOptional(r.get("Outflow"))
	if err != nil {
		return model.TransactionDraft{}, false
	}
	inflow, err := parseOptional(r.get("Inflow"))
	if err != nil {
		return model.TransactionDraft{}, false
	}

	amount, kind := outflow, model.TypeExpense
	if inflow.IsPositive() {
		amount, kind = inflow, model.TypeIncome
	}
	if amount.IsZero() {
		return model.TransactionDraft{}, false
	}

	return model.TransactionDraft{
		Date:     date,
		Amount:   amount,
		Merchant: orDefault(r, "Payee", unknownMerchant),
		Category: r.get("Category"),
		Notes:    r.get("Memo"),
		Type:     kind,
	}, true
}

func parseDate(s string, layouts ...string) (time.Time, bool) {
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return model.Day(t), true
		}
	}
	return time.Time{}, false
}

// parseAbs reads an amount ignoring its sign. Unreadable amounts become zero
// so the importer counts the row as skipped.
func parseAbs(s string) decimal.Decimal {
	d, err := model.ParseAmount(s)
	if err != nil {
		return decimal.Zero
	}
	return d.Abs()
}

func parseOptional(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return model.ParseAmount(s)
}

func orDefault(r row, column, fallback string) string {
	if !r.has(column) {
		return fallback
	}
	if v := r.get(column); v != "" {
		return v
	}
	return fallback
}

// Export writes transactions under ExportColumns and returns how many rows
// were written.
func Export(w io.Writer, transactions []model.Transaction) (int, error) {
	writer := csv.NewWriter(w)
	if err := writer.Write(ExportColumns); err != nil {
		return 0, fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, t := range transactions {
		record := []string{
			strconv.FormatInt(t.ID, 10),
			model.FormatDate(t.Date),
			t.Merchant,
			t.Category,
			t.Amount.StringFixed(2),
			string(t.Type),
			strconv.FormatInt(t.AccountID, 10),
			t.Description,
			t.Notes,
		}
		if err := writer.Write(record); err != nil {
			return 0, fmt.Errorf("failed to write transaction %d: %w", t.ID, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return 0, fmt.Errorf("failed to flush CSV: %w", err)
	}
	return len(transactions), nil
}
