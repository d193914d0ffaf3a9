// Package ofx reads OFX and QFX statement downloads into transaction drafts.
package ofx

import (
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
)

var (
	severityPattern = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	// SGML opening tags left without their closing bracket at line end.
	openTagPattern = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// typeCategories guesses a category from the OFX transaction type.
// ofxgo does not export the TrnType type, so the map is keyed by its string
// form.
var typeCategories = map[string]string{
	ofxgo.TrnTypeInt.String():    "Income - Interest",
	ofxgo.TrnTypeDiv.String():    "Income - Interest",
	ofxgo.TrnTypeFee.String():    "Bank Fees",
	ofxgo.TrnTypeSrvChg.String(): "Bank Fees",
	ofxgo.TrnTypeATM.String():    "Cash & ATM",
}

var genericNames = map[string]bool{
	"DEBIT":           true,
	"CREDIT":          true,
	"PURCHASE":        true,
	"PAYMENT":         true,
	"POS TRANSACTION": true,
	"CARD PURCHASE":   true,
}

// Statement is the transactions of one account in a download.
type Statement struct {
	AccountID  string
	CreditCard bool
	Drafts     []model.TransactionDraft
}

// Parser converts OFX responses.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates an OFX parser.
func NewParser() *Parser {
	return &Parser{logger: slog.Default().With("component", "ofx")}
}

// normalize repairs formatting that real bank downloads get wrong and ofxgo
// rejects.
func normalize(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityPattern.ReplaceAllStringFunc(content, strings.ToUpper)
	return openTagPattern.ReplaceAllString(content, "$1>")
}

// Parse reads every bank and credit card statement in r.
func (p *Parser) Parse(r io.Reader) ([]Statement, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}
	resp, err := ofxgo.ParseResponse(strings.NewReader(normalize(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var statements []Statement
	for _, msg := range resp.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok {
			continue
		}
		s := Statement{AccountID: string(stmt.BankAcctFrom.AcctID)}
		if stmt.BankTranList != nil {
			s.Drafts = p.convert(stmt.BankTranList.Transactions)
		}
		statements = append(statements, s)
	}
	for _, msg := range resp.CreditCard {
		stmt, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok {
			continue
		}
		s := Statement{AccountID: string(stmt.CCAcctFrom.AcctID), CreditCard: true}
		if stmt.BankTranList != nil {
			s.Drafts = p.convert(stmt.BankTranList.Transactions)
		}
		statements = append(statements, s)
	}

	p.logger.Info("Parsed OFX file", "statements", len(statements), "transactions", len(Drafts(statements)))
	return statements, nil
}

// Drafts flattens the drafts of every statement.
func Drafts(statements []Statement) []model.TransactionDraft {
	var out []model.TransactionDraft
	for _, s := range statements {
		out = append(out, s.Drafts...)
	}
	return out
}

func (p *Parser) convert(transactions []ofxgo.Transaction) []model.TransactionDraft {
	drafts := make([]model.TransactionDraft, 0, len(transactions))
	for _, tx := range transactions {
		amount, err := decimal.NewFromString(tx.TrnAmt.Rat.FloatString(2))
		if err != nil {
			p.logger.Warn("Skipping OFX transaction with unreadable amount", "fitid", tx.FiTID, "error", err)
			continue
		}

		kind := model.TypeIncome
		if amount.IsNegative() {
			kind = model.TypeExpense
		}

		draft := model.TransactionDraft{
			Date:       model.Day(tx.DtPosted.Time),
			Amount:     amount.Abs(),
			Merchant:   merchant(tx),
			Category:   typeCategories[tx.TrnType.String()],
			Type:       kind,
			ExternalID: string(tx.FiTID),
			Source:     model.SourceOFX,
		}
		if tx.Memo != "" {
			draft.Notes = string(tx.Memo)
		}
		if tx.CheckNum != "" {
			draft.Description = "Check #" + string(tx.CheckNum)
		}
		drafts = append(drafts, draft)
	}
	return drafts
}

// merchant prefers the structured payee, then NAME, then MEMO when NAME is a
// bare transaction kind.
func merchant(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return model.CleanMerchant(string(tx.Payee.Name))
	}
	name := strings.TrimSpace(string(tx.Name))
	if tx.Memo != "" && genericNames[strings.ToUpper(name)] {
		name = string(tx.Memo)
	}
	return model.CleanMerchant(name)
}
