package ofx

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const checkingOFX = `
OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20250331120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>USD
<BANKACCTFROM>
<BANKID>021000021
<ACCTID>998877
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20250301120000[0:GMT]
<DTEND>20250331120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20250303120000[0:GMT]
<TRNAMT>-42.17
<FITID>F-0303-1
<NAME>POS PURCHASE SAFEWAY 0457
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20250305120000[0:GMT]
<TRNAMT>-9.99
<FITID>F-0305-1
<NAME>DEBIT
<MEMO>SPOTIFY USA 88231944
</STMTTRN>
<STMTTRN>
<TRNTYPE>CHECK
<DTPOSTED>20250310120000[0:GMT]
<TRNAMT>-1450.00
<FITID>F-0310-1
<CHECKNUM>2041
<NAME>CHECK 2041
</STMTTRN>
<STMTTRN>
<TRNTYPE>INT
<DTPOSTED>20250331120000[0:GMT]
<TRNAMT>1.12
<FITID>F-0331-1
<NAME>INTEREST PAYMENT
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>2210.40
<DTASOF>20250331120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

const cardOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20250331120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<CREDITCARDMSGSRSV1>
<CCSTMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<CCSTMTRS>
<CURDEF>USD
<CCACCTFROM>
<ACCTID>5500000000000004
</CCACCTFROM>
<BANKTRANLIST>
<DTSTART>20250301120000[0:GMT]
<DTEND>20250331120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20250312120000[0:GMT]
<TRNAMT>-15.99
<FITID>CC-0312
<NAME>NETFLIX.COM
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20250320120000[0:GMT]
<TRNAMT>200.00
<FITID>CC-0320
<NAME>PAYMENT THANK YOU
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>-184.01
<DTASOF>20250331120000[0:GMT]
</LEDGERBAL>
</CCSTMTRS>
</CCSTMTTRNRS>
</CREDITCARDMSGSRSV1>
</OFX>`

func TestParser_Parse(t *testing.T) {
	tests := []struct {
		name       string
		data       string
		account    string
		creditCard bool
		count      int
		wantErr    bool
	}{
		{name: "checking statement", data: checkingOFX, account: "998877", count: 4},
		{name: "credit card statement", data: cardOFX, account: "5500000000000004", creditCard: true, count: 2},
		{name: "not OFX", data: "date,amount\n2025-03-01,5", wantErr: true},
		{name: "empty", data: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			statements, err := NewParser().Parse(strings.NewReader(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, statements, 1)
			assert.Equal(t, tt.account, statements[0].AccountID)
			assert.Equal(t, tt.creditCard, statements[0].CreditCard)
			assert.Len(t, statements[0].Drafts, tt.count)
		})
	}
}

func TestParser_Drafts(t *testing.T) {
	statements, err := NewParser().Parse(strings.NewReader(checkingOFX))
	require.NoError(t, err)
	drafts := Drafts(statements)
	require.Len(t, drafts, 4)

	grocery := drafts[0]
	assert.Equal(t, model.Date(2025, time.March, 3), grocery.Date)
	assert.Equal(t, "Safeway 0457", grocery.Merchant)
	assert.True(t, decimal.RequireFromString("42.17").Equal(grocery.Amount))
	assert.Equal(t, model.TypeExpense, grocery.Type)
	assert.Equal(t, "F-0303-1", grocery.ExternalID)
	assert.Equal(t, model.SourceOFX, grocery.Source)
	assert.Empty(t, grocery.Category)

	assert.Equal(t, "Spotify Usa", drafts[1].Merchant, "generic NAME falls back to MEMO")
	assert.Equal(t, "Check #2041", drafts[2].Description)

	interest := drafts[3]
	assert.Equal(t, model.TypeIncome, interest.Type)
	assert.Equal(t, "Income - Interest", interest.Category)
	assert.True(t, decimal.RequireFromString("1.12").Equal(interest.Amount))
}

func TestTypeCategories(t *testing.T) {
	tests := []struct {
		kind fmt.Stringer
		want string
	}{
		{kind: ofxgo.TrnTypeInt, want: "Income - Interest"},
		{kind: ofxgo.TrnTypeDiv, want: "Income - Interest"},
		{kind: ofxgo.TrnTypeFee, want: "Bank Fees"},
		{kind: ofxgo.TrnTypeSrvChg, want: "Bank Fees"},
		{kind: ofxgo.TrnTypeATM, want: "Cash & ATM"},
		{kind: ofxgo.TrnTypeDebit, want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, typeCategories[tt.kind.String()])
		})
	}
}

func TestMerchant(t *testing.T) {
	tests := []struct {
		name string
		tx   ofxgo.Transaction
		want string
	}{
		{name: "payee wins", tx: ofxgo.Transaction{Name: "ACH DEBIT 1234", Payee: &ofxgo.Payee{Name: "CITY WATER CO"}}, want: "City Water"},
		{name: "prefix stripped", tx: ofxgo.Transaction{Name: "DEBIT CARD PURCHASE WHOLE FOODS"}, want: "Whole Foods"},
		{name: "memo for generic name", tx: ofxgo.Transaction{Name: "PURCHASE", Memo: "BLUE BOTTLE"}, want: "Blue Bottle"},
		{name: "domain kept", tx: ofxgo.Transaction{Name: "  AMAZON.COM  "}, want: "Amazon.com"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, merchant(tt.tx))
		})
	}
}

func TestNormalize(t *testing.T) {
	in := "\n\n  OFXHEADER:100\n<SEVERITY>Warn</SEVERITY>\n<BANKTRANLIST\n<NAME>x\n"
	assert.Equal(t, "OFXHEADER:100\n<SEVERITY>WARN</SEVERITY>\n<BANKTRANLIST>\n<NAME>x\n", normalize(in))
}
