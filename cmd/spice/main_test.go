package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cliEnv runs commands against a throwaway database and data directory.
type cliEnv struct {
	t     *testing.T
	db    string
	dir   string
	input string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_DATA_HOME", filepath.Join(dir, "data"))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	for _, name := range []string{
		"SPICE_USER", "USER_ID", "SPICE_SESSION", "SPICE_SESSION_TOKEN",
		"SPICE_LLM_API_KEY", "SPICE_LLM_PROVIDER", "ANTHROPIC_API_KEY", "OPENAI_API_KEY",
		"SPICE_DATABASE_PATH", "DATABASE_PATH", "SIMPLEFIN_TOKEN", "SPICE_SIMPLEFIN_ACCESS_URL",
	} {
		t.Setenv(name, "")
	}
	return &cliEnv{t: t, db: filepath.Join(dir, "ledger.db"), dir: dir}
}

func (e *cliEnv) run(args ...string) (string, error) {
	e.t.Helper()
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(e.input))
	root.SetArgs(append([]string{"--db", e.db}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *cliEnv) must(args ...string) string {
	e.t.Helper()
	out, err := e.run(args...)
	require.NoError(e.t, err, "spice %s\n%s", strings.Join(args, " "), out)
	return out
}

// as runs a command as a passwordless user.
func (e *cliEnv) as(user string, args ...string) string {
	e.t.Helper()
	return e.must(append([]string{"--user", user}, args...)...)
}

func seedUser(t *testing.T) *cliEnv {
	t.Helper()
	env := newCLIEnv(t)
	env.must("user", "create", "alice", "--name", "Alice")
	env.as("alice", "account", "add", "Checking", "--balance", "5000")
	return env
}

func TestVersion(t *testing.T) {
	env := newCLIEnv(t)
	out := env.must("version")
	assert.Equal(t, "spice dev\n", out)
}

func TestCommandsRequireASession(t *testing.T) {
	env := newCLIEnv(t)
	_, err := env.run("account", "list")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrUnauthorized)
	assert.Contains(t, errorMessage(err), "not logged in")
}

func TestLoginWithPassword(t *testing.T) {
	env := newCLIEnv(t)
	env.must("user", "create", "bob", "--password", "hunter22")

	_, err := env.run("--user", "bob", "account", "list")
	assert.ErrorIs(t, err, common.ErrUnauthorized, "password users must log in")

	_, err = env.run("user", "login", "bob", "--password", "wrong")
	assert.ErrorIs(t, err, common.ErrUnauthorized)

	out := env.must("user", "login", "bob", "--password", "hunter22")
	assert.Contains(t, out, "Logged in as bob")

	out = env.must("user", "whoami")
	assert.Contains(t, out, "bob")
	assert.Contains(t, out, "Authenticated via: session")

	out = env.must("user", "logout")
	assert.Contains(t, out, "Logged out.")
	_, err = env.run("user", "whoami")
	assert.Error(t, err)
}

func TestTransactionsAndBudgets(t *testing.T) {
	env := seedUser(t)

	out := env.as("alice", "txn", "add", "475", "Whole Foods", "--category", "Groceries")
	assert.Contains(t, out, "Recorded #1")
	env.as("alice", "txn", "add", "2400", "Employer", "--type", "income", "--category", "Salary")

	out = env.as("alice", "account", "list")
	assert.Contains(t, out, "Checking")
	assert.Contains(t, out, "$6925.00")

	out = env.as("alice", "budget", "set", "Groceries", "500")
	assert.Contains(t, out, "Budget for Groceries: $500.00 a month, alert at 90%")

	out = env.as("alice", "budget", "status")
	assert.Contains(t, out, "Groceries is at 95% of its limit")

	env.as("alice", "txn", "add", "125", "Trader Joes", "--category", "Groceries")
	out = env.as("alice", "budget", "status", "Groceries")
	assert.Contains(t, out, "Groceries is over by $100.00")

	out = env.as("alice", "txn", "search", "--category", "Groceries")
	assert.Contains(t, out, "Whole Foods")
	assert.Contains(t, out, "Trader Joes")
	assert.NotContains(t, out, "Employer")
}

func TestDestructiveCommandsConfirm(t *testing.T) {
	env := seedUser(t)
	env.as("alice", "budget", "set", "Dining", "200")

	out := env.as("alice", "budget", "delete", "Dining")
	assert.Contains(t, out, "Cancelled.", "no input declines")
	assert.Contains(t, env.as("alice", "budget", "list"), "Dining")

	env.input = "y\n"
	out = env.as("alice", "budget", "delete", "Dining")
	assert.Contains(t, out, "Deleted the Dining budget")

	env.input = ""
	env.as("alice", "budget", "set", "Travel", "300")
	out = env.as("alice", "budget", "delete", "Travel", "--yes")
	assert.Contains(t, out, "Deleted the Travel budget")
}

func TestRecurringCharges(t *testing.T) {
	env := seedUser(t)

	out := env.as("alice", "recurring", "add", "Netflix", "15.49", "--category", "Entertainment")
	assert.Contains(t, out, "Tracking Netflix (id 1)")

	_, err := env.run("--user", "alice", "recurring", "add", "Gym", "40", "--day", "32")
	assert.ErrorIs(t, err, common.ErrValidation)

	out = env.as("alice", "recurring", "list")
	assert.Contains(t, out, "Netflix")
	assert.Contains(t, out, "$15.49")

	out = env.as("alice", "recurring", "pause", "Netflix")
	assert.Contains(t, out, "Netflix")
	out = env.as("alice", "recurring", "list", "--status", "paused")
	assert.Contains(t, out, "Netflix")
}

func TestPurchasesAndGoals(t *testing.T) {
	env := seedUser(t)

	out := env.as("alice", "purchase", "add", "Laptop", "1200", "--priority", "2")
	assert.Contains(t, out, `Planned "Laptop" (id 1): $1200.00, High Priority`)
	env.as("alice", "purchase", "add", "Sailboat", "9000", "--priority", "5")

	out = env.as("alice", "purchase", "list", "--afford")
	assert.Contains(t, out, "Laptop")
	assert.Contains(t, out, "$3800.00")

	out = env.as("alice", "purchase", "recommend")
	assert.Contains(t, out, "Buy soon")
	assert.Contains(t, out, "Skip or delay")
	assert.Contains(t, out, "1 to buy soon, 1 to skip/delay")

	out = env.as("alice", "purchase", "bought", "1", "--account", "Checking", "--cost", "1150")
	assert.Contains(t, out, "Bought Laptop for $1150.00 (transaction 1)")
	assert.Contains(t, env.as("alice", "account", "list"), "$3850.00")

	out = env.as("alice", "goal", "add", "Emergency fund", "1000")
	assert.Contains(t, out, `Goal "Emergency fund" (id 1)`)
	out = env.as("alice", "goal", "contribute", "Emergency fund", "1000")
	assert.Contains(t, out, "Goal reached!")
}

func TestImportAndExportCSV(t *testing.T) {
	env := seedUser(t)

	input := filepath.Join(env.dir, "bank.csv")
	require.NoError(t, os.WriteFile(input, []byte(
		"date,merchant,amount,category\n"+
			"2026-09-01,Coffee Shop,4.50,Dining\n"+
			"2026-09-02,Grocer,82.10,Groceries\n"+
			"not-a-date,Broken,1.00,\n"), 0o600))

	out := env.as("alice", "import", "csv", input, "--dry-run")
	assert.Contains(t, out, "Would import 2 transactions into Checking")
	assert.Contains(t, env.as("alice", "txn", "list"), "No transactions", "dry run writes nothing")

	out = env.as("alice", "import", "csv", input)
	assert.Contains(t, out, "Imported 2 transactions into Checking")

	out = env.as("alice", "import", "csv", input)
	assert.Contains(t, out, "Imported 0 transactions")
	assert.Contains(t, out, "2 already in the ledger")

	output := filepath.Join(env.dir, "out.csv")
	out = env.as("alice", "export", "csv", "--month", "2026-09", "-o", output)
	assert.Contains(t, out, "Exported 2 transactions to "+output)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,date,merchant,category,amount,type,account_id,description,notes", lines[0])
	assert.Contains(t, string(data), "Coffee Shop,Dining,4.50,expense")

	_, err = env.run("--user", "alice", "export", "csv", "--month", "2026-09", "--from", "2026-09-01")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestImportSimpleFIN(t *testing.T) {
	posted := time.Date(2026, time.September, 5, 12, 0, 0, 0, time.UTC).Unix()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/accounts") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprintf(w, `{"errors": [], "accounts": [{"id": "ACT-1", "name": "Checking", "balance": "10.00", "transactions": [
  {"id": "T1", "amount": "-12.75", "description": "Corner Deli", "posted": %d},
  {"id": "T2", "amount": "-3.00", "description": "Pending", "posted": 0, "pending": true}
]}]}`, posted)
	}))
	defer srv.Close()

	env := seedUser(t)
	_, err := env.run("--user", "alice", "import", "simplefin")
	assert.ErrorIs(t, err, common.ErrInvalidConfig)

	t.Setenv("SPICE_SIMPLEFIN_ACCESS_URL", srv.URL)
	out := env.as("alice", "import", "simplefin", "--from", "2026-09-01", "--to", "2026-09-30")
	assert.Contains(t, out, "Imported 1 transactions into Checking")

	out = env.as("alice", "import", "simplefin", "--from", "2026-09-01", "--to", "2026-09-30")
	assert.Contains(t, out, "1 already in the ledger")

	_, err = env.run("--user", "alice", "import", "simplefin", "--from", "2026-09-30", "--to", "2026-09-01")
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestAffordNeedsALanguageModel(t *testing.T) {
	env := seedUser(t)
	_, err := env.run("--user", "alice", "afford", "can I afford $50 dinner")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestMigrateStatus(t *testing.T) {
	env := newCLIEnv(t)
	out := env.must("migrate")
	assert.Contains(t, out, "from version 0 to 5")

	out = env.must("migrate")
	assert.Contains(t, out, "Schema already at version 5")

	out = env.must("migrate", "--status")
	assert.Contains(t, out, "Merchant category rules")
	assert.Contains(t, out, "schema version 5 of 5")
}

func TestParseThreshold(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "0.8", want: "0.8"},
		{in: "80", want: "0.8"},
		{in: "1", want: "1"},
		{in: "95.5", want: "0.955"},
		{in: "lots", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseThreshold(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestErrorMessage(t *testing.T) {
	plain := fmt.Errorf("wrapped: %w", common.ErrNotFound)
	assert.Equal(t, plain.Error(), errorMessage(plain))

	friendly := fmt.Errorf("context: %w", common.NewUserError("try again", errors.New("boom")))
	assert.Equal(t, "try again", errorMessage(friendly))
}
