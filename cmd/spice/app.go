package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/spice-ledger/internal/advisor"
	"github.com/Veraticus/spice-ledger/internal/analytics"
	"github.com/Veraticus/spice-ledger/internal/auth"
	"github.com/Veraticus/spice-ledger/internal/budget"
	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/config"
	"github.com/Veraticus/spice-ledger/internal/goals"
	"github.com/Veraticus/spice-ledger/internal/ledger"
	"github.com/Veraticus/spice-ledger/internal/llm"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/purchases"
	"github.com/Veraticus/spice-ledger/internal/recurring"
	"github.com/Veraticus/spice-ledger/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app bundles the services one command invocation needs.
type app struct {
	store     *storage.SQLiteStorage
	generator llm.Generator
	auth      *auth.Service
	ledger    *ledger.Service
	importer  *ledger.Importer
	budgets   *budget.Service
	recurring *recurring.Service
	analytics *analytics.Service
	goals     *goals.Service
	purchases *purchases.Service
	advisor   *advisor.Advisor
	prompter  *cli.Prompter
	out       io.Writer
	session   model.Session
}

// openApp opens and migrates the database and builds every service. It does
// not resolve a session.
func openApp(cmd *cobra.Command) (*app, error) {
	ctx := cmd.Context()
	v := viper.GetViper()

	store, err := storage.NewSQLiteStorage(config.DatabasePath(v))
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	var generator llm.Generator
	if client, err := llm.NewClient(config.LoadLLMConfig(v)); err != nil {
		slog.Debug("Language model unavailable", "error", err)
	} else {
		generator = client
	}

	a := &app{
		store:     store,
		generator: generator,
		auth:      auth.NewService(store, v.GetDuration("session.ttl")),
		ledger:    ledger.NewService(store).WithParser(advisor.NewParser(generator)),
		importer:  ledger.NewImporter(store),
		budgets:   budget.NewService(store),
		recurring: recurring.NewService(store),
		analytics: analytics.NewService(store),
		purchases: purchases.NewService(store),
		prompter:  cli.NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout()),
		out:       cmd.OutOrStdout(),
	}
	a.goals = goals.NewService(store, a.analytics)
	a.advisor = advisor.New(advisor.Deps{
		Accounts:  store,
		Budgets:   a.budgets,
		Recurring: a.recurring,
		Spending:  a.analytics,
		Generator: generator,
	})
	return a, nil
}

// openSession opens the app and resolves the acting user. --user (or
// SPICE_USER) wins over the token saved by `spice user login`.
func openSession(cmd *cobra.Command) (*app, error) {
	a, err := openApp(cmd)
	if err != nil {
		return nil, err
	}
	session, err := a.resolveSession(cmd.Context())
	if err != nil {
		a.Close()
		return nil, err
	}
	a.session = session
	return a, nil
}

func (a *app) resolveSession(ctx context.Context) (model.Session, error) {
	if user := strings.TrimSpace(viper.GetString("user")); user != "" {
		return a.auth.SessionForUser(ctx, user)
	}

	token := viper.GetString("session.token")
	if token == "" {
		data, err := os.ReadFile(config.SessionFile())
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return model.Session{}, fmt.Errorf("failed to read session: %w", err)
		}
		token = strings.TrimSpace(string(data))
	}
	if token == "" {
		return model.Session{}, common.NewUserError(
			"not logged in: run 'spice user login <username>' or pass --user", common.ErrUnauthorized)
	}
	return a.auth.Resolve(ctx, token)
}

// Close releases the database.
func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		slog.Warn("Failed to close database", "error", err)
	}
}

func (a *app) requireGenerator() error {
	if a.generator == nil {
		return common.NewUserError(
			"no language model configured: set SPICE_LLM_API_KEY (or ANTHROPIC_API_KEY), or set SPICE_LLM_PROVIDER=ollama",
			common.ErrInvalidConfig)
	}
	return nil
}

// confirm asks before a destructive action unless --yes was given.
func (a *app) confirm(cmd *cobra.Command, question string) (bool, error) {
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		return true, nil
	}
	ok, err := a.prompter.Confirm(cmd.Context(), question)
	if err != nil {
		return false, err
	}
	if !ok {
		fmt.Fprintln(a.out, cli.FormatInfo("Cancelled."))
	}
	return ok, nil
}

// account resolves an account by id or name.
func (a *app) account(ctx context.Context, ref string) (*model.Account, error) {
	if id, err := strconv.ParseInt(strings.TrimSpace(ref), 10, 64); err == nil {
		acct, err := a.ledger.GetAccount(ctx, a.session, id)
		if err == nil || !errors.Is(err, common.ErrNotFound) {
			return acct, err
		}
	}
	return a.ledger.GetAccountByName(ctx, a.session, ref)
}

// defaultAccount resolves ref, or picks the only active account when ref is
// empty.
func (a *app) defaultAccount(ctx context.Context, ref string) (*model.Account, error) {
	if ref != "" {
		return a.account(ctx, ref)
	}
	accounts, err := a.ledger.ListAccounts(ctx, a.session, true)
	if err != nil {
		return nil, err
	}
	if len(accounts) == 1 {
		return &accounts[0], nil
	}
	return nil, common.Validationf("--account is required when you have %d active accounts", len(accounts))
}

func (a *app) now() time.Time {
	return time.Now()
}

func addYesFlag(cmd *cobra.Command) {
	cmd.Flags().BoolP("yes", "y", false, "skip the confirmation prompt")
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, common.Validationf("invalid id %q", s)
	}
	return id, nil
}

func parseMoney(s string) (decimal.Decimal, error) {
	return model.ParseAmount(s)
}

// optionalMoney parses s when the flag was set.
func optionalMoney(cmd *cobra.Command, flag, s string) (*decimal.Decimal, error) {
	if !cmd.Flags().Changed(flag) {
		return nil, nil
	}
	d, err := parseMoney(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// optionalDate parses s when it is not empty.
func optionalDate(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := model.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// changedString returns a pointer to s when the flag was set.
func changedString(cmd *cobra.Command, flag, s string) *string {
	if !cmd.Flags().Changed(flag) {
		return nil
	}
	return &s
}

func changedInt(cmd *cobra.Command, flag string, n int) *int {
	if !cmd.Flags().Changed(flag) {
		return nil
	}
	return &n
}

func dateOrDash(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return model.FormatDate(*t)
}

func money(d decimal.Decimal) string {
	return model.FormatMoney(d)
}
