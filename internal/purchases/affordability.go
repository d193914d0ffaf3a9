package purchases

import (
	"context"
	"fmt"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/shopspring/decimal"
)

// urgentDays is how close a deadline must be for a purchase to count as urgent.
const urgentDays = 7

// Listing is a purchase with its place in the running balance.
type Listing struct {
	BalanceAfter decimal.Decimal
	model.Purchase
	CanAfford bool
}

// PriorityBucket totals the planned purchases at one priority.
type PriorityBucket struct {
	TotalCost    decimal.Decimal
	BalanceAfter decimal.Decimal
	Label        string
	Priority     int
	Count        int
	CanAffordAll bool
}

// Analysis splits planned purchases into what the balance covers and what it
// does not, taking them in priority order.
type Analysis struct {
	TotalBalance decimal.Decimal
	TotalPlanned decimal.Decimal
	ByPriority   []PriorityBucket
	Affordable   []model.Purchase
	Unaffordable []model.Purchase
	CanAffordAll bool
}

// Recommendations sorts planned purchases by when to buy them.
type Recommendations struct {
	Analysis *Analysis
	Summary  string
	Now      []model.Purchase
	Soon     []model.Purchase
	Later    []model.Purchase
	Skip     []model.Purchase
}

// List returns purchases matching filter. An empty status means planned. With
// affordability each row carries the balance left after buying it and every
// row before it that was affordable.
func (s *Service) List(ctx context.Context, session model.Session, filter model.PurchaseFilter, withAffordability bool) ([]Listing, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	if filter.Status == "" {
		filter.Status = model.PurchasePlanned
	}
	if filter.SortBy == "" {
		filter.SortBy = model.SortByPriority
	}
	purchases, err := s.storage.ListPurchases(ctx, session.UserID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}

	out := make([]Listing, len(purchases))
	for i, p := range purchases {
		out[i] = Listing{Purchase: p}
	}
	if !withAffordability {
		return out, nil
	}

	running, err := s.totalBalance(ctx, session)
	if err != nil {
		return nil, err
	}
	for i := range out {
		cost := out[i].EstimatedCost
		out[i].CanAfford = running.GreaterThanOrEqual(cost)
		out[i].BalanceAfter = running.Sub(cost)
		if out[i].CanAfford {
			running = running.Sub(cost)
		}
	}
	return out, nil
}

func (s *Service) totalBalance(ctx context.Context, session model.Session) (decimal.Decimal, error) {
	accounts, err := s.storage.ListAccounts(ctx, session.UserID, true)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to load accounts: %w", err)
	}
	total := decimal.Zero
	for _, a := range accounts {
		total = total.Add(a.Balance)
	}
	return total, nil
}

// AffordabilityAnalysis measures the planned list against the total balance of
// active accounts.
func (s *Service) AffordabilityAnalysis(ctx context.Context, session model.Session) (*Analysis, error) {
	if err := session.Require(); err != nil {
		return nil, err
	}
	planned, err := s.storage.ListPurchases(ctx, session.UserID, model.PurchaseFilter{
		Status: model.PurchasePlanned,
		SortBy: model.SortByPriority,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases: %w", err)
	}
	balance, err := s.totalBalance(ctx, session)
	if err != nil {
		return nil, err
	}
	return analyze(balance, planned), nil
}

func analyze(balance decimal.Decimal, planned []model.Purchase) *Analysis {
	a := &Analysis{TotalBalance: balance, TotalPlanned: decimal.Zero}
	for _, p := range planned {
		a.TotalPlanned = a.TotalPlanned.Add(p.EstimatedCost)
	}

	running := balance
	for priority := model.MinPurchasePriority; priority <= model.MaxPurchasePriority; priority++ {
		bucket := PriorityBucket{Priority: priority, Label: model.PriorityLabel(priority), TotalCost: decimal.Zero}
		for _, p := range planned {
			if p.Priority == priority {
				bucket.Count++
				bucket.TotalCost = bucket.TotalCost.Add(p.EstimatedCost)
			}
		}
		bucket.CanAffordAll = running.GreaterThanOrEqual(bucket.TotalCost)
		bucket.BalanceAfter = running.Sub(bucket.TotalCost)
		if bucket.CanAffordAll {
			running = running.Sub(bucket.TotalCost)
		}
		a.ByPriority = append(a.ByPriority, bucket)
	}

	running = balance
	for _, p := range planned {
		if running.GreaterThanOrEqual(p.EstimatedCost) {
			a.Affordable = append(a.Affordable, p)
			running = running.Sub(p.EstimatedCost)
		} else {
			a.Unaffordable = append(a.Unaffordable, p)
		}
	}
	a.CanAffordAll = len(a.Unaffordable) == 0
	return a
}

// Recommendations decides, for every planned purchase, whether to buy it now,
// soon, later or not at all. Critical purchases with a close deadline are
// "now" even when unaffordable; wants are skipped while critical purchases
// cannot all be covered.
func (s *Service) Recommendations(ctx context.Context, session model.Session) (*Recommendations, error) {
	analysis, err := s.AffordabilityAnalysis(ctx, session)
	if err != nil {
		return nil, err
	}
	rec := &Recommendations{Analysis: analysis}
	if len(analysis.Affordable)+len(analysis.Unaffordable) == 0 {
		rec.Summary = "No planned purchases found"
		return rec, nil
	}

	affordable := make(map[int64]bool, len(analysis.Affordable))
	for _, p := range analysis.Affordable {
		affordable[p.ID] = true
	}
	criticalCovered := analysis.ByPriority[0].CanAffordAll
	today := s.today()

	for _, p := range append(append([]model.Purchase(nil), analysis.Affordable...), analysis.Unaffordable...) {
		canAfford := affordable[p.ID]
		urgent := p.Deadline != nil && model.DaysBetween(today, *p.Deadline) <= urgentDays

		switch {
		case p.Priority <= 2:
			switch {
			case urgent:
				rec.Now = append(rec.Now, p)
			case canAfford:
				rec.Soon = append(rec.Soon, p)
			default:
				rec.Later = append(rec.Later, p)
			}
		case p.Priority == 3:
			switch {
			case canAfford && urgent:
				rec.Now = append(rec.Now, p)
			case canAfford:
				rec.Soon = append(rec.Soon, p)
			default:
				rec.Later = append(rec.Later, p)
			}
		default:
			if canAfford && criticalCovered {
				rec.Later = append(rec.Later, p)
			} else {
				rec.Skip = append(rec.Skip, p)
			}
		}
	}

	var parts []string
	if n := len(rec.Now); n > 0 {
		parts = append(parts, fmt.Sprintf("%d to buy now", n))
	}
	if n := len(rec.Soon); n > 0 {
		parts = append(parts, fmt.Sprintf("%d to buy soon", n))
	}
	if n := len(rec.Skip); n > 0 {
		parts = append(parts, fmt.Sprintf("%d to skip/delay", n))
	}
	rec.Summary = "No recommendations"
	if len(parts) > 0 {
		rec.Summary = strings.Join(parts, ", ")
	}
	return rec, nil
}
