package services

import (
	"context"
	"time"

	"aicavalli-order-service/internal/auth"
	"aicavalli-order-service/internal/domain"
	"aicavalli-order-service/internal/utils"

	"github.com/shopspring/decimal"
)

type Dashboard struct {
	From          time.Time            `json:"from"`
	To            time.Time            `json:"to"`
	OrdersByState []domain.StatusCount `json:"ordersByStatus"`
	TotalOrders   int                  `json:"totalOrders"`
	BillCount     int                  `json:"billCount"`
	Revenue       decimal.Decimal      `json:"revenue"`
	Discounts     decimal.Decimal      `json:"discounts"`
	AverageBill   decimal.Decimal      `json:"averageBill"`
	TopItems      []domain.TopItem     `json:"topItems"`
}

type AnalyticsService struct {
	store AnalyticsStore
	loc   *time.Location
	now   func() time.Time
}

func NewAnalyticsService(store AnalyticsStore, loc *time.Location, now func() time.Time) *AnalyticsService {
	if loc == nil {
		loc = time.UTC
	}
	return &AnalyticsService{store: store, loc: loc, now: clock(now)}
}

// Dashboard aggregates orders and bills in [from, to). Zero bounds default to today in
// the restaurant timezone.
func (s *AnalyticsService) Dashboard(ctx context.Context, actor *domain.Actor, from, to time.Time) (Dashboard, error) {
	if err := requireCapability(actor, auth.CapAdminManage); err != nil {
		return Dashboard{}, err
	}
	if from.IsZero() || to.IsZero() {
		start, end := utils.DayBounds(s.now(), s.loc)
		if from.IsZero() {
			from = start
		}
		if to.IsZero() {
			to = end
		}
	}
	if !to.After(from) {
		return Dashboard{}, domain.ValidationError("to must be after from", nil)
	}
	if to.Sub(from) > 366*24*time.Hour {
		return Dashboard{}, domain.ValidationError("Range is limited to one year", nil)
	}

	counts, err := s.store.OrderCountsByStatus(ctx, from, to)
	if err != nil {
		return Dashboard{}, domain.AsError(err)
	}
	bills, err := s.store.BillAggregate(ctx, from, to)
	if err != nil {
		return Dashboard{}, domain.AsError(err)
	}
	top, err := s.store.TopItems(ctx, from, to, 5)
	if err != nil {
		return Dashboard{}, domain.AsError(err)
	}

	out := Dashboard{
		From:          from,
		To:            to,
		OrdersByState: counts,
		BillCount:     bills.Count,
		Revenue:       domain.Round2(bills.Revenue),
		Discounts:     domain.Round2(bills.Discounts),
		AverageBill:   decimal.Zero,
		TopItems:      top,
	}
	for _, c := range counts {
		out.TotalOrders += c.Count
	}
	if bills.Count > 0 {
		out.AverageBill = domain.Round2(bills.Revenue.Div(decimal.NewFromInt(int64(bills.Count))))
	}
	return out, nil
}
