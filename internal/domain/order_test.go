package domain

import "testing"

func TestOrderStatusIsValid(t *testing.T) {
	valid := []OrderStatus{
		OrderStatusPending, OrderStatusConfirmed, OrderStatusShipping, OrderStatusCompleted,
		OrderStatusCancelled, OrderStatusRefundRequested, OrderStatusRefunding, OrderStatusRefunded,
	}
	for _, s := range valid {
		if !s.IsValid() {
			t.Errorf("%s should be valid", s)
		}
	}
	for _, s := range []OrderStatus{"", "unknown", "PENDING"} {
		if s.IsValid() {
			t.Errorf("%q should be invalid", s)
		}
	}
}

func TestOrderStatusIsTerminal(t *testing.T) {
	terminal := map[OrderStatus]bool{
		OrderStatusPending:         false,
		OrderStatusConfirmed:       false,
		OrderStatusShipping:        false,
		OrderStatusCompleted:       true,
		OrderStatusCancelled:       true,
		OrderStatusRefundRequested: false,
		OrderStatusRefunding:       false,
		OrderStatusRefunded:        true,
	}
	for s, want := range terminal {
		if got := s.IsTerminal(); got != want {
			t.Errorf("%s.IsTerminal() = %v, want %v", s, got, want)
		}
	}
}

func TestOrderStatusIsStockConsuming(t *testing.T) {
	consuming := map[OrderStatus]bool{
		OrderStatusPending:         false,
		OrderStatusConfirmed:       true,
		OrderStatusShipping:        true,
		OrderStatusCompleted:       true,
		OrderStatusCancelled:       false,
		OrderStatusRefundRequested: false,
		OrderStatusRefunding:       false,
		OrderStatusRefunded:        false,
	}
	for s, want := range consuming {
		if got := s.IsStockConsuming(); got != want {
			t.Errorf("%s.IsStockConsuming() = %v, want %v", s, got, want)
		}
	}
}

func TestDefaultTransitionTable(t *testing.T) {
	table := DefaultTransitionTable()

	allowed := []struct{ from, to OrderStatus }{
		{OrderStatusPending, OrderStatusConfirmed},
		{OrderStatusPending, OrderStatusCancelled},
		{OrderStatusPending, OrderStatusRefundRequested},
		{OrderStatusConfirmed, OrderStatusShipping},
		{OrderStatusConfirmed, OrderStatusCompleted},
		{OrderStatusConfirmed, OrderStatusCancelled},
		{OrderStatusConfirmed, OrderStatusRefundRequested},
		{OrderStatusShipping, OrderStatusCompleted},
		{OrderStatusShipping, OrderStatusCancelled},
		{OrderStatusShipping, OrderStatusRefundRequested},
		{OrderStatusRefundRequested, OrderStatusRefunding},
		{OrderStatusRefundRequested, OrderStatusRefunded},
		{OrderStatusRefundRequested, OrderStatusCancelled},
		{OrderStatusRefunding, OrderStatusRefunded},
	}
	for _, tr := range allowed {
		if !table.CanTransition(tr.from, tr.to) {
			t.Errorf("transition %s -> %s should be allowed", tr.from, tr.to)
		}
	}

	denied := []struct{ from, to OrderStatus }{
		{OrderStatusPending, OrderStatusShipping},
		{OrderStatusPending, OrderStatusCompleted},
		{OrderStatusConfirmed, OrderStatusPending},
		{OrderStatusShipping, OrderStatusConfirmed},
		{OrderStatusRefunding, OrderStatusCancelled},
		{OrderStatusCancelled, OrderStatusPending},
		{OrderStatusRefunded, OrderStatusRefunding},
	}
	for _, tr := range denied {
		if table.CanTransition(tr.from, tr.to) {
			t.Errorf("transition %s -> %s should be denied", tr.from, tr.to)
		}
	}

	// 终态无出边
	for _, s := range []OrderStatus{OrderStatusCompleted, OrderStatusCancelled, OrderStatusRefunded} {
		if len(table[s]) != 0 {
			t.Errorf("terminal status %s has outgoing transitions: %v", s, table[s])
		}
	}
}

func TestComputeDerived(t *testing.T) {
	tests := []struct {
		name       string
		quantity   int
		unitPrice  float64
		costPrice  float64
		otherCosts float64
		wantSales  float64
		wantCost   float64
		wantProfit float64
	}{
		{"basic", 10, 120, 50, 30, 1200, 530, 670},
		{"zero other costs", 3, 15.5, 10, 0, 46.5, 30, 16.5},
		{"loss making", 2, 8, 10, 5, 16, 25, -9},
		{"rounds to cents", 3, 9.999, 3.333, 0, 30, 10, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := &Order{Quantity: tt.quantity, UnitPrice: tt.unitPrice, OtherCosts: tt.otherCosts}
			order.ComputeDerived(tt.costPrice)

			if order.SalesAmount != tt.wantSales {
				t.Errorf("sales_amount = %v, want %v", order.SalesAmount, tt.wantSales)
			}
			if order.TotalCost != tt.wantCost {
				t.Errorf("total_cost = %v, want %v", order.TotalCost, tt.wantCost)
			}
			if order.GrossProfit != tt.wantProfit {
				t.Errorf("gross_profit = %v, want %v", order.GrossProfit, tt.wantProfit)
			}
		})
	}
}

func TestOrderStatusLabel(t *testing.T) {
	if got := OrderStatusPending.Label(); got != "待确认" {
		t.Errorf("label = %q, want 待确认", got)
	}
	if got := OrderStatus("unknown").Label(); got != "unknown" {
		t.Errorf("unknown label = %q, want raw value", got)
	}
}
