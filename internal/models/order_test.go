package models

import "testing"

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		// Happy path
		{OrderStatusPending, OrderStatusActive, true},
		{OrderStatusActive, OrderStatusDelivered, true},
		{OrderStatusDelivered, OrderStatusCompleted, true},
		{OrderStatusActive, OrderStatusCompleted, true},

		// Seller can deliver before payment lands
		{OrderStatusPending, OrderStatusDelivered, true},

		// Cancellation paths
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusActive, OrderStatusCancelled, true},
		{OrderStatusDelivered, OrderStatusCancelled, true},

		// Disputes
		{OrderStatusActive, OrderStatusDisputed, true},
		{OrderStatusDelivered, OrderStatusDisputed, true},
		{OrderStatusDisputed, OrderStatusCompleted, true},
		{OrderStatusDisputed, OrderStatusRefunded, true},

		// Admin force paths
		{OrderStatusPending, OrderStatusCompleted, true},

		// Invalid transitions
		{OrderStatusPending, OrderStatusDisputed, false},
		{OrderStatusPending, OrderStatusRefunded, false},
		{OrderStatusActive, OrderStatusRefunded, false},
		{OrderStatusDisputed, OrderStatusCancelled, false},
		{OrderStatusDisputed, OrderStatusActive, false},
		{OrderStatusCompleted, OrderStatusCancelled, false},
		{OrderStatusCompleted, OrderStatusRefunded, false},
		{OrderStatusCancelled, OrderStatusActive, false},
		{OrderStatusRefunded, OrderStatusCompleted, false},
		{OrderStatusDelivered, OrderStatusActive, false},
		{"nonexistent", OrderStatusActive, false},
		{OrderStatusPending, "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestAllStatusesHaveTransitionEntry(t *testing.T) {
	allStatuses := []string{
		OrderStatusPending, OrderStatusActive, OrderStatusDelivered,
		OrderStatusCompleted, OrderStatusCancelled, OrderStatusDisputed, OrderStatusRefunded,
	}

	for _, status := range allStatuses {
		if _, ok := ValidOrderTransitions[status]; !ok {
			t.Errorf("status %q missing from ValidOrderTransitions map", status)
		}
	}
}

func TestTerminalStatusesHaveNoTransitions(t *testing.T) {
	terminal := []string{OrderStatusCompleted, OrderStatusCancelled, OrderStatusRefunded}
	for _, status := range terminal {
		if !IsTerminalStatus(status) {
			t.Errorf("status %q should be terminal", status)
		}
		if transitions := ValidOrderTransitions[status]; len(transitions) != 0 {
			t.Errorf("terminal status %q should have no transitions, got %v", status, transitions)
		}
	}

	nonTerminal := []string{OrderStatusPending, OrderStatusActive, OrderStatusDelivered, OrderStatusDisputed}
	for _, status := range nonTerminal {
		if IsTerminalStatus(status) {
			t.Errorf("status %q should not be terminal", status)
		}
	}
}
