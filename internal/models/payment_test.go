package models

import "testing"

func TestIsValidPaymentTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		// Happy path
		{PaymentStatusPending, PaymentStatusPaid, true},
		{PaymentStatusPaid, PaymentStatusAccepted, true},

		// Rejection paths
		{PaymentStatusPending, PaymentStatusRejected, true},
		{PaymentStatusPaid, PaymentStatusRejected, true},
		{PaymentStatusAccepted, PaymentStatusRejected, true},

		// Invalid transitions
		{PaymentStatusPending, PaymentStatusAccepted, false},
		{PaymentStatusPaid, PaymentStatusPending, false},
		{PaymentStatusAccepted, PaymentStatusPaid, false},
		{PaymentStatusRejected, PaymentStatusPending, false},
		{PaymentStatusRejected, PaymentStatusPaid, false},
		{"nonexistent", PaymentStatusPaid, false},
		{PaymentStatusPending, "nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidPaymentTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidPaymentTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestIsValidCampaignTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		{CampaignStatusPending, CampaignStatusActive, true},
		{CampaignStatusPending, CampaignStatusCancelled, true},
		{CampaignStatusActive, CampaignStatusClosed, true},
		{CampaignStatusActive, CampaignStatusCancelled, true},

		{CampaignStatusPending, CampaignStatusClosed, false},
		{CampaignStatusClosed, CampaignStatusActive, false},
		{CampaignStatusCancelled, CampaignStatusActive, false},
		{CampaignStatusActive, CampaignStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidCampaignTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidCampaignTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestIsValidApplicationTransition(t *testing.T) {
	tests := []struct {
		from     string
		to       string
		expected bool
	}{
		{ApplicationStatusPending, ApplicationStatusAccepted, true},
		{ApplicationStatusPending, ApplicationStatusRejected, true},
		{ApplicationStatusAccepted, ApplicationStatusPublished, true},
		// Пост удалён до выплаты: публикация откатывается
		{ApplicationStatusPublished, ApplicationStatusAccepted, true},

		{ApplicationStatusRejected, ApplicationStatusAccepted, false},
		{ApplicationStatusPublished, ApplicationStatusPending, false},
		{ApplicationStatusPending, ApplicationStatusPublished, false},
	}

	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			result := IsValidApplicationTransition(tt.from, tt.to)
			if result != tt.expected {
				t.Errorf("IsValidApplicationTransition(%q, %q) = %v, want %v", tt.from, tt.to, result, tt.expected)
			}
		})
	}
}

func TestTerminalStatusesHaveNoTransitions(t *testing.T) {
	if len(ValidPaymentTransitions[PaymentStatusRejected]) != 0 {
		t.Errorf("rejected payment should have no transitions")
	}
	for _, status := range []string{CampaignStatusClosed, CampaignStatusCancelled} {
		if len(ValidCampaignTransitions[status]) != 0 {
			t.Errorf("terminal campaign status %q should have no transitions", status)
		}
	}
	if len(ValidApplicationTransitions[ApplicationStatusRejected]) != 0 {
		t.Errorf("rejected application should have no transitions")
	}
}
