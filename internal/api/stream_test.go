package api

import "testing"

func TestClientWants(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		interest map[string]bool
		evtType  string
		want     bool
	}{
		{"no filter accepts everything", nil, "opportunity_detected", true},
		{"empty filter accepts everything", map[string]bool{}, "risk_rejected", true},
		{"matching filter accepts", map[string]bool{"execution_completed": true}, "execution_completed", true},
		{"non-matching filter rejects", map[string]bool{"execution_completed": true}, "risk_rejected", false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := &Client{interest: tt.interest}
			if got := c.wants(tt.evtType); got != tt.want {
				t.Fatalf("wants(%q) = %v, want %v", tt.evtType, got, tt.want)
			}
		})
	}
}
