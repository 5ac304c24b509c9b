package evalerr

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestClassification(t *testing.T) {
	cause := errors.New("connection refused")

	tests := []struct {
		name          string
		err           error
		config        bool
		transient     bool
		unavailable   bool
		wantSubstring string
	}{
		{
			name:          "configuration",
			err:           Configf("pillars.security.threshold", "must be in [0, 1], got %v", 1.5),
			config:        true,
			wantSubstring: "pillars.security.threshold",
		},
		{
			name:          "transient wrapped",
			err:           fmt.Errorf("scan: %w", Transient("secret_scan", cause)),
			transient:     true,
			wantSubstring: "tool secret_scan",
		},
		{
			name:          "provider unavailable inside agent error",
			err:           &AgentExecutionError{Worker: "performance", Phase: PhaseExecute, Err: &ProviderUnavailableError{Provider: "anthropic", Err: cause}},
			unavailable:   true,
			wantSubstring: "during execute",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConfiguration(tt.err); got != tt.config {
				t.Errorf("IsConfiguration = %v, want %v", got, tt.config)
			}
			if got := IsTransient(tt.err); got != tt.transient {
				t.Errorf("IsTransient = %v, want %v", got, tt.transient)
			}
			if got := IsProviderUnavailable(tt.err); got != tt.unavailable {
				t.Errorf("IsProviderUnavailable = %v, want %v", got, tt.unavailable)
			}
			if !strings.Contains(tt.err.Error(), tt.wantSubstring) {
				t.Errorf("Error() = %q, want substring %q", tt.err.Error(), tt.wantSubstring)
			}
		})
	}
}

func TestTransientNil(t *testing.T) {
	if Transient("x", nil) != nil {
		t.Error("Transient(nil) should be nil")
	}
}

func TestRecovered(t *testing.T) {
	sentinel := errors.New("nil map")
	err := Recovered("security", PhaseExecute, sentinel)
	if !errors.Is(err, sentinel) {
		t.Errorf("Recovered(error) should wrap the panic value")
	}

	err = Recovered("security", PhaseReceive, "index out of range")
	if err.Phase != PhaseReceive || !strings.Contains(err.Error(), "index out of range") {
		t.Errorf("Recovered(string) = %v", err)
	}
}
