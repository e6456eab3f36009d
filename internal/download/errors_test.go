package download

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name     string
		err      error
		expected Kind
		ok       bool
	}{
		{"direct", stageErr(KindFetch, base), KindFetch, true},
		{"wrapped", fmt.Errorf("run: %w", stageErr(KindPublish, base)), KindPublish, true},
		{"outermost wins", stageErr(KindNavigation, stageErr(KindInterceptionTimeout, base)), KindNavigation, true},
		{"plain", base, "", false},
		{"nil", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := KindOf(tt.err)
			if kind != tt.expected || ok != tt.ok {
				t.Errorf("KindOf() = (%v, %v), expected (%v, %v)", kind, ok, tt.expected, tt.ok)
			}
		})
	}
}

func TestPipelineError(t *testing.T) {
	base := errors.New("net::ERR_ABORTED")
	err := stageErr(KindNavigation, base)

	if !errors.Is(err, base) {
		t.Errorf("errors.Is(%v, base) = false, expected true", err)
	}
	if err.Error() != "NavigationFailure: net::ERR_ABORTED" {
		t.Errorf("Error() = %q, expected %q", err.Error(), "NavigationFailure: net::ERR_ABORTED")
	}
}
