package cli

import (
	"errors"
	"strings"
	"testing"
)

func TestConfigErrorRenderIncludesExcerptAndHelp(t *testing.T) {
	t.Parallel()
	source := "risk:\n  max_total_exposure: -5\n  max_slippage: 0.02\n"
	err := NewConfigError("risk.max_total_exposure must be > 0", source, 2).
		WithHelp("set a positive USD amount")

	out := err.Render()
	if !strings.Contains(out, "error[edgelord::config]") {
		t.Errorf("missing error code in %q", out)
	}
	if !strings.Contains(out, "max_total_exposure: -5") {
		t.Errorf("missing source excerpt in %q", out)
	}
	if !strings.Contains(out, "^") {
		t.Errorf("missing caret line in %q", out)
	}
	if !strings.Contains(out, "help: set a positive USD amount") {
		t.Errorf("missing help line in %q", out)
	}
}

func TestConfigErrorRenderSkipsExcerptWhenLineUnknown(t *testing.T) {
	t.Parallel()
	out := NewConfigError("bad yaml", "a: 1\n", 0).Render()
	if strings.Contains(out, "|") {
		t.Errorf("expected no excerpt frame for line 0, got %q", out)
	}
}

func TestRenderDispatchesByErrorType(t *testing.T) {
	t.Parallel()
	cases := []struct {
		err  error
		want string
	}{
		{NewWalletError("missing key").WithHelp("set EDGELORD_PRIVATE_KEY"), "edgelord::wallet"},
		{NewStrategyError("no detectors enabled"), "edgelord::strategy"},
		{NewConnectionError("dial tcp: timeout"), "edgelord::connection"},
		{errors.New("plain"), "error: plain"},
	}
	for _, tc := range cases {
		if got := Render(tc.err); !strings.Contains(got, tc.want) {
			t.Errorf("Render(%v) = %q, want substring %q", tc.err, got, tc.want)
		}
	}
}
