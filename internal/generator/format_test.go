package generator

import (
	"strings"
	"testing"
)

func TestFormatResponseBulletsAndHeaders(t *testing.T) {
	in := "ESTC looks strong. Key Metrics: revenue up - margins stable - ARR growing. Would you like more detail?"
	got := FormatResponse(in)

	if !strings.Contains(got, "\n\nKey Metrics:") {
		t.Fatalf("header break missing:\n%s", got)
	}
	if !strings.Contains(got, "\n- margins stable") {
		t.Fatalf("bullet break missing:\n%s", got)
	}
	if !strings.Contains(got, "\n\nWould you like") {
		t.Fatalf("question break missing:\n%s", got)
	}
	if strings.HasPrefix(got, "\n") || strings.HasSuffix(got, "\n") {
		t.Fatalf("output not trimmed: %q", got)
	}
}

func TestFormatResponseCollapsesBlankRuns(t *testing.T) {
	got := FormatResponse("a\n\n\n\n\nb")
	if got != "a\n\nb" {
		t.Fatalf("got %q", got)
	}
}

func TestFormatResponseIdempotent(t *testing.T) {
	inputs := []string{
		"ESTC looks strong. Key Metrics: revenue up - margins stable. Summary: hold. Would you like more?",
		"Plain sentence with no structure at all.",
		"Analysis: one - two - three\n\nOutlook: good. Do you need anything else?",
	}
	for _, in := range inputs {
		once := FormatResponse(in)
		twice := FormatResponse(once)
		if once != twice {
			t.Fatalf("not idempotent:\nonce:  %q\ntwice: %q", once, twice)
		}
	}
}

func TestMarketDataNeed(t *testing.T) {
	cases := []struct {
		query       string
		primaryType string
		want        DataNeed
	}{
		{"How has ESTC moved over the last 5 years?", "stock", NeedHistorical},
		{"Show the historical correlation with product launches", "general", NeedHistorical},
		{"What is the current price?", "stock", NeedCurrent},
		{"What is ESTC trading at?", "general", NeedCurrent},
		{"Tell me about analyst ratings", "stock", NeedCurrent},
		{"How is the stock doing?", "general", NeedCurrent},
		{"Should I sell my RSUs?", "rsu", NeedCurrent},
		{"Who are Elastic's competitors?", "competitive", NeedNone},
		{"Explain the revenue model", "financial", NeedNone},
	}
	for _, tc := range cases {
		if got := MarketDataNeed(tc.query, tc.primaryType); got != tc.want {
			t.Errorf("MarketDataNeed(%q, %q) = %q, want %q", tc.query, tc.primaryType, got, tc.want)
		}
	}
}
