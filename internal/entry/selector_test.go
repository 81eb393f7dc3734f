package entry

import (
	"testing"

	"smc-signal-engine/config"
	"smc-signal-engine/internal/analysis"
)

func testSelector() *Selector {
	return NewSelector(config.Default().EntryConfig)
}

func TestClassifyPartitionsDistance(t *testing.T) {
	s := testSelector()

	cases := []struct {
		distance float64
		want     Status
	}{
		{0.0, StatusTooLate},
		{0.49, StatusTooLate},
		{0.5, StatusValidNear},
		{2.0, StatusValidNear},
		{3.0, StatusValidNear},
		{3.01, StatusValidWait},
		{5.0, StatusValidWait},
		{5.01, StatusTooFar},
		{6.0, StatusTooFar},
		{50.0, StatusTooFar},
	}

	for _, tc := range cases {
		if got := s.Classify(tc.distance); got != tc.want {
			t.Errorf("Classify(%.2f) = %s, want %s", tc.distance, got, tc.want)
		}
	}
}

func TestSelectBuyZoneBelowPrice(t *testing.T) {
	s := testSelector()

	// Price 100, gap centered at 98: 2% away, optimal band
	cands := Candidates{
		Gaps: []analysis.FairValueGap{
			{Bottom: 97.5, Top: 98.5, Direction: analysis.Bullish, QualityScore: 80},
		},
	}

	zone, status := s.Select(analysis.Bullish, 100, cands)

	if status != StatusValidNear {
		t.Fatalf("Expected VALID_NEAR, got %s", status)
	}
	if zone == nil || zone.Source != SourceFVG {
		t.Fatalf("Expected an FVG zone, got %+v", zone)
	}
	if zone.Center != 98 {
		t.Errorf("Expected center 98, got %f", zone.Center)
	}
	if zone.DistancePct < 1.99 || zone.DistancePct > 2.01 {
		t.Errorf("Expected ~2%% distance, got %f", zone.DistancePct)
	}
}

func TestSelectRejectsWrongSidedZones(t *testing.T) {
	s := testSelector()

	// For a BUY, zones above or straddling price never enter the pool
	cands := Candidates{
		Gaps: []analysis.FairValueGap{
			{Bottom: 101, Top: 102, Direction: analysis.Bullish, QualityScore: 90},
			{Bottom: 99, Top: 101, Direction: analysis.Bullish, QualityScore: 90},
		},
	}

	zone, status := s.Select(analysis.Bullish, 100, cands)
	if status != StatusNoZone || zone != nil {
		t.Errorf("Wrong-sided zones must be excluded, got %s %+v", status, zone)
	}
}

func TestSelectSellZoneAbovePrice(t *testing.T) {
	s := testSelector()

	cands := Candidates{
		Blocks: []analysis.OrderBlock{
			{PriceLow: 105, PriceHigh: 107, Direction: analysis.Bearish, Strength: 70},
		},
	}

	zone, status := s.Select(analysis.Bearish, 100, cands)

	if status != StatusTooFar {
		t.Fatalf("A zone 6%% away must be TOO_FAR, got %s", status)
	}
	if zone == nil || zone.Source != SourceOB {
		t.Fatalf("Expected the OB zone to be reported, got %+v", zone)
	}
}

func TestSelectSkipsTooLateForValidAlternative(t *testing.T) {
	s := testSelector()

	// The higher-quality zone is inside the too-late band; the selector
	// passes over it for the actionable one further out
	cands := Candidates{
		Gaps: []analysis.FairValueGap{
			{Bottom: 99.6, Top: 99.8, Direction: analysis.Bullish, QualityScore: 95},
			{Bottom: 97.5, Top: 98.5, Direction: analysis.Bullish, QualityScore: 60},
		},
	}

	zone, status := s.Select(analysis.Bullish, 100, cands)

	if status != StatusValidNear {
		t.Fatalf("Expected VALID_NEAR from the alternative, got %s", status)
	}
	if zone.Center != 98 {
		t.Errorf("Expected the further, actionable zone, got center %f", zone.Center)
	}
}

func TestSelectTooFarQualityWinnerRejects(t *testing.T) {
	s := testSelector()

	// The quality winner sits beyond the distance ceiling. Unlike the
	// too-late band, that is a hard rejection: the selection must not fall
	// through to the lower-quality actionable zone.
	cands := Candidates{
		Gaps: []analysis.FairValueGap{
			{Bottom: 93.5, Top: 94.5, Direction: analysis.Bullish, QualityScore: 90},
			{Bottom: 97.5, Top: 98.5, Direction: analysis.Bullish, QualityScore: 50},
		},
	}

	zone, status := s.Select(analysis.Bullish, 100, cands)

	if status != StatusTooFar {
		t.Fatalf("A TOO_FAR quality winner must reject the selection, got %s", status)
	}
	if zone == nil || zone.Center != 94 {
		t.Errorf("The rejecting winner itself should be reported, got %+v", zone)
	}
}

func TestSelectReportsTooLateWhenNothingValid(t *testing.T) {
	s := testSelector()

	cands := Candidates{
		Gaps: []analysis.FairValueGap{
			{Bottom: 99.6, Top: 99.8, Direction: analysis.Bullish, QualityScore: 95},
		},
	}

	zone, status := s.Select(analysis.Bullish, 100, cands)
	if status != StatusTooLate {
		t.Fatalf("With only a too-late candidate the status must be TOO_LATE, got %s", status)
	}
	if zone == nil {
		t.Fatal("The best candidate should still be reported for diagnostics")
	}
}

func TestSelectExcludesMitigatedBlocksAndWrongDirection(t *testing.T) {
	s := testSelector()

	cands := Candidates{
		Gaps: []analysis.FairValueGap{
			{Bottom: 97.5, Top: 98.5, Direction: analysis.Bearish, QualityScore: 90},
		},
		Blocks: []analysis.OrderBlock{
			{PriceLow: 97, PriceHigh: 98, Direction: analysis.Bullish, Strength: 90, Mitigated: true},
		},
	}

	zone, status := s.Select(analysis.Bullish, 100, cands)
	if status != StatusNoZone || zone != nil {
		t.Errorf("Counter-direction gaps and mitigated blocks must be excluded, got %s", status)
	}
}

func TestSelectRanksByQualityThenDistance(t *testing.T) {
	s := testSelector()

	cands := Candidates{
		Gaps: []analysis.FairValueGap{
			{Bottom: 95.5, Top: 96.5, Direction: analysis.Bullish, QualityScore: 80},
			{Bottom: 97.5, Top: 98.5, Direction: analysis.Bullish, QualityScore: 80},
		},
		Levels: []analysis.SRLevel{
			{Low: 98.5, High: 99, Quality: 50},
		},
	}

	zone, status := s.Select(analysis.Bullish, 100, cands)

	if status != StatusValidNear {
		t.Fatalf("Expected VALID_NEAR, got %s", status)
	}
	// Equal quality resolves to the nearer zone
	if zone.Center != 98 {
		t.Errorf("Expected the nearer equal-quality zone (center 98), got %f", zone.Center)
	}
}

func TestSelectZeroPrice(t *testing.T) {
	s := testSelector()

	cands := Candidates{
		Levels: []analysis.SRLevel{{Low: 98, High: 99, Quality: 50}},
	}
	if zone, status := s.Select(analysis.Bullish, 0, cands); status != StatusNoZone || zone != nil {
		t.Errorf("A non-positive price cannot select a zone, got %s", status)
	}
}
