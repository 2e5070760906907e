package p2p

import "testing"

func TestBanScoreAccumulates(t *testing.T) {
	var b BanScore
	b.Add(10)
	b.Add(15)
	if got := b.Score(); got != 25 {
		t.Fatalf("expected accumulated score 25, got %d", got)
	}
}

func TestBanScoreTriggersAtThreshold(t *testing.T) {
	var b BanScore
	if banned := b.Add(BanThreshold - 1); banned {
		t.Fatalf("expected no ban just below threshold")
	}
	if banned := b.Add(1); !banned {
		t.Fatalf("expected ban once the threshold is reached")
	}
}

func TestBanScoreFiveTypicalViolationsBan(t *testing.T) {
	var b BanScore
	var banned bool
	for i := 0; i < 5; i++ {
		banned = b.Add(20)
	}
	if !banned {
		t.Fatalf("expected five 20-point violations to reach the ban threshold")
	}
	if got := b.Score(); got != 100 {
		t.Fatalf("expected score 100 after five violations, got %d", got)
	}
}
