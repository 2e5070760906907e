package corecore

import (
	"errors"
	"testing"
)

func TestNewErrorFormatsWithoutCause(t *testing.T) {
	err := New(KindInvalidBlock, "bad merkle root")
	if err.Error() != "InvalidBlock: bad merkle root" {
		t.Fatalf("unexpected error string: %s", err.Error())
	}
}

func TestNewErrorWithEmptyMessageFormatsAsBareKind(t *testing.T) {
	err := New(KindOrphanBlock, "")
	if err.Error() != "OrphanBlock" {
		t.Fatalf("unexpected error string: %s", err.Error())
	}
}

func TestWrapIncludesCauseAndUnwraps(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(KindStorage, "segment append failed", cause)
	if err.Error() != "Storage: segment append failed: disk full" {
		t.Fatalf("unexpected error string: %s", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected Unwrap to expose the wrapped cause to errors.Is")
	}
}

func TestIsMatchesKind(t *testing.T) {
	err := New(KindDuplicateItem, "already have this block")
	if !Is(err, KindDuplicateItem) {
		t.Fatalf("expected Is to match the error's own kind")
	}
	if Is(err, KindInvalidBlock) {
		t.Fatalf("expected Is not to match a different kind")
	}
	if Is(errors.New("plain error"), KindDuplicateItem) {
		t.Fatalf("expected Is to report false for a non-corecore error")
	}
}

func TestBannedCarriesDelta(t *testing.T) {
	err := Banned(KindProtocolViolation, "oversized payload", 50)
	if err.BanDelta != 50 {
		t.Fatalf("expected ban delta 50, got %d", err.BanDelta)
	}
	if err.Kind != KindProtocolViolation {
		t.Fatalf("expected kind ProtocolViolation, got %s", err.Kind)
	}
}
