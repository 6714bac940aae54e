package common

import (
	"context"
	"errors"
	"os"
	"testing"
)

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"auto", StrategyAuto, false},
		{"single", StrategySingle, false},
		{"SPLIT", StrategySplit, false},
		{" split ", StrategySplit, false},
		{"volumes", StrategyAuto, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStrategy(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStrategy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseStrategy(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestStrategy_TextRoundTrip(t *testing.T) {
	var s Strategy
	if err := s.UnmarshalText([]byte("single")); err != nil {
		t.Fatalf("UnmarshalText() error = %v", err)
	}
	if s != StrategySingle {
		t.Errorf("UnmarshalText() = %v, want single", s)
	}
	if err := s.UnmarshalText([]byte("bogus")); err == nil {
		t.Error("expected error for unknown strategy")
	}
	if Strategy(42).IsValid() {
		t.Error("Strategy(42) must not be valid")
	}
	if got := Strategy(42).String(); got != "Strategy(42)" {
		t.Errorf("String() = %q", got)
	}
}

func TestCheckCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	if err := CheckCancelled(ctx); err != nil {
		t.Fatalf("CheckCancelled() on live context = %v", err)
	}
	cancel()
	err := CheckCancelled(ctx)
	if !errors.Is(err, ErrCancelled) || !errors.Is(err, context.Canceled) {
		t.Errorf("CheckCancelled() = %v, want ErrCancelled wrapping context.Canceled", err)
	}
	if !IsCancelled(err) {
		t.Error("IsCancelled() = false for cancellation error")
	}
	if IsCancelled(errors.New("boom")) {
		t.Error("IsCancelled() = true for unrelated error")
	}
}

func TestIOError(t *testing.T) {
	if IOError(nil, "x") != nil {
		t.Error("IOError(nil) must be nil")
	}
	err := IOError(os.ErrNotExist, "unable to open %s", "a.pdf")
	if !errors.Is(err, ErrIO) || !errors.Is(err, os.ErrNotExist) {
		t.Errorf("IOError() = %v, want ErrIO wrapping os.ErrNotExist", err)
	}
	rerr := IOError(ErrRender, "chapter")
	if errors.Is(rerr, ErrIO) {
		t.Errorf("render failure must not be reclassified as ErrIO: %v", rerr)
	}
}
