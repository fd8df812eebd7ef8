package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"http 429", errors.New("status code 429"), KindRateLimited},
		{"throttle text", errors.New("Too Many Requests from upstream"), KindRateLimited},
		{"rate limit text", errors.New("rate limit exceeded"), KindRateLimited},
		{"delisted", errors.New("No data found, symbol may be delisted"), KindFatal},
		{"bad ticker", errors.New("invalid symbol FOO"), KindFatal},
		{"anything else", errors.New("connection reset by peer"), KindTransient},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify("TCS", tc.err)
			if got.Kind != tc.want {
				t.Errorf("Classify(%v).Kind = %v, want %v", tc.err, got.Kind, tc.want)
			}
			if got.Symbol != "TCS" {
				t.Errorf("Symbol = %q, want TCS", got.Symbol)
			}
			if !errors.Is(got, tc.err) {
				t.Error("classified error should wrap the cause")
			}
		})
	}
}

func TestRetryablePredicate(t *testing.T) {
	if !Retryable(NewTransient("A", "net", nil)) {
		t.Error("transient should retry")
	}
	if !Retryable(NewRateLimited("A", "429", nil)) {
		t.Error("rate limited should retry")
	}
	if Retryable(NewNoData("A")) {
		t.Error("no data should not retry")
	}
	if Retryable(NewFatal("A", "delisted", nil)) {
		t.Error("fatal should not retry")
	}
	if !Retryable(errors.New("plain")) {
		t.Error("unknown errors default to transient, hence retryable")
	}
}

type flaky struct {
	calls int
	fails int
	kind  Kind
}

func (f *flaky) Fetch(_ context.Context, symbol string, _ Window) ([]Bar, error) {
	f.calls++
	if f.calls <= f.fails {
		return nil, &FetchError{Kind: f.kind, Symbol: symbol, Message: "scripted"}
	}
	return []Bar{{Close: 100}, {Close: 101}}, nil
}

func TestRetryingSourceRecovers(t *testing.T) {
	src := &flaky{fails: 2, kind: KindTransient}
	r := NewRetryingSource(src, 3, time.Millisecond)

	bars, err := r.Fetch(context.Background(), "TCS", Window{Days: 1, Interval: "5m"})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(bars) != 2 {
		t.Errorf("bars = %d, want 2", len(bars))
	}
	if src.calls != 3 {
		t.Errorf("calls = %d, want 3", src.calls)
	}
}

func TestRetryingSourceStopsOnFatal(t *testing.T) {
	src := &flaky{fails: 10, kind: KindFatal}
	r := NewRetryingSource(src, 3, time.Millisecond)

	_, err := r.Fetch(context.Background(), "TCS", Window{Days: 1, Interval: "5m"})
	if err == nil {
		t.Fatal("expected error")
	}
	if src.calls != 1 {
		t.Errorf("calls = %d, want 1 for a fatal error", src.calls)
	}
	if KindOf(err) != KindFatal {
		t.Errorf("kind = %v, want fatal", KindOf(err))
	}
}
