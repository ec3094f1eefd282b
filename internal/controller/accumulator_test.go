package controller

import "testing"

func TestAccumulator_PartialOnly(t *testing.T) {
	var a transcriptAccumulator
	a.AddPartial("hel")
	a.AddPartial("hello wor")
	if got := a.Text(); got != "hello wor" {
		t.Fatalf("expected last partial, got %q", got)
	}
}

func TestAccumulator_FinalClearsPartial(t *testing.T) {
	var a transcriptAccumulator
	a.AddPartial("hello wor")
	a.AddFinal("hello world")
	if got := a.Text(); got != "hello world" {
		t.Fatalf("expected final only, got %q", got)
	}
}

func TestAccumulator_JoinsFinalsWithTrailingPartial(t *testing.T) {
	var a transcriptAccumulator
	a.AddFinal("first sentence")
	a.AddFinal("second sentence")
	a.AddPartial("and a trailing")
	want := "first sentence second sentence and a trailing"
	if got := a.Text(); got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestAccumulator_IgnoresBlankFragments(t *testing.T) {
	var a transcriptAccumulator
	a.AddPartial("   ")
	a.AddFinal("")
	if got := a.Text(); got != "" {
		t.Fatalf("expected empty transcript, got %q", got)
	}
}

func TestAccumulator_Reset(t *testing.T) {
	var a transcriptAccumulator
	a.AddFinal("something")
	a.Reset()
	if got := a.Text(); got != "" {
		t.Fatalf("expected empty transcript after reset, got %q", got)
	}
}
