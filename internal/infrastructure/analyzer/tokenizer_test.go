package analyzer

import (
	"reflect"
	"testing"
)

func TestTokenizeLowercasesAndStripsPunctuation(t *testing.T) {
	tok := NewTokenizer(2, true)

	got := tok.Tokenize("The Companies (Registration) Fee, 2019!")
	want := []string{"companies", "registration", "fee", "2019"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokenize() = %v, want %v", got, want)
	}
}

func TestTokenizeDropsStopwordsAndShortTokens(t *testing.T) {
	tok := NewTokenizer(2, true)

	got := tok.Tokenize("what is the fee for a permit")
	want := []string{"fee", "permit"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokenize() = %v, want %v", got, want)
	}
}

func TestTokenizeAllStopwordsYieldsEmpty(t *testing.T) {
	tok := NewTokenizer(2, true)

	if got := tok.Tokenize("the and of was"); len(got) != 0 {
		t.Fatalf("expected no tokens, got %v", got)
	}
	if got := tok.Tokenize("   "); len(got) != 0 {
		t.Fatalf("expected no tokens for whitespace, got %v", got)
	}
}

func TestTokenizeWithoutStopwordFilter(t *testing.T) {
	tok := NewTokenizer(2, false)

	got := tok.Tokenize("the fee")
	want := []string{"the", "fee"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokenize() = %v, want %v", got, want)
	}
}

func TestTokenizeDeterministic(t *testing.T) {
	tok := NewTokenizer(2, true)

	first := tok.Tokenize("stamp duty on land transfers")
	for i := 0; i < 3; i++ {
		if got := tok.Tokenize("stamp duty on land transfers"); !reflect.DeepEqual(first, got) {
			t.Fatalf("tokenization not stable: %v vs %v", first, got)
		}
	}
}
