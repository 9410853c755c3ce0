package provider

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/martinemde/tmcore/failure"
)

func TestMergeOptionsDefaults(t *testing.T) {
	got := MergeOptions(Options{}, 3)
	want := Resolved{
		Temperature:      0.7,
		MaxTokens:        2000,
		TopP:             1.0,
		FrequencyPenalty: 0,
		PresencePenalty:  0,
		Stream:           false,
		Timeout:          30 * time.Second,
		Retries:          3,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeOptionsOverlay(t *testing.T) {
	got := MergeOptions(Options{
		Temperature: Ptr(0.0),
		MaxTokens:   Ptr(10),
		Stream:      Ptr(true),
		Timeout:     Ptr(5 * time.Second),
		Retries:     Ptr(0),
	}, 3)
	want := Resolved{
		Temperature: 0.0,
		MaxTokens:   10,
		TopP:        1.0,
		Stream:      true,
		Timeout:     5 * time.Second,
		Retries:     0,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("overlay mismatch (-want +got):\n%s", diff)
	}
}

func TestMergeOptionsDoesNotValidate(t *testing.T) {
	got := MergeOptions(Options{Temperature: Ptr(9.0)}, 3)
	if got.Temperature != 9.0 {
		t.Errorf("expected out-of-range value to pass through merge, got %v", got.Temperature)
	}
}

func TestValidateOptions(t *testing.T) {
	base := MergeOptions(Options{}, 3)
	tests := []struct {
		name   string
		mutate func(r *Resolved)
		field  string
	}{
		{"defaults", func(r *Resolved) {}, ""},
		{"temperature low edge", func(r *Resolved) { r.Temperature = 0 }, ""},
		{"temperature high edge", func(r *Resolved) { r.Temperature = 2 }, ""},
		{"temperature above", func(r *Resolved) { r.Temperature = 2.01 }, "temperature"},
		{"temperature below", func(r *Resolved) { r.Temperature = -0.1 }, "temperature"},
		{"max tokens zero", func(r *Resolved) { r.MaxTokens = 0 }, "maxTokens"},
		{"max tokens negative", func(r *Resolved) { r.MaxTokens = -5 }, "maxTokens"},
		{"top p edge", func(r *Resolved) { r.TopP = 0 }, ""},
		{"top p above", func(r *Resolved) { r.TopP = 1.1 }, "topP"},
		{"frequency penalty edge", func(r *Resolved) { r.FrequencyPenalty = -2 }, ""},
		{"frequency penalty", func(r *Resolved) { r.FrequencyPenalty = -2.5 }, "frequencyPenalty"},
		{"presence penalty", func(r *Resolved) { r.PresencePenalty = 2.5 }, "presencePenalty"},
		{"timeout", func(r *Resolved) { r.Timeout = 0 }, "timeout"},
		{"retries", func(r *Resolved) { r.Retries = -1 }, "retries"},
		{"retries at limit", func(r *Resolved) { r.Retries = MaxRetriesLimit }, ""},
		{"retries above limit", func(r *Resolved) { r.Retries = MaxRetriesLimit + 1 }, "retries"},
		{"temperature NaN", func(r *Resolved) { r.Temperature = math.NaN() }, "temperature"},
		{"temperature +Inf", func(r *Resolved) { r.Temperature = math.Inf(1) }, "temperature"},
		{"top p NaN", func(r *Resolved) { r.TopP = math.NaN() }, "topP"},
		{"top p -Inf", func(r *Resolved) { r.TopP = math.Inf(-1) }, "topP"},
		{"frequency penalty NaN", func(r *Resolved) { r.FrequencyPenalty = math.NaN() }, "frequencyPenalty"},
		{"presence penalty NaN", func(r *Resolved) { r.PresencePenalty = math.NaN() }, "presencePenalty"},
		{"presence penalty +Inf", func(r *Resolved) { r.PresencePenalty = math.Inf(1) }, "presencePenalty"},
		{"first violation wins", func(r *Resolved) { r.TopP = 5; r.Temperature = 5 }, "temperature"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base
			tt.mutate(&r)
			err := ValidateOptions(r)
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var verr *failure.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %T: %v", err, err)
			}
			if verr.Field != tt.field {
				t.Errorf("Field = %q, want %q", verr.Field, tt.field)
			}
			if verr.Expected == nil || verr.Value == nil {
				t.Errorf("expected value and expected range to be reported: %+v", verr.ValidationDetails)
			}
		})
	}
}

func TestValidateOptionsMessage(t *testing.T) {
	r := MergeOptions(Options{Temperature: Ptr(3.0)}, 3)
	err := ValidateOptions(r)
	var verr *failure.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if got, want := verr.UserMessage(), `The field "temperature" must be number between 0 and 2`; got != want {
		t.Errorf("UserMessage() = %q, want %q", got, want)
	}
}

func TestValidatePrompt(t *testing.T) {
	tests := []struct {
		prompt string
		ok     bool
	}{
		{"hello", true},
		{"  padded  ", true},
		{"", false},
		{" ", false},
		{"\n\t  ", false},
	}
	for _, tt := range tests {
		err := ValidatePrompt(tt.prompt)
		if tt.ok && err != nil {
			t.Errorf("ValidatePrompt(%q): unexpected error %v", tt.prompt, err)
		}
		if !tt.ok && !failure.HasCode(err, failure.CodeValidation) {
			t.Errorf("ValidatePrompt(%q): expected validation failure, got %v", tt.prompt, err)
		}
	}
}

func TestValidatePromptValue(t *testing.T) {
	tests := []struct {
		name  string
		value any
		ok    bool
	}{
		{"string", "hello", true},
		{"blank string", "  ", false},
		{"nil", nil, false},
		{"number", 42, false},
		{"slice", []string{"hello"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePromptValue(tt.value)
			if tt.ok != (err == nil) {
				t.Errorf("ValidatePromptValue(%v) = %v, ok want %v", tt.value, err, tt.ok)
			}
		})
	}
}

func TestValidateAPIKey(t *testing.T) {
	tests := []struct {
		key string
		ok  bool
	}{
		{"sk-ant-123", true},
		{"", false},
		{"   ", false},
	}
	for _, tt := range tests {
		err := ValidateAPIKey(tt.key)
		if tt.ok != (err == nil) {
			t.Errorf("ValidateAPIKey(%q) = %v, ok want %v", tt.key, err, tt.ok)
		}
		var verr *failure.ValidationError
		if errors.As(err, &verr) && verr.Field != "apiKey" {
			t.Errorf("Field = %q", verr.Field)
		}
	}
}
