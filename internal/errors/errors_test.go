package errors

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{
			name:    "config error",
			code:    CodeConfigInvalid,
			wantMsg: "Invalid configuration",
			wantCat: CategoryConfig,
		},
		{
			name:    "input error",
			code:    CodeInvalidBinCount,
			wantMsg: "Bin count out of range",
			wantCat: CategoryInput,
		},
		{
			name:    "protocol error",
			code:    CodeBadMessage,
			wantMsg: "Malformed message",
			wantCat: CategoryProtocol,
		},
		{
			name:    "unknown error code",
			code:    "E999",
			wantMsg: "Unknown error",
			wantCat: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestRegistryCodeRanges(t *testing.T) {
	prefix := map[Category][]string{
		CategoryConfig:   {"E1"},
		CategoryInput:    {"E2"},
		CategoryData:     {"E3"},
		CategorySession:  {"E4"},
		CategoryProtocol: {"E4"},
	}
	for _, code := range GetAllCodes() {
		tmpl, ok := GetTemplate(code)
		if !ok {
			t.Fatalf("GetTemplate(%q) not found", code)
		}
		if tmpl.Message == "" {
			t.Errorf("%s has no message", code)
		}
		matched := false
		for _, p := range prefix[tmpl.Category] {
			if strings.HasPrefix(code, p) {
				matched = true
			}
		}
		if !matched {
			t.Errorf("%s is in category %q outside its code range", code, tmpl.Category)
		}
	}
}

func TestPenguinsError_Error(t *testing.T) {
	err := New(CodeInvalidBinCount).WithField("seaborn_bin_count")
	want := "E204: Bin count out of range (seaborn_bin_count)"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	plain := &PenguinsError{Message: "test error"}
	if plain.Error() != "test error" {
		t.Errorf("Error() = %q, want %q", plain.Error(), "test error")
	}

	wrapped := New(CodeDataUnavailable).Wrap(fmt.Errorf("no such bucket"))
	if !strings.HasSuffix(wrapped.Error(), ": no such bucket") {
		t.Errorf("Error() = %q, want cause suffix", wrapped.Error())
	}
}

func TestUnwrapAndIs(t *testing.T) {
	cause := stderrors.New("disk full")
	err := fmt.Errorf("saving: %w", New(CodeStoreFailed).Wrap(cause))

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if !stderrors.Is(err, New(CodeStoreFailed)) {
		t.Error("errors.Is should match by code")
	}
	if stderrors.Is(err, New(CodeSessionLimit)) {
		t.Error("errors.Is should not match a different code")
	}

	var pe *PenguinsError
	if !stderrors.As(err, &pe) || pe.Code != CodeStoreFailed {
		t.Errorf("errors.As = %v, want code %s", pe, CodeStoreFailed)
	}
}

func TestHasCode(t *testing.T) {
	inner := New(CodeDataMalformed)
	outer := New(CodeDataUnavailable).Wrap(inner)

	if !HasCode(outer, CodeDataUnavailable) {
		t.Error("HasCode should match the outer code")
	}
	if !HasCode(outer, CodeDataMalformed) {
		t.Error("HasCode should match a nested code")
	}
	if HasCode(outer, CodeSessionClosed) {
		t.Error("HasCode matched an absent code")
	}
	if HasCode(stderrors.New("plain"), CodeDataMalformed) {
		t.Error("HasCode matched a plain error")
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, CodeDataUnavailable) != nil {
		t.Error("FromError(nil) should be nil")
	}

	orig := New(CodeInvalidSpecies)
	if got := FromError(fmt.Errorf("ctx: %w", orig), CodeDataUnavailable); got != orig {
		t.Errorf("FromError should return the existing PenguinsError, got %v", got)
	}

	plain := stderrors.New("boom")
	got := FromError(plain, CodeDataUnavailable)
	if got.Code != CodeDataUnavailable || got.Wrapped != plain {
		t.Errorf("FromError = %+v", got)
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{CodeInvalidAttribute, http.StatusBadRequest},
		{CodeBadMessage, http.StatusBadRequest},
		{CodeSessionNotFound, http.StatusNotFound},
		{CodeSessionLimit, http.StatusServiceUnavailable},
		{CodeSessionClosed, http.StatusConflict},
		{CodeDataUnavailable, http.StatusServiceUnavailable},
		{CodeConfigInvalid, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := New(tt.code).HTTPStatus(); got != tt.want {
			t.Errorf("%s HTTPStatus() = %d, want %d", tt.code, got, tt.want)
		}
	}

	if got := Status(stderrors.New("plain")); got != http.StatusInternalServerError {
		t.Errorf("Status(plain) = %d", got)
	}
	if got := Status(fmt.Errorf("x: %w", New(CodeUnknownField))); got != http.StatusBadRequest {
		t.Errorf("Status(wrapped input error) = %d", got)
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := New(CodeInvalidBinCount).
		WithField("plotly_bin_count").
		WithSuggestion("Use a positive number").
		Wrap(stderrors.New("got 0"))

	out := err.Format()
	for _, want := range []string{
		"ERROR E204: Bin count out of range",
		"[plotly_bin_count]",
		"Cause: got 0",
		"Hint: Use a positive number",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Error("Format() contains ANSI codes with colors disabled")
	}
}

func TestMarshalJSON(t *testing.T) {
	err := New(CodeInvalidSpecies).WithField("selected_species").Wrap(stderrors.New("secret"))
	data, jerr := json.Marshal(err)
	if jerr != nil {
		t.Fatalf("Marshal: %v", jerr)
	}

	var body map[string]string
	if jerr := json.Unmarshal(data, &body); jerr != nil {
		t.Fatalf("Unmarshal: %v", jerr)
	}
	if body["code"] != CodeInvalidSpecies || body["field"] != "selected_species" || body["category"] != "input" {
		t.Errorf("body = %v", body)
	}
	if strings.Contains(string(data), "secret") {
		t.Error("wrapped cause must not be serialized")
	}
}

func TestFprint(t *testing.T) {
	DisableColors()
	defer EnableColors()

	var buf bytes.Buffer
	Fprint(&buf, stderrors.New("plain failure"))
	if !strings.Contains(buf.String(), "ERROR: plain failure") {
		t.Errorf("Fprint(plain) = %q", buf.String())
	}

	buf.Reset()
	Fprint(&buf, New(CodeSessionLimit))
	if !strings.Contains(buf.String(), "ERROR E402: Too many sessions") {
		t.Errorf("Fprint(coded) = %q", buf.String())
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText("one two three four five six", 10)
	for _, l := range lines {
		if len(l) > 10 {
			t.Errorf("line %q longer than 10", l)
		}
	}
	if strings.Join(lines, " ") != "one two three four five six" {
		t.Errorf("wrapText lost words: %v", lines)
	}
	if wrapText("", 10) != nil {
		t.Error("wrapText(\"\") should be nil")
	}
}
