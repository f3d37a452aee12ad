package errors

import (
	stderrors "errors"
	"net/http"
	"testing"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := New(CodeNotJoinable, "race is closed")
	target := New(CodeNotJoinable, "different message")

	if !stderrors.Is(err, target) {
		t.Fatal("expected errors with the same code to match")
	}

	other := New(CodeSelfPlay, "race is closed")
	if stderrors.Is(err, other) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := Wrap(CodeRaceSaveFailed, "persist race", cause)

	if !stderrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be reachable via errors.Is")
	}
	if err.Error() != "persist race" {
		t.Fatalf("expected internal message, got %q", err.Error())
	}
}

func TestCodeOf(t *testing.T) {
	if got := CodeOf(New(CodeAlreadyInRace, "busy")); got != CodeAlreadyInRace {
		t.Fatalf("expected CodeAlreadyInRace, got %s", got)
	}
	if got := CodeOf(stderrors.New("plain")); got != CodeUnknown {
		t.Fatalf("expected CodeUnknown for plain error, got %s", got)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeAlreadyInRace, http.StatusConflict},
		{CodeNotJoinable, http.StatusConflict},
		{CodeSelfPlay, http.StatusConflict},
		{CodeConcurrentModification, http.StatusConflict},
		{CodeNotFound, http.StatusNotFound},
		{CodeExerciseEmptySource, http.StatusBadRequest},
		{CodeRaceSaveFailed, http.StatusInternalServerError},
		{CodePlayerSaveFailed, http.StatusInternalServerError},
		{CodeInternal, http.StatusInternalServerError},
		{Code("SOMETHING_NEW"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := tc.code.HTTPStatus(); got != tc.want {
			t.Fatalf("code %s: expected status %d, got %d", tc.code, tc.want, got)
		}
	}
}
