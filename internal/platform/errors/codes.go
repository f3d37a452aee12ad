// Package errors provides structured error handling with machine-readable codes.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Race membership errors
	CodeAlreadyInRace Code = "ALREADY_IN_RACE"
	CodeNotJoinable   Code = "NOT_JOINABLE"
	CodeSelfPlay      Code = "SELF_PLAY"

	// Persistence errors
	CodeRaceSaveFailed         Code = "RACE_SAVE_FAILED"
	CodePlayerSaveFailed       Code = "PLAYER_SAVE_FAILED"
	CodeConcurrentModification Code = "CONCURRENT_MODIFICATION"
	CodeNotFound               Code = "NOT_FOUND"

	// CodeInternal marks invariant violations such as a player holding a
	// reference to a race that no longer exists.
	CodeInternal Code = "INTERNAL"

	// Exercise errors
	CodeExerciseEmptySource Code = "EXERCISE_EMPTY_SOURCE"

	// Registration and login errors
	CodePlayerExists       Code = "PLAYER_EXISTS"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeAlreadyInRace, CodeNotJoinable, CodeSelfPlay, CodePlayerExists:
		return http.StatusConflict
	case CodeInvalidCredentials:
		return http.StatusUnauthorized
	case CodeConcurrentModification:
		return http.StatusConflict
	case CodeNotFound:
		return http.StatusNotFound
	case CodeExerciseEmptySource:
		return http.StatusBadRequest
	case CodeRaceSaveFailed, CodePlayerSaveFailed, CodeInternal, CodeUnknown:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
