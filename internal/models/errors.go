package models

import (
	"errors"
	"fmt"
)

// Code identifies a stable failure mode. Codes are wire identifiers consumed
// by clients, not display strings.
type Code string

const (
	CodeMaxDurationExceeded    Code = "maxDurationExceeded"
	CodeClipOverlap            Code = "clipOverlap"
	CodeClipTooShort           Code = "clipTooShort"
	CodeMergeIncompatible      Code = "mergeIncompatible"
	CodeInvalidSplitPoint      Code = "invalidSplitPoint"
	CodeSaveFailed             Code = "saveFailed"
	CodeLoadFailed             Code = "loadFailed"
	CodeTranscriptSearchFailed Code = "transcriptSearchFailed"
)

// Error pairs a stable code with an optional cause. The cause is kept for
// logs and debugging; callers branch on the code only.
type Error struct {
	Code  Code
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Cause)
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Cause }

func NewError(code Code) *Error { return &Error{Code: code} }

func WrapError(code Code, cause error) *Error { return &Error{Code: code, Cause: cause} }

// CodeOf extracts the stable code from err, if it carries one.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}
