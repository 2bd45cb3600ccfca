package meeting

import (
	"errors"
	"fmt"
)

// 错误类别，配合 errors.Is 使用。
var (
	ErrValidation         = errors.New("validation error")
	ErrInvalidState       = errors.New("invalid meeting state")
	ErrInvalidParticipant = errors.New("invalid participant")
	ErrGeneration         = errors.New("generation failed")
)

// 机器可读的失败原因，随错误一起返回给传输层。
const (
	ReasonValidationFailed    = "validation_failed"
	ReasonNotActive           = "not_active"
	ReasonAlreadyEnding       = "already_ending"
	ReasonRoundLimit          = "round_limit"
	ReasonRestarted           = "restarted"
	ReasonUnknownParticipant  = "unknown_participant"
	ReasonModeratorNotAllowed = "moderator_not_allowed"
	ReasonGenerationFailed    = "generation_failed"
)

// Error 是会议操作失败时返回的错误。
type Error struct {
	Kind   error
	Reason string
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

// Is 让 errors.Is(err, ErrInvalidState) 之类的判断成立。
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ReasonOf 返回错误携带的原因码；非会议错误返回空字符串。
func ReasonOf(err error) string {
	var merr *Error
	if errors.As(err, &merr) {
		return merr.Reason
	}
	return ""
}

func validationError(format string, args ...any) *Error {
	return &Error{Kind: ErrValidation, Reason: ReasonValidationFailed, Msg: fmt.Sprintf(format, args...)}
}

func stateError(reason, msg string) *Error {
	return &Error{Kind: ErrInvalidState, Reason: reason, Msg: msg}
}

func participantError(reason, msg string) *Error {
	return &Error{Kind: ErrInvalidParticipant, Reason: reason, Msg: msg}
}

func generationError(role string, err error) *Error {
	return &Error{Kind: ErrGeneration, Reason: ReasonGenerationFailed, Msg: fmt.Sprintf("generate content for %s", role), Err: err}
}
