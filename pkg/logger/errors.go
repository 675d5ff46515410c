package logger

import (
	"errors"

	"flatnas/apperrors"
)

// LogAppError logs an AppError with all its rich context
func LogAppError(err error, level Level) {
	if appErr := asAppError(err); appErr != nil {
		WithFields(appErr.LogFields()).log(level, "%s", appErr.Message)
	} else {
		WithError(err).log(level, "Unstructured error occurred")
	}
}

// LogAppErrorWithContext logs an AppError with additional context
func LogAppErrorWithContext(err error, level Level, additionalContext map[string]interface{}) {
	if appErr := asAppError(err); appErr != nil {
		fields := appErr.LogFields()
		for k, v := range additionalContext {
			fields["extra_"+k] = v
		}
		WithFields(fields).log(level, "%s", appErr.Message)
	} else {
		fields := map[string]interface{}{"error": err}
		for k, v := range additionalContext {
			fields[k] = v
		}
		WithFields(fields).log(level, "Unstructured error occurred")
	}
}

// LevelForStatus maps an HTTP status to the level its error is logged at.
func LevelForStatus(status int) Level {
	switch {
	case status >= 500:
		return ERROR
	case status == 429 || status == 401 || status == 403:
		return WARN
	default:
		return DEBUG
	}
}

func asAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}
