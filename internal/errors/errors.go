package errors

import (
	"fmt"
	"net/http"
)

const (
	ErrCodeInvalidImage          ErrCode = "INVALID_IMAGE"
	ErrCodeUnsupportedModelShape ErrCode = "UNSUPPORTED_MODEL_SHAPE"
	ErrCodeModelUnavailable      ErrCode = "MODEL_UNAVAILABLE"
	ErrCodeInferenceFailed       ErrCode = "INFERENCE_FAILED"
)

type ErrCode string

type ErrorInfo struct {
	HttpStatus int     `json:"-"`
	Code       ErrCode `json:"code"`
	Message    string  `json:"message"`
	Detail     string  `json:"detail,omitempty"`
}

func (e ErrorInfo) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewInvalidImageError(msg string) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusBadRequest, Code: ErrCodeInvalidImage, Message: msg}
}

func NewUnsupportedModelShapeError(err error) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusInternalServerError, Code: ErrCodeUnsupportedModelShape, Message: err.Error()}
}

func NewModelUnavailableError(err error) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusServiceUnavailable, Code: ErrCodeModelUnavailable, Message: err.Error()}
}

func NewInferenceFailedError(err error) ErrorInfo {
	return ErrorInfo{HttpStatus: http.StatusInternalServerError, Code: ErrCodeInferenceFailed, Message: "prediction failed", Detail: err.Error()}
}
