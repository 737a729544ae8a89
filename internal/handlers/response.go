package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	apierr "github.com/hosplant/hosplant/internal/errors"
	"github.com/hosplant/hosplant/internal/model"
	"github.com/hosplant/hosplant/internal/preprocess"
)

func ResponseError(w http.ResponseWriter, err error) {
	info := toErrorInfo(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(info.HttpStatus)
	json.NewEncoder(w).Encode(info)
}

func ResponseOK(w http.ResponseWriter, data any) {
	ResponseJSON(w, http.StatusOK, data)
}

func ResponseJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

func toErrorInfo(err error) apierr.ErrorInfo {
	info := apierr.ErrorInfo{}
	switch {
	case errors.As(err, &info):
		return info
	case errors.Is(err, preprocess.ErrDynamicInputShape):
		return apierr.NewUnsupportedModelShapeError(err)
	case errors.Is(err, model.ErrNoSession):
		return apierr.NewModelUnavailableError(err)
	default:
		return apierr.NewInferenceFailedError(err)
	}
}
