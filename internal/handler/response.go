// Package handler 提供HTTP请求处理器
package handler

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/kebiao/kebiao/pkg/errors"
	"github.com/kebiao/kebiao/pkg/logger"
)

// envelope 统一响应结构
type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *errorBody  `json:"error,omitempty"`
	Meta    *listMeta   `json:"meta,omitempty"`
}

type errorBody struct {
	Code    errors.Code            `json:"code"`
	Message string                 `json:"message"`
	Details string                 `json:"details,omitempty"`
	Fields  map[string]interface{} `json:"fields,omitempty"`
}

type listMeta struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// respondJSON 返回成功响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

// respondList 返回分页列表
func respondList(w http.ResponseWriter, data interface{}, total, limit, offset int) {
	writeJSON(w, http.StatusOK, envelope{
		Success: true,
		Data:    data,
		Meta:    &listMeta{Total: total, Limit: limit, Offset: offset},
	})
}

// respondError 返回错误响应，非 AppError 视为内部错误
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *errors.AppError
	if !stderrors.As(err, &appErr) {
		appErr = errors.Wrap(err, errors.CodeInternal, "内部错误")
	}

	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		logger.WithContext(r.Context()).Error().Err(err).
			Str("code", string(appErr.Code)).
			Str("path", r.URL.Path).
			Msg("请求处理失败")
	}

	body := &errorBody{
		Code:    appErr.Code,
		Message: appErr.Message,
		Details: appErr.Details,
		Fields:  appErr.Fields,
	}
	if body.Details == "" && appErr.Cause != nil && status < http.StatusInternalServerError {
		body.Details = appErr.Cause.Error()
	}
	writeJSON(w, status, envelope{Success: false, Error: body})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn().Err(err).Msg("写入响应失败")
	}
}

// decodeJSON 解析请求体
func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return errors.New(errors.CodeInvalidInput, "请求体过大").WithCause(err)
		}
		return errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败")
	}
	return nil
}
