package utils

import (
	"encoding/json"
	"log"
	"net/http"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// RespondJSON 发送JSON响应
func RespondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// RespondSuccess 发送 {"status":"success", ...} 响应，payload 的字段被平铺到顶层。
func RespondSuccess(w http.ResponseWriter, status int, payload interface{}) {
	body := map[string]any{}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			log.Printf("failed to marshal success payload: %v", err)
			RespondError(w, http.StatusInternalServerError, "failed to encode response")
			return
		}
		if err := json.Unmarshal(raw, &body); err != nil {
			// 非对象类型放在 data 字段中。
			body = map[string]any{"data": json.RawMessage(raw)}
		}
	}
	body["status"] = StatusSuccess
	RespondJSON(w, status, body)
}

// RespondError 发送错误响应
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondFailure(w, status, message, "")
}

// RespondFailure 发送带原因码的错误响应
func RespondFailure(w http.ResponseWriter, status int, message, reason string) {
	body := map[string]string{"status": StatusError, "error": message}
	if reason != "" {
		body["reason"] = reason
	}
	RespondJSON(w, status, body)
}
