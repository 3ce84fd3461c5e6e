package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	log "github.com/sirupsen/logrus"
)

// ErrorBody — тело ответа при ошибке.
type ErrorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Respond пишет JSON-ответ с указанным статусом.
func Respond(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.WithError(err).Warn("Не удалось записать JSON-ответ")
	}
}

// RespondError переводит ошибку в статус и тело по таксономии.
// Внутренние ошибки логируются, клиент видит только общий текст и причину в details.
func RespondError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)
	body := ErrorBody{Error: PublicMessage(err)}

	var e *Error
	if errors.As(err, &e) && e.Err != nil {
		body.Details = e.Err.Error()
	} else if !errors.As(err, &e) {
		body.Details = err.Error()
	}

	if status >= http.StatusInternalServerError {
		log.WithError(err).WithField("kind", KindOf(err).String()).Error("Ошибка обработки запроса")
	}
	Respond(w, status, body)
}

// maxBodyBytes — ограничение на размер JSON-тела запроса.
const maxBodyBytes = 1 << 20

// DecodeJSON читает JSON-тело запроса в dst.
// Пустое или битое тело — ошибка валидации.
func DecodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return Validation("request body is required")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return Validation("request body is required")
		}
		return Validation(fmt.Sprintf("invalid JSON body: %v", err))
	}
	return nil
}
