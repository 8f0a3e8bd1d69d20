package domain

import (
	"errors"
	"fmt"
)

// ErrListingNotFound возвращается при обращении к несуществующему объявлению.
var ErrListingNotFound = errors.New("объявление не найдено")

// ErrGroupNotFound возвращается при обращении к несуществующей группе.
var ErrGroupNotFound = errors.New("группа не найдена")

// ErrGroupInactive возвращается при попытке отправки в отключённую группу.
var ErrGroupInactive = errors.New("группа отключена")

// GatewayError описывает ошибку провайдера после исчерпания повторов.
type GatewayError struct {
	Code    string
	Message string
}

func (e *GatewayError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("whatsapp: %s", e.Message)
	}
	return fmt.Sprintf("whatsapp: %s (code %s)", e.Message, e.Code)
}
