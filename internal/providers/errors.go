package providers

import "fmt"

// UnsupportedProviderError неизвестный ключ провайдера.
type UnsupportedProviderError struct {
	Key string
}

func (e *UnsupportedProviderError) Error() string {
	return fmt.Sprintf("unsupported provider: %q", e.Key)
}

// FetchError сетевой сбой или ответ не 2xx.
type FetchError struct {
	Provider string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s: fetch failed: %v", e.Provider, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// DecodeError ответ не удалось разобрать или он имеет неожиданную форму.
type DecodeError struct {
	Provider string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: decode failed: %v", e.Provider, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
