package recordstore

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"io"
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
)

//go:embed openapi.yaml
var contractSpec []byte

// ContractValidator проверяет ответы хранилища по встроенному
// OpenAPI-описанию (openapi.yaml).
type ContractValidator struct {
	router routers.Router
}

// NewContractValidator загружает контракт и привязывает его к baseURL хранилища.
func NewContractValidator(ctx context.Context, baseURL string) (*ContractValidator, error) {
	loader := openapi3.NewLoader()
	loader.Context = ctx

	doc, err := loader.LoadFromData(contractSpec)
	if err != nil {
		return nil, fmt.Errorf("загрузка контракта хранилища: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("валидация контракта хранилища: %w", err)
	}

	// Маршруты ищутся относительно реального адреса хранилища
	doc.Servers = openapi3.Servers{&openapi3.Server{URL: normalizeURL(baseURL)}}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("построение маршрутов контракта: %w", err)
	}

	return &ContractValidator{router: router}, nil
}

// ValidateResponse проверяет статус, заголовки и тело ответа на запрос req.
func (v *ContractValidator) ValidateResponse(ctx context.Context, req *http.Request, status int, header http.Header, body []byte) error {
	route, pathParams, err := v.router.FindRoute(req)
	if err != nil {
		return fmt.Errorf("%w: маршрут %s %s: %v", ErrContract, req.Method, req.URL.Path, err)
	}

	opts := &openapi3filter.Options{
		IncludeResponseStatus: true,
		AuthenticationFunc:    openapi3filter.NoopAuthenticationFunc,
	}
	input := &openapi3filter.ResponseValidationInput{
		RequestValidationInput: &openapi3filter.RequestValidationInput{
			Request:    req,
			PathParams: pathParams,
			Route:      route,
			Options:    opts,
		},
		Status:  status,
		Header:  header,
		Body:    io.NopCloser(bytes.NewReader(body)),
		Options: opts,
	}

	if err := openapi3filter.ValidateResponse(ctx, input); err != nil {
		return fmt.Errorf("%w: %v", ErrContract, err)
	}
	return nil
}
