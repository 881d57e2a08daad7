// Пакет recordstore — HTTP-клиент удалённого хранилища записей.
// Операции: List (GET /users), Create (POST /users),
// Update (PUT /users/{id}), Delete (DELETE /users/{id}).
// Каждый запрос несёт токен сессии в заголовке Authorization: Bearer.
// Поддерживает TLS с кастомным CA (RU_STORE_CA_CERT_PATH).
package recordstore

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"

	"github.com/bigkaa/goartstore/records-ui/internal/domain/model"
)

// maxBodySize — предел чтения тела ответа.
const maxBodySize = 8 << 20

// maxErrorBody — сколько байт тела сохраняется в StatusError.
const maxErrorBody = 512

// Options — параметры клиента хранилища.
type Options struct {
	// BaseURL — адрес хранилища (без завершающего /)
	BaseURL string
	// Timeout — таймаут одного запроса
	Timeout time.Duration
	// CACertPath — путь к CA-сертификату (пустая строка — системный пул)
	CACertPath string
	// ValidateResponses — проверять ответы по OpenAPI-контракту
	ValidateResponses bool
	// HTTPClient — готовый HTTP-клиент (тесты); перекрывает Timeout и CACertPath
	HTTPClient *http.Client
}

// Client — HTTP-клиент хранилища записей.
type Client struct {
	baseURL    string
	httpClient *http.Client
	validator  *ContractValidator
	logger     *slog.Logger
}

// New создаёт клиент хранилища.
func New(ctx context.Context, opts Options, logger *slog.Logger) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}

		if opts.CACertPath != "" {
			tlsConfig, err := buildTLSConfig(opts.CACertPath)
			if err != nil {
				return nil, fmt.Errorf("загрузка CA-сертификата хранилища: %w", err)
			}
			httpClient.Transport = &http.Transport{
				TLSClientConfig: tlsConfig,
			}
			logger.Info("CA-сертификат хранилища добавлен в пул доверия",
				slog.String("ca_cert", opts.CACertPath),
			)
		}
	}

	c := &Client{
		baseURL:    normalizeURL(opts.BaseURL),
		httpClient: httpClient,
		logger:     logger.With(slog.String("component", "record_store")),
	}

	if opts.ValidateResponses {
		v, err := NewContractValidator(ctx, c.baseURL)
		if err != nil {
			return nil, err
		}
		c.validator = v
	}

	return c, nil
}

// buildTLSConfig создаёт TLS-конфигурацию с кастомным CA.
func buildTLSConfig(caCertPath string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("чтение CA-сертификата: %w", err)
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	caCertPool.AppendCertsFromPEM(caCert)

	return &tls.Config{
		RootCAs: caCertPool,
	}, nil
}

// BaseURL возвращает адрес хранилища.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// List запрашивает все записи.
// GET /users → 200 JSON-массив.
func (c *Client) List(ctx context.Context, token string) ([]model.Record, error) {
	body, err := c.do(ctx, "list", http.MethodGet, "/users", token, nil)
	if err != nil {
		return nil, err
	}

	var records []model.Record
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, fmt.Errorf("декодирование list: %w: %v", ErrMalformedBody, err)
	}
	if records == nil {
		// null в ответе трактуется как пустой список
		records = []model.Record{}
	}
	return records, nil
}

// Create создаёт запись.
// POST /users {name, dob} → 200/201 JSON-запись.
func (c *Client) Create(ctx context.Context, token string, payload model.RecordPayload) (*model.Record, error) {
	body, err := c.do(ctx, "create", http.MethodPost, "/users", token, payload)
	if err != nil {
		return nil, err
	}
	return decodeRecord("create", body)
}

// Update изменяет запись.
// PUT /users/{id} {name, dob} → 200 JSON-запись; 404 → ErrNotFound.
func (c *Client) Update(ctx context.Context, token, id string, payload model.RecordPayload) (*model.Record, error) {
	path, err := recordPath(id)
	if err != nil {
		return nil, err
	}
	body, err := c.do(ctx, "update", http.MethodPut, path, token, payload)
	if err != nil {
		return nil, err
	}
	return decodeRecord("update", body)
}

// Delete удаляет запись.
// DELETE /users/{id} → 200; тело ответа не используется.
func (c *Client) Delete(ctx context.Context, token, id string) error {
	path, err := recordPath(id)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, "delete", http.MethodDelete, path, token, nil)
	return err
}

// do выполняет запрос и возвращает тело успешного ответа.
func (c *Client) do(ctx context.Context, op, method, path, token string, payload any) ([]byte, error) {
	if token == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrNoToken)
	}

	var reqBody io.Reader = http.NoBody
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("кодирование %s: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("создание запроса %s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	storeRequestDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		storeRequestsTotal.WithLabelValues(op, "error").Inc()
		return nil, fmt.Errorf("запрос %s к хранилищу: %w", op, err)
	}
	defer resp.Body.Close()
	storeRequestsTotal.WithLabelValues(op, strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("чтение ответа %s: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Debug("Хранилище вернуло ошибку",
			slog.String("op", op),
			slog.Int("status", resp.StatusCode),
		)
		return nil, &StatusError{Op: op, StatusCode: resp.StatusCode, Body: truncate(string(body), maxErrorBody)}
	}

	if c.validator != nil {
		if err := c.validator.ValidateResponse(ctx, req, resp.StatusCode, resp.Header, body); err != nil {
			storeContractViolations.WithLabelValues(op).Inc()
			c.logger.Warn("Ответ хранилища нарушает контракт",
				slog.String("op", op),
				slog.String("error", err.Error()),
			)
			return nil, err
		}
	}

	return body, nil
}

// decodeRecord разбирает одну запись из тела ответа.
func decodeRecord(op string, body []byte) (*model.Record, error) {
	var rec model.Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("декодирование %s: %w: %v", op, ErrMalformedBody, err)
	}
	return &rec, nil
}

// recordPath строит путь /users/{id} с экранированием идентификатора
// по правилам simple-стиля OpenAPI.
func recordPath(id string) (string, error) {
	if id == "" {
		return "", fmt.Errorf("пустой идентификатор записи: %w", ErrNotFound)
	}
	escaped, err := runtime.StyleParamWithLocation("simple", false, "id", runtime.ParamLocationPath, id)
	if err != nil {
		return "", fmt.Errorf("идентификатор записи %q: %w", id, err)
	}
	return "/users/" + escaped, nil
}

// normalizeURL убирает trailing slash из URL.
func normalizeURL(rawURL string) string {
	return strings.TrimRight(rawURL, "/")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
