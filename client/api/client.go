// Package api - HTTP клиент для API облачного хранилища.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dkhoid/cloud-data-storage/models"
)

const defaultTimeout = 5 * time.Minute

// ErrAuthorization сигнализирует об ошибке авторизации (401).
var ErrAuthorization = errors.New("ошибка авторизации")

// APIError - ответ сервера с кодом не 2xx.
type APIError struct {
	StatusCode int
	Message    string // Поле error из тела ответа, если удалось разобрать
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("ошибка сервера: статус %d", e.StatusCode)
	}
	return fmt.Sprintf("ошибка сервера: статус %d: %s", e.StatusCode, e.Message)
}

// Unwrap позволяет проверять 401 через errors.Is(err, ErrAuthorization).
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrAuthorization
	}
	return nil
}

// Client определяет интерфейс для взаимодействия с API сервера.
type Client interface {
	// Register регистрирует нового пользователя.
	Register(ctx context.Context, username, email, password string) (*models.User, error)
	// Login аутентифицирует пользователя и сохраняет токен в клиенте.
	Login(ctx context.Context, username, password string) (string, error)
	// SetAuthToken устанавливает JWT токен для аутентифицированных запросов.
	SetAuthToken(token string)

	Upload(ctx context.Context, filename string, data io.Reader) (*models.File, error)
	ListFiles(ctx context.Context) ([]models.File, error)
	// Download возвращает тело файла, которое вызывающий обязан закрыть.
	Download(ctx context.Context, fileID int64) (io.ReadCloser, error)
	Delete(ctx context.Context, fileID int64) error

	UserInfo(ctx context.Context) (*models.UserInfo, error)
	UsageHistory(ctx context.Context) ([]models.UsageRecord, error)
	Pricing(ctx context.Context) ([]models.PricingPlan, error)
	Upgrade(ctx context.Context, plan, billingCycle string) (*models.PricingPlan, error)
	Transactions(ctx context.Context) ([]models.Transaction, error)
	// AdminStats передает adminToken в X-Admin-Token, если он не пустой.
	AdminStats(ctx context.Context, adminToken string) (*models.AdminStats, error)
}

// httpClient реализует интерфейс Client для взаимодействия с сервером по HTTP.
type httpClient struct {
	baseURL    string
	httpClient *http.Client
	authToken  string
}

// NewHTTPClient создает новый экземпляр API клиента.
func NewHTTPClient(baseURL string) Client {
	return &httpClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

func (c *httpClient) SetAuthToken(token string) {
	c.authToken = token
}

func (c *httpClient) Register(ctx context.Context, username, email, password string) (*models.User, error) {
	var resp models.RegisterResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/register", models.RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
	}, &resp, false)
	if err != nil {
		return nil, fmt.Errorf("ошибка регистрации: %w", err)
	}
	return resp.User, nil
}

func (c *httpClient) Login(ctx context.Context, username, password string) (string, error) {
	var resp models.LoginResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/login", models.LoginRequest{
		Username: username,
		Password: password,
	}, &resp, false)
	if err != nil {
		return "", fmt.Errorf("ошибка входа: %w", err)
	}
	if resp.Token == "" {
		return "", errors.New("сервер вернул пустой токен")
	}

	c.authToken = resp.Token
	return resp.Token, nil
}

// Upload отправляет файл multipart формой. Тело передается потоком через io.Pipe.
func (c *httpClient) Upload(ctx context.Context, filename string, data io.Reader) (*models.File, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		part, err := mw.CreateFormFile("file", filename)
		if err == nil {
			_, err = io.Copy(part, data)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/api/upload", pr, true)
	if err != nil {
		_ = pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp models.UploadResponse
	if err = c.do(req, &resp); err != nil {
		return nil, fmt.Errorf("ошибка загрузки файла: %w", err)
	}
	return resp.File, nil
}

func (c *httpClient) ListFiles(ctx context.Context) ([]models.File, error) {
	var resp models.FileListResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/files", nil, &resp, true); err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	return resp.Files, nil
}

func (c *httpClient) Download(ctx context.Context, fileID int64) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/download/"+strconv.FormatInt(fileID, 10), nil, true)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка выполнения запроса на скачивание: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, fmt.Errorf("ошибка скачивания файла: %w", decodeAPIError(resp))
	}
	return resp.Body, nil
}

func (c *httpClient) Delete(ctx context.Context, fileID int64) error {
	path := "/api/delete/" + strconv.FormatInt(fileID, 10)
	if err := c.doJSON(ctx, http.MethodDelete, path, nil, nil, true); err != nil {
		return fmt.Errorf("ошибка удаления файла: %w", err)
	}
	return nil
}

func (c *httpClient) UserInfo(ctx context.Context) (*models.UserInfo, error) {
	var info models.UserInfo
	if err := c.doJSON(ctx, http.MethodGet, "/api/user/info", nil, &info, true); err != nil {
		return nil, fmt.Errorf("ошибка получения профиля: %w", err)
	}
	return &info, nil
}

func (c *httpClient) UsageHistory(ctx context.Context) ([]models.UsageRecord, error) {
	var resp models.UsageHistoryResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/usage/history", nil, &resp, true); err != nil {
		return nil, fmt.Errorf("ошибка получения истории использования: %w", err)
	}
	return resp.UsageHistory, nil
}

func (c *httpClient) Pricing(ctx context.Context) ([]models.PricingPlan, error) {
	var resp models.PlansResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/pricing", nil, &resp, false); err != nil {
		return nil, fmt.Errorf("ошибка получения тарифов: %w", err)
	}
	return resp.Plans, nil
}

func (c *httpClient) Upgrade(ctx context.Context, plan, billingCycle string) (*models.PricingPlan, error) {
	var resp models.UpgradeResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/upgrade", models.UpgradeRequest{
		Plan:         plan,
		BillingCycle: billingCycle,
	}, &resp, true)
	if err != nil {
		return nil, fmt.Errorf("ошибка смены тарифа: %w", err)
	}
	return resp.Plan, nil
}

func (c *httpClient) Transactions(ctx context.Context) ([]models.Transaction, error) {
	var resp models.TransactionsResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/transactions", nil, &resp, true); err != nil {
		return nil, fmt.Errorf("ошибка получения транзакций: %w", err)
	}
	return resp.Transactions, nil
}

func (c *httpClient) AdminStats(ctx context.Context, adminToken string) (*models.AdminStats, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/admin/stats", nil, false)
	if err != nil {
		return nil, err
	}
	if adminToken != "" {
		req.Header.Set("X-Admin-Token", adminToken)
	}

	var resp models.AdminStatsResponse
	if err = c.do(req, &resp); err != nil {
		return nil, fmt.Errorf("ошибка получения статистики: %w", err)
	}
	return resp.Stats, nil
}

// newRequest собирает запрос к API. withAuth требует предварительного входа.
func (c *httpClient) newRequest(
	ctx context.Context,
	method, path string,
	body io.Reader,
	withAuth bool,
) (*http.Request, error) {
	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return nil, fmt.Errorf("ошибка формирования URL %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса %s: %w", path, err)
	}
	if withAuth {
		if c.authToken == "" {
			return nil, fmt.Errorf("токен аутентификации отсутствует: %w", ErrAuthorization)
		}
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	return req, nil
}

// doJSON кодирует in (если не nil) в тело запроса и декодирует ответ в out (если не nil).
func (c *httpClient) doJSON(ctx context.Context, method, path string, in, out interface{}, withAuth bool) error {
	var body io.Reader
	if in != nil {
		jsonData, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("ошибка кодирования запроса: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := c.newRequest(ctx, method, path, body, withAuth)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *httpClient) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка выполнения запроса: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err = json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("ошибка декодирования ответа: %w", err)
	}
	return nil
}

// decodeAPIError читает конверт {"error": "..."} из ответа с ошибкой.
func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var envelope models.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err == nil {
		apiErr.Message = envelope.Error
	}
	return apiErr
}
