package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/agemsdev/fiscaliza_backend/models"
	"bitbucket.org/agemsdev/fiscaliza_backend/utils"
)

// HTTPStore is the production Store: JSON over REST against the remote
// datastore.
//
//	POST   {base}/entities/{name}          create
//	POST   {base}/entities/{name}/bulk     bulkCreate
//	PUT    {base}/entities/{name}/{id}     update
//	DELETE {base}/entities/{name}/{id}     delete
//	GET    {base}/entities/{name}?...      filter
type HTTPStore struct {
	baseURL   string
	apiKey    string
	apiKeyHdr string
	http      *http.Client
}

func NewHTTPStore(baseURL, apiKey string, timeout time.Duration) (*HTTPStore, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("remote base url is empty")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPStore{
		baseURL:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:    strings.TrimSpace(apiKey),
		apiKeyHdr: "X-API-Key",
		http:      &http.Client{Timeout: timeout},
	}, nil
}

// Ping probes the remote health endpoint; the connectivity monitor uses
// it to derive the online signal.
func (c *HTTPStore) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("health check status %d", resp.StatusCode)
	}
	return nil
}

func (c *HTTPStore) Create(ctx context.Context, entity models.EntityName, data Record) (Record, error) {
	var out Record
	err := c.do(ctx, http.MethodPost, c.entityPath(entity), data, &out)
	if err != nil {
		return nil, &utils.RemoteWriteError{Entity: string(entity), Op: "create", Err: err}
	}
	return out, nil
}

func (c *HTTPStore) Update(ctx context.Context, entity models.EntityName, id string, data Record) (Record, error) {
	var out Record
	err := c.do(ctx, http.MethodPut, c.entityPath(entity)+"/"+url.PathEscape(id), data, &out)
	if err != nil {
		return nil, &utils.RemoteWriteError{Entity: string(entity), Op: "update", Err: err}
	}
	return out, nil
}

func (c *HTTPStore) Delete(ctx context.Context, entity models.EntityName, id string) error {
	err := c.do(ctx, http.MethodDelete, c.entityPath(entity)+"/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return &utils.RemoteWriteError{Entity: string(entity), Op: "delete", Err: err}
	}
	return nil
}

func (c *HTTPStore) Filter(ctx context.Context, entity models.EntityName, filter Record, sort string, limit int) ([]Record, error) {
	params := url.Values{}
	for k, v := range filter {
		params.Set(k, fmt.Sprint(v))
	}
	if sort != "" {
		params.Set("sort", sort)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	endpoint := c.entityPath(entity)
	if len(params) > 0 {
		endpoint = endpoint + "?" + params.Encode()
	}

	var parsed struct {
		Data  []Record `json:"data"`
		Items []Record `json:"items"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &parsed); err != nil {
		return nil, err
	}
	if parsed.Data != nil {
		return parsed.Data, nil
	}
	return parsed.Items, nil
}

func (c *HTTPStore) BulkCreate(ctx context.Context, entity models.EntityName, data []Record) ([]Record, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var parsed struct {
		Data []Record `json:"data"`
	}
	err := c.do(ctx, http.MethodPost, c.entityPath(entity)+"/bulk", map[string]any{"records": data}, &parsed)
	if err != nil {
		return nil, &utils.RemoteWriteError{Entity: string(entity), Op: "bulkCreate", Err: err}
	}
	return parsed.Data, nil
}

func (c *HTTPStore) entityPath(entity models.EntityName) string {
	return c.baseURL + "/entities/" + url.PathEscape(string(entity))
}

func (c *HTTPStore) do(ctx context.Context, method, endpoint string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if c.apiKey != "" {
		req.Header.Set(c.apiKeyHdr, c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode == http.StatusNotFound {
		return utils.ErrorRecordNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("remote api error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return err
		}
	}
	return nil
}
