package httpstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chazu/instancegraph/pkg/store"
)

// Client is a store.Store talking to a Server.
type Client struct {
	base string
	hc   *http.Client
}

// NewClient returns a client for the server at baseURL. A nil hc uses a
// client with a 30s timeout.
func NewClient(baseURL string, hc *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("httpstore: bad server url %q", baseURL)
	}
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), hc: hc}, nil
}

func (c *Client) Driver() store.Driver { return store.DriverHTTP }

func (c *Client) Close() error {
	c.hc.CloseIdleConnections()
	return nil
}

func (c *Client) objectURL(key string) string {
	segs := strings.Split(key, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return c.base + "/objects/" + strings.Join(segs, "/")
}

func (c *Client) do(ctx context.Context, method, u string, body []byte, contentType string) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.hc.Do(req)
}

// statusError maps server statuses back to store sentinels.
func statusError(resp *http.Response, key string) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	text := strings.TrimSpace(string(msg))
	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", store.ErrNotFound, key)
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", store.ErrInvalidKey, text)
	}
	return fmt.Errorf("httpstore: %s: %s", resp.Status, text)
}

func (c *Client) Put(ctx context.Context, key string, data []byte, contentType string) (store.Info, error) {
	if err := store.ValidateKey(key); err != nil {
		return store.Info{}, err
	}
	if data == nil {
		data = []byte{}
	}
	resp, err := c.do(ctx, http.MethodPut, c.objectURL(key), data, contentType)
	if err != nil {
		return store.Info{}, fmt.Errorf("httpstore: put %s: %w", key, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return store.Info{}, statusError(resp, key)
	}
	var info store.Info
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return store.Info{}, fmt.Errorf("httpstore: put %s: decode reply: %w", key, err)
	}
	return info, nil
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, store.Info, error) {
	if err := store.ValidateKey(key); err != nil {
		return nil, store.Info{}, fmt.Errorf("%w: %s", store.ErrNotFound, key)
	}
	resp, err := c.do(ctx, http.MethodGet, c.objectURL(key), nil, "")
	if err != nil {
		return nil, store.Info{}, fmt.Errorf("httpstore: get %s: %w", key, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, store.Info{}, statusError(resp, key)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, store.Info{}, fmt.Errorf("httpstore: get %s: %w", key, err)
	}
	info := store.Info{Key: key, Size: int64(len(data)), ContentType: resp.Header.Get("Content-Type")}
	if ts, err := time.Parse(time.RFC3339Nano, resp.Header.Get(updatedHeader)); err == nil {
		info.UpdatedAt = ts
	}
	return data, info, nil
}

func (c *Client) Delete(ctx context.Context, key string) error {
	if err := store.ValidateKey(key); err != nil {
		return fmt.Errorf("%w: %s", store.ErrNotFound, key)
	}
	resp, err := c.do(ctx, http.MethodDelete, c.objectURL(key), nil, "")
	if err != nil {
		return fmt.Errorf("httpstore: delete %s: %w", key, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		return statusError(resp, key)
	}
	return nil
}

func (c *Client) List(ctx context.Context, prefix string) ([]store.Info, error) {
	resp, err := c.do(ctx, http.MethodGet, c.base+"/objects?prefix="+url.QueryEscape(prefix), nil, "")
	if err != nil {
		return nil, fmt.Errorf("httpstore: list: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp, prefix)
	}
	var infos []store.Info
	if err := json.NewDecoder(resp.Body).Decode(&infos); err != nil {
		return nil, fmt.Errorf("httpstore: list: decode: %w", err)
	}
	return infos, nil
}
