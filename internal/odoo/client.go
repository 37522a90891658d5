// Package odoo is the ERP collaborator: catalog search and the
// existing-state snapshot, over Odoo's JSON-RPC endpoint. Every call is
// bounded by the HTTP client timeout; a failure here aborts the run before
// any artifact is written.
package odoo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"ordersync/internal/resolve"
)

// Config carries the connection settings, loaded once and passed explicitly.
type Config struct {
	URL      string
	Database string
	Username string
	Password string
	Timeout  time.Duration
}

type Client struct {
	cfg        Config
	httpClient *http.Client
	uid        int64
	reqID      atomic.Int64
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxConnsPerHost:     5,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
	}
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int64     `json:"id"`
}

type rpcParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

type rpcError struct {
	Message string `json:"message"`
	Data    struct {
		Message string `json:"message"`
	} `json:"data"`
}

func (e *rpcError) Error() string {
	if e.Data.Message != "" {
		return e.Data.Message
	}
	return e.Message
}

func (c *Client) call(ctx context.Context, service, method string, args []any, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  rpcParams{Service: service, Method: method, Args: args},
		ID:      c.reqID.Add(1),
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.URL, "/")+"/jsonrpc", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call %s.%s: %w", service, method, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("call %s.%s: unexpected status %s", service, method, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *rpcError       `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if envelope.Error != nil {
		return fmt.Errorf("call %s.%s: %w", service, method, envelope.Error)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("decode result: %w", err)
		}
	}
	return nil
}

// Authenticate logs in and keeps the numeric user id for later calls.
func (c *Client) Authenticate(ctx context.Context) error {
	var uid int64
	err := c.call(ctx, "common", "login", []any{c.cfg.Database, c.cfg.Username, c.cfg.Password}, &uid)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	if uid == 0 {
		return fmt.Errorf("authenticate: invalid credentials for %q", c.cfg.Username)
	}
	c.uid = uid
	return nil
}

// executeKw runs one model method with the stored credentials.
func (c *Client) executeKw(ctx context.Context, mdl, method string, args []any, kwargs map[string]any, out any) error {
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	callArgs := []any{c.cfg.Database, c.uid, c.cfg.Password, mdl, method, args, kwargs}
	return c.call(ctx, "object", "execute_kw", callArgs, out)
}

// charField decodes Odoo char columns, which are JSON false when empty.
type charField string

func (f *charField) UnmarshalJSON(b []byte) error {
	if string(b) == "false" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*f = charField(s)
	return nil
}

// stock locations are presented without the stock root prefix
const stockRootPrefix = "F/Stock/"

func simpleLocation(loc string) string {
	return strings.TrimPrefix(loc, stockRootPrefix)
}

// Search looks up sellable products by display name and annotates each with
// internal on-hand quantities. Results keep the provider's relevance order.
// Satisfies resolve.Searcher.
func (c *Client) Search(ctx context.Context, term string) ([]resolve.Candidate, error) {
	var templates []struct {
		ID          int64     `json:"id"`
		Name        charField `json:"name"`
		DefaultCode charField `json:"default_code"`
	}
	err := c.executeKw(ctx, "product.template", "search_read",
		[]any{[]any{
			[]any{"name", "ilike", term},
			[]any{"sale_ok", "=", true},
		}},
		map[string]any{"fields": []string{"name", "default_code"}, "limit": 50},
		&templates)
	if err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}

	var tmplIDs []int64
	for _, t := range templates {
		if t.DefaultCode != "" {
			tmplIDs = append(tmplIDs, t.ID)
		}
	}
	stockByTmpl, err := c.stockByTemplate(ctx, tmplIDs)
	if err != nil {
		return nil, err
	}

	var out []resolve.Candidate
	for _, t := range templates {
		if t.DefaultCode == "" {
			continue
		}
		out = append(out, resolve.Candidate{
			SKU:   string(t.DefaultCode),
			Name:  string(t.Name),
			Stock: stockByTmpl[t.ID],
		})
	}
	return out, nil
}

// stockByTemplate batches the variant and quant lookups for all matched
// templates into two calls instead of two per product.
func (c *Client) stockByTemplate(ctx context.Context, tmplIDs []int64) (map[int64][]resolve.StockLevel, error) {
	out := make(map[int64][]resolve.StockLevel)
	if len(tmplIDs) == 0 {
		return out, nil
	}

	var variants []struct {
		ID       int64           `json:"id"`
		Template json.RawMessage `json:"product_tmpl_id"` // [id, name] pair
	}
	err := c.executeKw(ctx, "product.product", "search_read",
		[]any{[]any{[]any{"product_tmpl_id", "in", tmplIDs}}},
		map[string]any{"fields": []string{"product_tmpl_id"}},
		&variants)
	if err != nil {
		return nil, fmt.Errorf("load variants: %w", err)
	}
	tmplOf := make(map[int64]int64, len(variants))
	var variantIDs []int64
	for _, v := range variants {
		id, _ := pair(v.Template)
		tmplOf[v.ID] = id
		variantIDs = append(variantIDs, v.ID)
	}
	if len(variantIDs) == 0 {
		return out, nil
	}

	var quants []struct {
		Product  json.RawMessage `json:"product_id"`
		Location json.RawMessage `json:"location_id"`
		Quantity float64         `json:"quantity"`
	}
	err = c.executeKw(ctx, "stock.quant", "search_read",
		[]any{[]any{
			[]any{"product_id", "in", variantIDs},
			[]any{"quantity", ">", 0},
			[]any{"location_id.usage", "=", "internal"},
		}},
		map[string]any{"fields": []string{"product_id", "location_id", "quantity"}},
		&quants)
	if err != nil {
		return nil, fmt.Errorf("load stock: %w", err)
	}
	for _, q := range quants {
		pid, _ := pair(q.Product)
		tmpl, ok := tmplOf[pid]
		if !ok {
			continue
		}
		_, loc := pair(q.Location)
		out[tmpl] = append(out[tmpl], resolve.StockLevel{
			Qty:      int64(q.Quantity),
			Location: simpleLocation(loc),
		})
	}
	return out, nil
}

// pair decodes Odoo's many2one [id, display_name] representation.
func pair(raw json.RawMessage) (int64, string) {
	var tuple []any
	if err := json.Unmarshal(raw, &tuple); err != nil || len(tuple) < 2 {
		return 0, ""
	}
	id, _ := tuple[0].(float64)
	name, _ := tuple[1].(string)
	return int64(id), name
}
