package cli

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
)

// Client is a thin JSON client for the magnate API. Admin endpoints take the
// operator token from MG_ADMIN_TOKEN.
type Client struct {
	BaseURL    string
	AdminToken string
	HTTP       *http.Client
}

func NewClient(baseURL, adminToken string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		AdminToken: adminToken,
		HTTP: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *Client) State(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/state", nil, &out, false)
	return out, err
}

func (c *Client) AdvanceTicks(ctx context.Context, ticks int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/ticks/advance", map[string]any{
		"ticks": ticks,
	}, &out, true)
	return out, err
}

func (c *Client) PlaceOrder(ctx context.Context, companyCode, side string, itemID, regionID, quantity, unitPriceCents int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/orders", map[string]any{
		"company_code":     companyCode,
		"item_id":          itemID,
		"region_id":        regionID,
		"side":             side,
		"quantity":         quantity,
		"unit_price_cents": unitPriceCents,
	}, &out, false)
	return out, err
}

func (c *Client) CancelOrder(ctx context.Context, orderID int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodDelete, fmt.Sprintf("/v1/orders/%d", orderID), nil, &out, false)
	return out, err
}

func (c *Client) OrderBook(ctx context.Context, itemID, regionID int64) (map[string]any, error) {
	var out map[string]any
	path := fmt.Sprintf("/v1/orders?item_id=%d&region_id=%d", itemID, regionID)
	err := c.jsonRequest(ctx, http.MethodGet, path, nil, &out, false)
	return out, err
}

func (c *Client) Candles(ctx context.Context, itemID, regionID, fromTick, toTick int64) (map[string]any, error) {
	var out map[string]any
	path := fmt.Sprintf("/v1/candles?item_id=%d&region_id=%d&from_tick=%d&to_tick=%d",
		itemID, regionID, fromTick, toTick)
	err := c.jsonRequest(ctx, http.MethodGet, path, nil, &out, false)
	return out, err
}

func (c *Client) Company(ctx context.Context, code string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/companies/"+url.PathEscape(code), nil, &out, false)
	return out, err
}

func (c *Client) CompanyLedger(ctx context.Context, code string, limit int64) (map[string]any, error) {
	var out map[string]any
	path := fmt.Sprintf("/v1/companies/%s/ledger?limit=%d", url.PathEscape(code), limit)
	err := c.jsonRequest(ctx, http.MethodGet, path, nil, &out, false)
	return out, err
}

func (c *Client) StartProduction(ctx context.Context, companyCode string, recipeID, runs int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/jobs/production", map[string]any{
		"company_code": companyCode,
		"recipe_id":    recipeID,
		"runs":         runs,
	}, &out, false)
	return out, err
}

func (c *Client) StartResearch(ctx context.Context, companyCode string, nodeID int64) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/jobs/research", map[string]any{
		"company_code": companyCode,
		"node_id":      nodeID,
	}, &out, false)
	return out, err
}

func (c *Client) Recruit(ctx context.Context, companyCode, roleCode string) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/workforce/recruit", map[string]any{
		"company_code": companyCode,
		"role_code":    roleCode,
	}, &out, false)
	return out, err
}

func (c *Client) RunBots(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodPost, "/v1/bots/run", map[string]any{}, &out, true)
	return out, err
}

func (c *Client) Audit(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.jsonRequest(ctx, http.MethodGet, "/v1/audit", nil, &out, false)
	return out, err
}

func (c *Client) AdjustCash(ctx context.Context, companyCode string, deltaCents int64, reason string) (map[string]any, error) {
	var out map[string]any
	path := "/v1/companies/" + url.PathEscape(companyCode) + "/adjust-cash"
	err := c.jsonRequest(ctx, http.MethodPost, path, map[string]any{
		"delta_cents": deltaCents,
		"reason":      reason,
	}, &out, true)
	return out, err
}

func (c *Client) jsonRequest(ctx context.Context, method, path string, in any, out any, admin bool) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		if strings.TrimSpace(c.AdminToken) == "" {
			return fmt.Errorf("MG_ADMIN_TOKEN is required for this command")
		}
		req.Header.Set("Authorization", "Bearer "+c.AdminToken)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("api status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
