package storeaccess

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"michatta/internal/facade"
	"michatta/internal/viewed"
)

// ErrCallFailed wraps failure envelopes returned by the facade.
var ErrCallFailed = errors.New("storage call failed")

// Client exposes the facade vocabulary as typed methods.
type Client struct {
	caller Caller
}

// NewClient wraps caller.
func NewClient(caller Caller) *Client {
	return &Client{caller: caller}
}

func (c *Client) call(ctx context.Context, method string, params any) (facade.Response, error) {
	req := facade.Request{Action: facade.ActionStorage, Method: method}
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return facade.Response{}, fmt.Errorf("encode %s params: %w", method, err)
		}
		req.Params = raw
	}
	resp, err := c.caller.Call(ctx, req)
	if err != nil {
		return facade.Response{}, fmt.Errorf("%s: %w", method, err)
	}
	if !resp.Success {
		msg := resp.Error
		if msg == "" {
			msg = "operation reported failure"
		}
		return resp, fmt.Errorf("%s: %w: %s", method, ErrCallFailed, msg)
	}
	return resp, nil
}

func items(resp facade.Response) map[string]int64 {
	if resp.Items == nil {
		return map[string]int64{}
	}
	return resp.Items
}

// GetViewedItems returns every viewed item.
func (c *Client) GetViewedItems(ctx context.Context) (map[string]int64, error) {
	resp, err := c.call(ctx, facade.MethodGetViewedItems, nil)
	if err != nil {
		return nil, err
	}
	return items(resp), nil
}

// GetViewedItemsBatch returns the viewed subset of ids.
func (c *Client) GetViewedItemsBatch(ctx context.Context, ids []string) (map[string]int64, error) {
	if ids == nil {
		ids = []string{}
	}
	resp, err := c.call(ctx, facade.MethodGetViewedItemsBatch, map[string]any{"ids": ids})
	if err != nil {
		return nil, err
	}
	return items(resp), nil
}

// SaveViewedItem marks id as viewed now.
func (c *Client) SaveViewedItem(ctx context.Context, id string) error {
	_, err := c.call(ctx, facade.MethodSaveViewedItem, map[string]any{"itemId": id})
	return err
}

// SaveViewedItemsBulk records many items with explicit timestamps.
func (c *Client) SaveViewedItemsBulk(ctx context.Context, entries map[string]int64) error {
	if entries == nil {
		entries = map[string]int64{}
	}
	_, err := c.call(ctx, facade.MethodSaveViewedItemsBulk, map[string]any{"items": entries})
	return err
}

// GetViewedItemsCount returns the number of viewed items.
func (c *Client) GetViewedItemsCount(ctx context.Context) (int, error) {
	resp, err := c.call(ctx, facade.MethodGetViewedItemsCount, nil)
	if err != nil {
		return 0, err
	}
	if resp.Count == nil {
		return 0, nil
	}
	return *resp.Count, nil
}

// ClearAllViewedItems deletes every viewed item.
func (c *Client) ClearAllViewedItems(ctx context.Context) error {
	_, err := c.call(ctx, facade.MethodClearAllViewedItems, nil)
	return err
}

// GetAlertSettings returns the effective alert thresholds.
func (c *Client) GetAlertSettings(ctx context.Context) (viewed.AlertSettings, error) {
	resp, err := c.call(ctx, facade.MethodGetAlertSettings, nil)
	if err != nil {
		return viewed.AlertSettings{}, err
	}
	if resp.Settings == nil {
		return viewed.DefaultAlertSettings(), nil
	}
	return *resp.Settings, nil
}

// SaveAlertSettings replaces the stored alert thresholds.
func (c *Client) SaveAlertSettings(ctx context.Context, settings viewed.AlertSettings) error {
	_, err := c.call(ctx, facade.MethodSaveAlertSettings, map[string]any{"settings": settings})
	return err
}

// IsPremiumUnlocked reports the unlock flag.
func (c *Client) IsPremiumUnlocked(ctx context.Context) (bool, error) {
	resp, err := c.call(ctx, facade.MethodIsPremiumUnlocked, nil)
	if err != nil {
		return false, err
	}
	return resp.Unlocked != nil && *resp.Unlocked, nil
}

// UnlockPremium sets the unlock flag.
func (c *Client) UnlockPremium(ctx context.Context) error {
	_, err := c.call(ctx, facade.MethodUnlockPremium, nil)
	return err
}
