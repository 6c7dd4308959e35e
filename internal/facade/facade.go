package facade

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"michatta/internal/logging"
	"michatta/internal/viewed"
)

// Method names accepted by Call.
const (
	MethodGetViewedItems      = "getViewedItems"
	MethodGetViewedItemsBatch = "getViewedItemsBatch"
	MethodSaveViewedItem      = "saveViewedItem"
	MethodSaveViewedItemsBulk = "saveViewedItemsBulk"
	MethodGetViewedItemsCount = "getViewedItemsCount"
	MethodClearAllViewedItems = "clearAllViewedItems"
	MethodGetAlertSettings    = "getAlertSettings"
	MethodSaveAlertSettings   = "saveAlertSettings"
	MethodIsPremiumUnlocked   = "isPremiumUnlocked"
	MethodUnlockPremium       = "unlockPremium"
)

// ActionStorage is the action tag older collaborators put on storage requests.
const ActionStorage = "storage"

// unknownMethodMessage is the error text collaborators match on.
const unknownMethodMessage = "Unknown method"

var (
	// ErrUnknownMethod is returned for method names outside the vocabulary.
	ErrUnknownMethod = errors.New("unknown method")
	// ErrInvalidParams is returned when params do not match the method schema.
	ErrInvalidParams = errors.New("invalid params")
	// ErrOperationFailed is reported when the store rejects a write.
	ErrOperationFailed = errors.New("storage operation failed")
)

// Request is a single facade call.
type Request struct {
	Action string          `json:"action,omitempty"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is the uniform result envelope.
type Response struct {
	Success bool             `json:"success"`
	Items   map[string]int64 `json:"items,omitzero"`
	Count   *int             `json:"count,omitempty"`
	// Settings carries only the six known thresholds. Other keys in the
	// stored record stay in the database but are not returned.
	Settings *viewed.AlertSettings `json:"settings,omitempty"`
	Unlocked *bool                 `json:"unlocked,omitempty"`
	Error    string                `json:"error,omitempty"`
}

// Store is the subset of *viewed.Store the facade dispatches to.
type Store interface {
	GetAll(ctx context.Context) map[string]int64
	GetBatch(ctx context.Context, ids []string) map[string]int64
	MarkViewed(ctx context.Context, id string) error
	PutBatch(ctx context.Context, items map[string]int64) error
	Count(ctx context.Context) int
	Clear(ctx context.Context) error
	AlertSettings(ctx context.Context) viewed.AlertSettings
	SaveAlertSettings(ctx context.Context, value json.RawMessage) error
	PremiumUnlocked(ctx context.Context) bool
	UnlockPremium(ctx context.Context) error
}

type handler func(ctx context.Context, params json.RawMessage) (Response, error)

// Facade dispatches requests to a Store.
type Facade struct {
	store    Store
	logger   *slog.Logger
	schemas  map[string]*jsonschema.Schema
	handlers map[string]handler
}

// New builds a facade over store.
func New(store Store, logger *slog.Logger) (*Facade, error) {
	if store == nil {
		return nil, errors.New("facade requires a store")
	}
	schemas, err := compileSchemas()
	if err != nil {
		return nil, err
	}
	f := &Facade{
		store:   store,
		logger:  logging.NewComponentLogger(logger, "facade"),
		schemas: schemas,
	}
	f.handlers = map[string]handler{
		MethodGetViewedItems:      f.getViewedItems,
		MethodGetViewedItemsBatch: f.getViewedItemsBatch,
		MethodSaveViewedItem:      f.saveViewedItem,
		MethodSaveViewedItemsBulk: f.saveViewedItemsBulk,
		MethodGetViewedItemsCount: f.getViewedItemsCount,
		MethodClearAllViewedItems: f.clearAllViewedItems,
		MethodGetAlertSettings:    f.getAlertSettings,
		MethodSaveAlertSettings:   f.saveAlertSettings,
		MethodIsPremiumUnlocked:   f.isPremiumUnlocked,
		MethodUnlockPremium:       f.unlockPremium,
	}
	return f, nil
}

// Methods returns the supported method names, sorted.
func (f *Facade) Methods() []string {
	names := make([]string, 0, len(f.handlers))
	for name := range f.handlers {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Call dispatches req and always returns an envelope.
func (f *Facade) Call(ctx context.Context, req Request) Response {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := logging.CorrelationIDFromContext(ctx); !ok {
		ctx = logging.WithCorrelationID(ctx, uuid.NewString())
	}
	ctx = logging.WithMethod(ctx, req.Method)
	logger := logging.WithContext(ctx, f.logger)

	if req.Action != "" && req.Action != ActionStorage {
		logger.Debug("rejected non-storage action", logging.String("action", req.Action))
		return failure(ErrUnknownMethod)
	}
	h, ok := f.handlers[req.Method]
	if !ok {
		logging.WarnWithContext(logger, "unknown storage method", "facade_unknown_method",
			logging.String(logging.FieldErrorHint, "caller sent a method name outside the storage vocabulary"),
			logging.String(logging.FieldImpact, "request rejected"))
		return failure(ErrUnknownMethod)
	}
	if err := f.validateParams(req.Method, req.Params); err != nil {
		logging.WarnWithContext(logger, "malformed storage request", "facade_invalid_params",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "caller bug: fix the params sent for this method"),
			logging.String(logging.FieldImpact, "request rejected"))
		return failure(err)
	}

	resp, err := h(ctx, req.Params)
	if err != nil {
		return failure(err)
	}
	resp.Success = true
	logger.Debug("storage call served")
	return resp
}

func failure(err error) Response {
	if errors.Is(err, ErrUnknownMethod) {
		return Response{Success: false, Error: unknownMethodMessage}
	}
	return Response{Success: false, Error: err.Error()}
}

func decodeParams(params json.RawMessage, dst any) error {
	if err := json.Unmarshal(params, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}

func writeResult(err error) (Response, error) {
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrOperationFailed, err)
	}
	return Response{}, nil
}

func (f *Facade) getViewedItems(ctx context.Context, _ json.RawMessage) (Response, error) {
	return Response{Items: f.store.GetAll(ctx)}, nil
}

func (f *Facade) getViewedItemsBatch(ctx context.Context, params json.RawMessage) (Response, error) {
	var p struct {
		IDs []string `json:"ids"`
	}
	if err := decodeParams(params, &p); err != nil {
		return Response{}, err
	}
	return Response{Items: f.store.GetBatch(ctx, p.IDs)}, nil
}

func (f *Facade) saveViewedItem(ctx context.Context, params json.RawMessage) (Response, error) {
	var p struct {
		ItemID string `json:"itemId"`
	}
	if err := decodeParams(params, &p); err != nil {
		return Response{}, err
	}
	return writeResult(f.store.MarkViewed(ctx, p.ItemID))
}

func (f *Facade) saveViewedItemsBulk(ctx context.Context, params json.RawMessage) (Response, error) {
	var p struct {
		Items map[string]int64 `json:"items"`
	}
	if err := decodeParams(params, &p); err != nil {
		return Response{}, err
	}
	return writeResult(f.store.PutBatch(ctx, p.Items))
}

func (f *Facade) getViewedItemsCount(ctx context.Context, _ json.RawMessage) (Response, error) {
	count := f.store.Count(ctx)
	return Response{Count: &count}, nil
}

func (f *Facade) clearAllViewedItems(ctx context.Context, _ json.RawMessage) (Response, error) {
	return writeResult(f.store.Clear(ctx))
}

func (f *Facade) getAlertSettings(ctx context.Context, _ json.RawMessage) (Response, error) {
	settings := f.store.AlertSettings(ctx)
	return Response{Settings: &settings}, nil
}

func (f *Facade) saveAlertSettings(ctx context.Context, params json.RawMessage) (Response, error) {
	var p struct {
		Settings json.RawMessage `json:"settings"`
	}
	if err := decodeParams(params, &p); err != nil {
		return Response{}, err
	}
	return writeResult(f.store.SaveAlertSettings(ctx, p.Settings))
}

func (f *Facade) isPremiumUnlocked(ctx context.Context, _ json.RawMessage) (Response, error) {
	unlocked := f.store.PremiumUnlocked(ctx)
	return Response{Unlocked: &unlocked}, nil
}

func (f *Facade) unlockPremium(ctx context.Context, _ json.RawMessage) (Response, error) {
	return writeResult(f.store.UnlockPremium(ctx))
}
