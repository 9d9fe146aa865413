package warpcli

import (
	"context"
	"errors"

	"github.com/creachadair/jrpc2"
	"github.com/warpdl/warpq/common"
)

func call[T any](ctx context.Context, c *Client, method string, params any) (T, error) {
	var out T
	err := c.rpc.CallResult(ctx, method, params, &out)
	return out, err
}

// Add queues key at priority. A nil score leaves the key unscored.
func (c *Client) Add(ctx context.Context, key string, priority int, score *float64) error {
	_, err := call[bool](ctx, c, common.MethodAdd, &common.AddParams{Key: key, Priority: priority, Score: score})
	return err
}

// Remove drops a waiting key. Fails with a key-not-found error when the
// key is not queued.
func (c *Client) Remove(ctx context.Context, key string) error {
	_, err := call[bool](ctx, c, common.MethodRemove, &common.KeyParams{Key: key})
	return err
}

// Abort cancels the in-flight transfer of key.
func (c *Client) Abort(ctx context.Context, key string) error {
	_, err := call[bool](ctx, c, common.MethodAbort, &common.KeyParams{Key: key})
	return err
}

// AbortAll cancels every in-flight transfer and returns their keys.
func (c *Client) AbortAll(ctx context.Context) ([]string, error) {
	return call[[]string](ctx, c, common.MethodAbortAll, nil)
}

// Has reports whether key is waiting, at priority when it is not nil.
func (c *Client) Has(ctx context.Context, key string, priority *int) (bool, error) {
	return call[bool](ctx, c, common.MethodHas, &common.HasParams{Key: key, Priority: priority})
}

// Priority returns the level of a waiting key.
func (c *Client) Priority(ctx context.Context, key string) (int, error) {
	res, err := call[common.PriorityResult](ctx, c, common.MethodPriority, &common.KeyParams{Key: key})
	return res.Priority, err
}

func (c *Client) Size(ctx context.Context, priority *int) (int, error) {
	return call[int](ctx, c, common.MethodSize, &common.LevelParams{Priority: priority})
}

func (c *Client) SizePerPriority(ctx context.Context) ([]int, error) {
	return call[[]int](ctx, c, common.MethodSizePerPriority, nil)
}

func (c *Client) IsEmpty(ctx context.Context) (bool, error) {
	return call[bool](ctx, c, common.MethodIsEmpty, nil)
}

func (c *Client) Status(ctx context.Context) (*common.StatusResult, error) {
	res, err := call[common.StatusResult](ctx, c, common.MethodStatus, nil)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Reset empties the waiting queue. In-flight transfers continue.
func (c *Client) Reset(ctx context.Context) error {
	_, err := call[bool](ctx, c, common.MethodReset, nil)
	return err
}

// Sort orders the waiting keys of one level, or all levels when priority
// is nil, by ascending score.
func (c *Client) Sort(ctx context.Context, priority *int) error {
	_, err := call[bool](ctx, c, common.MethodSort, &common.LevelParams{Priority: priority})
	return err
}

// History returns the most recent recorded outcomes, newest first.
func (c *Client) History(ctx context.Context, limit int) ([]common.HistoryEntry, error) {
	res, err := call[common.HistoryResult](ctx, c, common.MethodJournalList, &common.HistoryParams{Limit: limit})
	return res.Entries, err
}

func (c *Client) Version(ctx context.Context) (*common.VersionResult, error) {
	res, err := call[common.VersionResult](ctx, c, common.MethodVersion, nil)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) Stats(ctx context.Context) (map[string]float64, error) {
	res, err := call[common.StatsResult](ctx, c, common.MethodStats, nil)
	return res.Metrics, err
}

// IsKeyNotFound reports whether err says the key was not queued.
func IsKeyNotFound(err error) bool {
	return hasCode(err, common.CodeKeyNotFound)
}

// IsNotInFlight reports whether err says the key had no transfer running.
func IsNotInFlight(err error) bool {
	return hasCode(err, common.CodeNotInFlight)
}

// IsUnavailable reports whether err says the daemon lacks the feature,
// such as a disabled journal.
func IsUnavailable(err error) bool {
	return hasCode(err, common.CodeUnavailable)
}

func hasCode(err error, code int) bool {
	var e *jrpc2.Error
	return errors.As(err, &e) && e.Code == jrpc2.Code(code)
}
