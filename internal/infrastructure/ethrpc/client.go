package ethrpc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"avaxdash/internal/domain"

	jsoniter "github.com/json-iterator/go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Method is a JSON-RPC method understood by the client.
type Method string

const (
	MethodBlockNumber      Method = "eth_blockNumber"
	MethodGetBlockByNumber Method = "eth_getBlockByNumber"
	MethodGasPrice         Method = "eth_gasPrice"
)

const weiPerGwei = 9

type Client struct {
	url        string
	httpClient *http.Client
	idCounter  uint64
}

type Config struct {
	URL        string
	Timeout    time.Duration
	HTTPClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rpc url is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		url:        cfg.URL,
		httpClient: httpClient,
	}, nil
}

func (c *Client) URL() string {
	return c.url
}

func (c *Client) LatestBlockNumber(ctx context.Context) (uint64, error) {
	var result *string
	if err := c.call(ctx, MethodBlockNumber, []any{}, &result); err != nil {
		return 0, err
	}
	return requireHexUint("block number", result)
}

// BlockByNumber fetches a block with full transaction objects. The boolean is
// false when the node has not produced the height yet.
func (c *Client) BlockByNumber(ctx context.Context, height uint64) (domain.Block, bool, error) {
	var result *RawBlock
	if err := c.call(ctx, MethodGetBlockByNumber, []any{EncodeHexUint(height), true}, &result); err != nil {
		return domain.Block{}, false, err
	}
	if result == nil {
		return domain.Block{}, false, nil
	}
	block, err := NormalizeBlock(*result)
	if err != nil {
		return domain.Block{}, false, err
	}
	if block.Number != height {
		return domain.Block{}, false, fmt.Errorf("%w: requested block %d, node returned %d", domain.ErrProtocol, height, block.Number)
	}
	return block, true, nil
}

// GasPrice returns the current gas price in Gwei.
func (c *Client) GasPrice(ctx context.Context) (float64, error) {
	var result *string
	if err := c.call(ctx, MethodGasPrice, []any{}, &result); err != nil {
		return 0, err
	}
	wei, err := requireHexBig("gas price", result)
	if err != nil {
		return 0, err
	}
	return scaleDown(wei, weiPerGwei), nil
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  Method `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	Result    []byte
	HasResult bool
	Error     *rpcError
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *Client) call(ctx context.Context, method Method, params []any, result any) (err error) {
	id := atomic.AddUint64(&c.idCounter, 1)

	ctx, span := otel.Tracer("avaxdash/ethrpc").Start(ctx, "ethrpc."+string(method), trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("rpc.method", string(method)),
		attribute.Int64("rpc.id", int64(id)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	payload, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("%w: encode request: %v", domain.ErrProtocol, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: rpc status %d", domain.ErrTransport, resp.StatusCode)
	}

	decoded, err := decodeResponse(resp.Body)
	if err != nil {
		return err
	}
	if decoded.Error != nil {
		return fmt.Errorf("%w: rpc error %d: %s", domain.ErrProtocol, decoded.Error.Code, decoded.Error.Message)
	}
	if !decoded.HasResult {
		return fmt.Errorf("%w: rpc result is missing", domain.ErrProtocol)
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(decoded.Result, result); err != nil {
		return fmt.Errorf("%w: %s result: %v", domain.ErrDecode, method, err)
	}
	return nil
}

// decodeResponse walks the envelope so that an explicit "result": null is
// kept apart from a missing result member.
func decodeResponse(body io.Reader) (rpcResponse, error) {
	var decoded rpcResponse
	iter := jsoniter.Parse(json, body, 4096)
	for field := iter.ReadObject(); field != ""; field = iter.ReadObject() {
		switch field {
		case "result":
			decoded.Result = append([]byte(nil), iter.SkipAndReturnBytes()...)
			decoded.HasResult = true
		case "error":
			iter.ReadVal(&decoded.Error)
		default:
			iter.Skip()
		}
		if iter.Error != nil {
			break
		}
	}
	if iter.Error != nil {
		return rpcResponse{}, fmt.Errorf("%w: malformed response: %v", domain.ErrProtocol, iter.Error)
	}
	// only whitespace may follow the envelope
	iter.WhatIsNext()
	switch {
	case iter.Error == nil:
		return rpcResponse{}, fmt.Errorf("%w: trailing data after response", domain.ErrProtocol)
	case !errors.Is(iter.Error, io.EOF):
		return rpcResponse{}, fmt.Errorf("%w: malformed response: %v", domain.ErrProtocol, iter.Error)
	}
	return decoded, nil
}
