package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/BaSui01/blockflow/interp"
)

// Subprotocol is negotiated by both halves of the kernel connection.
const Subprotocol = "blockflow.kernel.v1"

// Config configures a remote kernel client.
type Config struct {
	URL     string
	Timeout time.Duration
	Header  http.Header
	// HTTPClient performs the handshake; nil uses http.DefaultClient.
	HTTPClient *http.Client
	// ReadLimit caps a single response frame in bytes.
	ReadLimit int64
}

// Client is an interpreter backed by a kernel reached over WebSocket. Each
// client owns one connection and therefore one remote namespace.
type Client struct {
	mu      sync.Mutex
	conn    *websocket.Conn
	nextID  uint64
	closed  bool
	timeout time.Duration
	logger  *zap.Logger
}

// Dial connects to a kernel.
func Dial(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, _, err := websocket.Dial(ctx, cfg.URL, &websocket.DialOptions{
		HTTPClient:   cfg.HTTPClient,
		HTTPHeader:   cfg.Header,
		Subprotocols: []string{Subprotocol},
	})
	if err != nil {
		return nil, fmt.Errorf("kernel connect: %w", err)
	}
	if cfg.ReadLimit > 0 {
		conn.SetReadLimit(cfg.ReadLimit)
	}
	return &Client{
		conn:    conn,
		timeout: cfg.Timeout,
		logger:  logger.With(zap.String("component", "remote_interpreter"), zap.String("url", cfg.URL)),
	}, nil
}

// NewFactory returns a factory that opens one connection per session.
func NewFactory(cfg Config, logger *zap.Logger) interp.Factory {
	return func(ctx context.Context) (interp.Interpreter, error) {
		return Dial(ctx, cfg, logger)
	}
}

// Evaluate evaluates an expression on the kernel.
func (c *Client) Evaluate(ctx context.Context, expr string) (any, error) {
	resp, err := c.call(ctx, interp.OpEval, expr)
	if err != nil {
		return nil, err
	}
	v, _, err := resp.Decode()
	return v, err
}

// Execute runs statements on the kernel.
func (c *Client) Execute(ctx context.Context, code string) (interp.Output, error) {
	resp, err := c.call(ctx, interp.OpExec, code)
	if err != nil {
		return interp.Output{}, err
	}
	_, out, err := resp.Decode()
	return out, err
}

func (c *Client) call(ctx context.Context, op interp.Op, code string) (interp.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return interp.Response{}, interp.ErrClosed
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	c.nextID++
	req := interp.Request{ID: c.nextID, Op: op, Code: code}
	if err := wsjson.Write(ctx, c.conn, req); err != nil {
		c.abortLocked(err)
		return interp.Response{}, fmt.Errorf("kernel write: %w", err)
	}
	var resp interp.Response
	if err := wsjson.Read(ctx, c.conn, &resp); err != nil {
		c.abortLocked(err)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return interp.Response{}, ctxErr
		}
		return interp.Response{}, fmt.Errorf("kernel read: %w", err)
	}
	if resp.ID != req.ID {
		c.abortLocked(nil)
		return interp.Response{}, fmt.Errorf("kernel protocol: response %d for request %d", resp.ID, req.ID)
	}
	return resp, nil
}

// abortLocked drops the connection. A failed or cancelled round trip leaves
// the stream position unknown, so the client cannot be reused.
func (c *Client) abortLocked(cause error) {
	if c.closed {
		return
	}
	c.closed = true
	c.logger.Warn("kernel connection aborted", zap.Error(cause))
	_ = c.conn.Close(websocket.StatusInternalError, "aborted")
}

// Close ends the session.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	err := c.conn.Close(websocket.StatusNormalClosure, "")
	if err != nil && !errors.Is(err, context.Canceled) {
		c.logger.Debug("kernel close", zap.Error(err))
	}
	return nil
}

// Handler serves kernels over WebSocket. Every connection gets a fresh
// interpreter from factory, closed when the connection ends.
func Handler(factory interp.Factory, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "kernel_server"))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols: []string{Subprotocol},
		})
		if err != nil {
			logger.Warn("kernel accept failed", zap.Error(err))
			return
		}
		defer conn.CloseNow()

		ctx := r.Context()
		in, err := factory(ctx)
		if err != nil {
			logger.Error("failed to create interpreter", zap.Error(err))
			_ = conn.Close(websocket.StatusInternalError, "interpreter unavailable")
			return
		}
		defer in.Close()

		for {
			var req interp.Request
			if err := wsjson.Read(ctx, conn, &req); err != nil {
				if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
					logger.Debug("kernel connection ended", zap.Error(err))
				}
				return
			}
			if err := wsjson.Write(ctx, conn, interp.Serve(ctx, in, req)); err != nil {
				logger.Debug("kernel write failed", zap.Error(err))
				return
			}
		}
	})
}
