package realtime

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"nhooyr.io/websocket"

	"github.com/dmitrijs2005/questsync/internal/logging"
	"github.com/dmitrijs2005/questsync/internal/record"
)

// Channel is a websocket-backed change-event stream. One Channel serves many
// subscriptions, each filtered by the table it watches.
type Channel struct {
	url           string
	dialTimeout   time.Duration
	reconnectBase time.Duration
	maxReconnects uint64
	log           logging.Logger
}

// NewChannel creates a Channel for the given websocket URL. http(s) schemes
// are rewritten to ws(s). log may be nil.
func NewChannel(url string, log logging.Logger) *Channel {
	if log == nil {
		log = logging.Nop()
	}
	url = strings.Replace(url, "https://", "wss://", 1)
	url = strings.Replace(url, "http://", "ws://", 1)
	return &Channel{
		url:           url,
		dialTimeout:   10 * time.Second,
		reconnectBase: time.Second,
		maxReconnects: 5,
		log:           log,
	}
}

// Subscribe opens the socket and delivers change events for table until the
// returned teardown is called. The read loop reconnects with exponential
// backoff; when reconnect attempts are exhausted the subscription goes
// silent (the next Rebind re-establishes it).
func (c *Channel) Subscribe(ctx context.Context, table string, onEvent func(Event[record.Map])) (func(), error) {
	ctx, cancel := context.WithCancel(ctx)

	conn, err := c.dial(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	go c.readLoop(ctx, conn, table, onEvent)

	return func() {
		cancel()
	}, nil
}

func (c *Channel) dial(ctx context.Context) (*websocket.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	return conn, nil
}

func (c *Channel) readLoop(ctx context.Context, conn *websocket.Conn, table string, onEvent func(Event[record.Map])) {
	defer func() {
		_ = conn.Close(websocket.StatusNormalClosure, "unsubscribed")
	}()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn(ctx, "realtime read failed, reconnecting", "err", err)
			conn = c.redial(ctx)
			if conn == nil {
				return
			}
			continue
		}

		ev, evTable, err := decodeEvent(data)
		if err != nil {
			c.log.Warn(ctx, "dropping malformed change event", "err", err)
			continue
		}
		if evTable != "" && evTable != table {
			continue
		}
		onEvent(ev)
	}
}

// redial re-establishes the socket with exponential backoff. Returns nil
// when ctx is cancelled or attempts are exhausted.
func (c *Channel) redial(ctx context.Context) *websocket.Conn {
	var conn *websocket.Conn

	backoff := retry.WithMaxRetries(c.maxReconnects, retry.NewExponential(c.reconnectBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		dialed, err := c.dial(ctx)
		if err != nil {
			return retry.RetryableError(err)
		}
		conn = dialed
		return nil
	})
	if err != nil {
		if ctx.Err() == nil {
			c.log.Error(ctx, "realtime reconnect exhausted", "err", err)
		}
		return nil
	}
	c.log.Info(ctx, "realtime reconnected")
	return conn
}
