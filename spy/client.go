package spy

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	publicrpcv1 "github.com/certusone/wormhole/node/pkg/proto/publicrpc/v1"
	spyv1 "github.com/certusone/wormhole/node/pkg/proto/spy/v1"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/wormholelabs-xyz/wormhole-svm-test/vaa"
)

const (
	defaultMaxRetries = 5
	defaultRetryDelay = 2 * time.Second
)

// Message is a VAA received from the spy.
type Message struct {
	VAA        vaa.VAA
	RawBytes   []byte
	EmitterHex string
}

// Handler processes a received VAA. Returning an error stops Consume.
type Handler func(ctx context.Context, msg Message) error

// Client subscribes to a spy service.
type Client struct {
	conn   *grpc.ClientConn
	client spyv1.SpyRPCServiceClient
	logger *zap.Logger

	filters    []*spyv1.FilterEntry
	maxRetries int
	retryDelay time.Duration
	dialOpts   []grpc.DialOption
}

type ClientOption func(*Client)

// WithEmitterFilter restricts the subscription to VAAs from emitter on chain.
// Multiple filters are ORed.
func WithEmitterFilter(chain vaa.ChainID, emitter vaa.Address) ClientOption {
	return func(c *Client) {
		c.filters = append(c.filters, EmitterFilter(chain, emitter))
	}
}

// WithRetry sets how often and how fast Subscribe retries.
func WithRetry(maxRetries int, delay time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryDelay = delay
	}
}

// WithDialOptions appends grpc dial options, e.g. a context dialer for
// in-memory listeners.
func WithDialOptions(opts ...grpc.DialOption) ClientOption {
	return func(c *Client) {
		c.dialOpts = append(c.dialOpts, opts...)
	}
}

// EmitterFilter builds the spy filter entry for an emitter.
func EmitterFilter(chain vaa.ChainID, emitter vaa.Address) *spyv1.FilterEntry {
	return &spyv1.FilterEntry{
		Filter: &spyv1.FilterEntry_EmitterFilter{
			EmitterFilter: &spyv1.EmitterFilter{
				ChainId:        publicrpcv1.ChainID(chain),
				EmitterAddress: hex.EncodeToString(emitter[:]),
			},
		},
	}
}

// NormalizeEmitterHex strips an optional 0x prefix, lowercases and left pads
// a hex emitter address to 64 characters.
func NormalizeEmitterHex(addr string) string {
	addr = strings.ToLower(strings.TrimPrefix(addr, "0x"))
	if len(addr) < 64 {
		addr = strings.Repeat("0", 64-len(addr)) + addr
	}
	return addr
}

// ParseEmitterAddress decodes a hex emitter address in any of the forms
// NormalizeEmitterHex accepts.
func ParseEmitterAddress(addr string) (vaa.Address, error) {
	b, err := hex.DecodeString(NormalizeEmitterHex(addr))
	if err != nil {
		return vaa.Address{}, fmt.Errorf("%w: %v", vaa.ErrInvalidEmitterAddress, err)
	}
	return vaa.PadEmitterAddress(b)
}

// NewClient creates a client for the spy service at endpoint.
func NewClient(logger *zap.Logger, endpoint string, opts ...ClientOption) (*Client, error) {
	client := &Client{
		logger:     logger.With(zap.String("component", "SpyClient")),
		maxRetries: defaultMaxRetries,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(client)
	}

	client.logger.Info("Connecting to spy service", zap.String("endpoint", endpoint))
	dialOpts := append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, client.dialOpts...)
	conn, err := grpc.Dial(endpoint, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to spy: %w", err)
	}

	client.conn = conn
	client.client = spyv1.NewSpyRPCServiceClient(conn)
	return client, nil
}

// Close closes the connection to the spy service
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

// Subscribe opens a signed VAA stream, retrying failed attempts.
func (c *Client) Subscribe(ctx context.Context) (spyv1.SpyRPCService_SubscribeSignedVAAClient, error) {
	c.logger.Debug("Subscribing to signed VAAs", zap.Int("filters", len(c.filters)))

	var err error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		var stream spyv1.SpyRPCService_SubscribeSignedVAAClient
		stream, err = c.client.SubscribeSignedVAA(ctx, &spyv1.SubscribeSignedVAARequest{Filters: c.filters})
		if err == nil {
			return stream, nil
		}

		if attempt < c.maxRetries {
			c.logger.Warn("Subscribe attempt failed",
				zap.Int("attempt", attempt),
				zap.Error(err),
				zap.Duration("retryIn", c.retryDelay))

			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return nil, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
			}
		}
	}

	return nil, fmt.Errorf("failed to subscribe after %d attempts: %w", c.maxRetries, err)
}

// Consume subscribes and calls handler for every VAA in arrival order until
// ctx is cancelled or handler fails. Broken streams are resubscribed;
// undecodable VAAs are logged and skipped.
func (c *Client) Consume(ctx context.Context, handler Handler) error {
	stream, err := c.Subscribe(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribe to VAA stream: %w", err)
	}

	c.logger.Info("Listening for VAAs")

	for {
		resp, err := stream.Recv()
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Shutting down spy consumer")
				return nil
			}

			c.logger.Warn("Stream error, resubscribing", zap.Error(err), zap.Duration("retryIn", c.retryDelay))
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return nil
			}

			stream, err = c.Subscribe(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("subscribe to VAA stream after retry: %w", err)
			}
			continue
		}

		v, err := vaa.Decode(resp.VaaBytes)
		if err != nil {
			c.logger.Error("Failed to parse VAA", zap.Error(err))
			continue
		}

		body := v.Body()
		msg := Message{
			VAA:        v,
			RawBytes:   resp.VaaBytes,
			EmitterHex: hex.EncodeToString(body.EmitterAddress[:]),
		}

		c.logger.Debug("Processing VAA",
			zap.Uint16("chain", uint16(body.EmitterChain)),
			zap.Uint64("sequence", body.Sequence),
			zap.String("emitter", msg.EmitterHex))

		if err := handler(ctx, msg); err != nil {
			return err
		}
	}
}
