// Package spy serves fixture VAAs over the guardian spy gRPC interface, so
// relayers under test can consume them exactly as they would from a spy
// attached to the guardian network.
package spy

import (
	"context"
	"encoding/hex"
	"fmt"
	"net"
	"sync"
	"time"

	spyv1 "github.com/certusone/wormhole/node/pkg/proto/spy/v1"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/wormholelabs-xyz/wormhole-svm-test/vaa"
)

// Server implements spyv1.SpyRPCServiceServer for signed VAAs published
// through Publish.
type Server struct {
	spyv1.UnimplementedSpyRPCServiceServer
	logger *zap.Logger

	subsMu sync.Mutex
	subs   map[string]*subscription
}

type filter struct {
	chainID     vaa.ChainID
	emitterAddr vaa.Address
}

type subscription struct {
	filters []filter
	ch      chan []byte
	done    chan struct{}
}

func (s *subscription) matches(v vaa.VAA) bool {
	body := v.Body()
	for _, fi := range s.filters {
		if fi.chainID == body.EmitterChain && fi.emitterAddr == body.EmitterAddress {
			return true
		}
	}
	return false
}

func NewServer(logger *zap.Logger) *Server {
	return &Server{
		logger: logger.With(zap.String("component", "SpyServer")),
		subs:   make(map[string]*subscription),
	}
}

func decodeEmitterAddr(hexAddr string) (vaa.Address, error) {
	address, err := hex.DecodeString(hexAddr)
	if err != nil {
		return vaa.Address{}, status.Error(codes.InvalidArgument, fmt.Sprintf("failed to decode address: %v", err))
	}
	if len(address) != 32 {
		return vaa.Address{}, status.Error(codes.InvalidArgument, "address must be 32 bytes")
	}
	addr := vaa.Address{}
	copy(addr[:], address)
	return addr, nil
}

// Publish delivers v to every matching subscriber.
func (s *Server) Publish(v vaa.VAA) {
	s.publish(v, v.Encode())
}

// PublishBytes delivers an encoded VAA. Subscribers with filters only receive
// it if it decodes.
func (s *Server) PublishBytes(vaaBytes []byte) error {
	v, err := vaa.Decode(vaaBytes)
	if err != nil {
		s.publishUnfiltered(vaaBytes)
		return err
	}
	s.publish(v, vaaBytes)
	return nil
}

func (s *Server) publish(v vaa.VAA, vaaBytes []byte) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	for _, sub := range s.subs {
		if len(sub.filters) == 0 || sub.matches(v) {
			sub.send(vaaBytes)
		}
	}

	s.logger.Debug("Published VAA",
		zap.String("messageID", v.MessageID()),
		zap.Int("subscribers", len(s.subs)))
}

func (s *Server) publishUnfiltered(vaaBytes []byte) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	for _, sub := range s.subs {
		if len(sub.filters) == 0 {
			sub.send(vaaBytes)
		}
	}
}

// send blocks until the subscriber takes the message or goes away.
func (s *subscription) send(vaaBytes []byte) {
	select {
	case s.ch <- vaaBytes:
	case <-s.done:
	}
}

func (s *Server) SubscribeSignedVAA(req *spyv1.SubscribeSignedVAARequest, resp spyv1.SpyRPCService_SubscribeSignedVAAServer) error {
	var fi []filter
	for _, f := range req.Filters {
		switch t := f.Filter.(type) {
		case *spyv1.FilterEntry_EmitterFilter:
			addr, err := decodeEmitterAddr(t.EmitterFilter.EmitterAddress)
			if err != nil {
				return status.Error(codes.InvalidArgument, fmt.Sprintf("failed to decode emitter address: %v", err))
			}
			fi = append(fi, filter{
				chainID:     vaa.ChainID(t.EmitterFilter.ChainId),
				emitterAddr: addr,
			})
		default:
			return status.Error(codes.InvalidArgument, "unsupported filter type")
		}
	}

	id := uuid.New().String()
	sub := &subscription{
		filters: fi,
		ch:      make(chan []byte, 1),
		done:    make(chan struct{}),
	}

	s.subsMu.Lock()
	s.subs[id] = sub
	s.subsMu.Unlock()

	s.logger.Debug("Subscription added", zap.String("id", id), zap.Int("filters", len(fi)))

	defer func() {
		close(sub.done)
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		delete(s.subs, id)
		s.logger.Debug("Subscription removed", zap.String("id", id))
	}()

	for {
		select {
		case <-resp.Context().Done():
			return resp.Context().Err()
		case vaaBytes := <-sub.ch:
			if err := resp.Send(&spyv1.SubscribeSignedVAAResponse{
				VaaBytes: vaaBytes,
			}); err != nil {
				return err
			}
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (s *Server) SubscriberCount() int {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	return len(s.subs)
}

// WaitForSubscribers blocks until at least n subscriptions are active.
func (s *Server) WaitForSubscribers(ctx context.Context, n int) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		if s.SubscriberCount() >= n {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Serve serves the spy service on lis until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	grpcServer := grpc.NewServer()
	spyv1.RegisterSpyRPCServiceServer(grpcServer, s)

	go func() {
		<-ctx.Done()
		grpcServer.Stop()
	}()

	s.logger.Info("Spy service listening", zap.String("addr", lis.Addr().String()))
	if err := grpcServer.Serve(lis); err != nil && ctx.Err() == nil {
		return fmt.Errorf("spy server exited: %w", err)
	}
	return nil
}
