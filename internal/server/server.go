// Package server exposes the document pipeline over gRPC.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/docparse/internal/common"
)

const requestIDHeader = "x-request-id"

// New builds a gRPC server with the document service, health and reflection registered.
func New(svc DocumentServer, logger *slog.Logger, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = slog.Default()
	}
	opts = append(opts, grpc.ChainUnaryInterceptor(requestLogger(logger)))
	gs := grpc.NewServer(opts...)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(gs)

	RegisterDocumentServer(gs, svc)
	return gs, hs
}

// Serve listens on addr until ctx is done, then drains in-flight calls.
func Serve(ctx context.Context, addr string, gs *grpc.Server, hs *health.Server, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return common.WrapError(err, "listen")
	}
	logger.Info("server.listening", "addr", lis.Addr().String())

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := gs.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return common.WrapError(err, "grpc serve")
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("server.shutting_down")
		hs.Shutdown()
		gs.GracefulStop()
		return nil
	})
	return g.Wait()
}

// requestLogger tags each call with a request id and logs its outcome.
func requestLogger(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		reqID := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(requestIDHeader); len(v) > 0 {
				reqID = v[0]
			}
		}
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx = common.WithRequestID(ctx, reqID)
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDHeader, reqID))

		resp, err := handler(ctx, req)
		logger.Info("server.request",
			"method", info.FullMethod,
			"request_id", reqID,
			"code", status.Code(err).String(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return resp, err
	}
}
