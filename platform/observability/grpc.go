package observability

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// splitMethod: "/grpc.health.v1.Health/Check" -> ("grpc.health.v1.Health", "Check")
func splitMethod(fullMethod string) (string, string) {
	svc, method, ok := strings.Cut(strings.TrimPrefix(fullMethod, "/"), "/")
	if !ok {
		return svc, svc
	}
	return svc, method
}

// GRPCUnaryServerInterceptor продолжает trace из входящей metadata.
// В fulfillment gRPC поднимается только ради health probe
func GRPCUnaryServerInterceptor(serviceName string) grpc.UnaryServerInterceptor {
	tracer := otel.Tracer(serviceName)
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		ctx = otel.GetTextMapPropagator().Extract(ctx, NewMetadataCarrier(md))

		svc, method := splitMethod(info.FullMethod)
		ctx, span := tracer.Start(ctx, info.FullMethod, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		resp, err := handler(ctx, req)

		code := status.Code(err)
		span.SetAttributes(
			attribute.String("rpc.system", "grpc"),
			attribute.String("rpc.service", svc),
			attribute.String("rpc.method", method),
			attribute.Int("rpc.grpc.status_code", int(code)),
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, code.String())
		}
		return resp, err
	}
}
