package grpc

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"showroom/backend/internal/auth"
	"showroom/backend/internal/domain"
)

func RequestTimeoutInterceptor(timeout time.Duration) grpc.UnaryServerInterceptor {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := ctx.Deadline(); ok {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		return handler(ctx, req)
	}
}

type credentialChecker interface {
	Check(actor auth.Actor, action auth.Action) error
}

// AdminAuthInterceptor requires an admin bearer token on every AdminService
// call. Other services, such as health, pass through.
func AdminAuthInterceptor(checker credentialChecker, log *slog.Logger) grpc.UnaryServerInterceptor {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "grpc.auth"))
	prefix := "/" + AdminServiceName + "/"

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if !strings.HasPrefix(info.FullMethod, prefix) {
			return handler(ctx, req)
		}
		err := checker.Check(auth.Actor{Credential: bearerToken(ctx)}, auth.ActionAdminister)
		if err != nil {
			var aErr *domain.AuthorizationError
			if errors.As(err, &aErr) && aErr.Forbidden {
				log.Warn("admin call forbidden", slog.String("method", info.FullMethod))
				return nil, status.Error(codes.PermissionDenied, "forbidden")
			}
			log.Warn("admin call unauthenticated", slog.String("method", info.FullMethod))
			return nil, status.Error(codes.Unauthenticated, "a valid admin token is required")
		}
		return handler(ctx, req)
	}
}

func bearerToken(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("authorization")
	if len(values) == 0 {
		return ""
	}
	v := strings.TrimSpace(values[0])
	if len(v) > 7 && strings.EqualFold(v[:7], "bearer ") {
		return strings.TrimSpace(v[7:])
	}
	return ""
}
