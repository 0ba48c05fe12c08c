package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// AdminServiceName is the fully qualified gRPC service name. Requests and
// responses are google.protobuf.Struct documents shaped like the JSON DTOs.
const AdminServiceName = "showroom.admin.v1.AdminService"

type AdminServiceServer interface {
	GetWeeklyHours(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateWeeklyHours(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListOverrides(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreateOverride(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateOverride(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteOverride(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListAppointments(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RescheduleAppointment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RunReminderPass(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterAdminServiceServer(r grpc.ServiceRegistrar, srv AdminServiceServer) {
	r.RegisterService(&adminServiceDesc, srv)
}

// FullMethod returns the gRPC path for an AdminService method.
func FullMethod(method string) string {
	return "/" + AdminServiceName + "/" + method
}

type structMethod func(context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(method string, pick func(AdminServiceServer) structMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			call := pick(srv.(AdminServiceServer))
			if interceptor == nil {
				return call(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(ctx, req.(*structpb.Struct))
			})
		},
	}
}

var adminServiceDesc = grpc.ServiceDesc{
	ServiceName: AdminServiceName,
	HandlerType: (*AdminServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetWeeklyHours", func(s AdminServiceServer) structMethod { return s.GetWeeklyHours }),
		unary("UpdateWeeklyHours", func(s AdminServiceServer) structMethod { return s.UpdateWeeklyHours }),
		unary("ListOverrides", func(s AdminServiceServer) structMethod { return s.ListOverrides }),
		unary("CreateOverride", func(s AdminServiceServer) structMethod { return s.CreateOverride }),
		unary("UpdateOverride", func(s AdminServiceServer) structMethod { return s.UpdateOverride }),
		unary("DeleteOverride", func(s AdminServiceServer) structMethod { return s.DeleteOverride }),
		unary("ListAppointments", func(s AdminServiceServer) structMethod { return s.ListAppointments }),
		unary("CancelAppointment", func(s AdminServiceServer) structMethod { return s.CancelAppointment }),
		unary("RescheduleAppointment", func(s AdminServiceServer) structMethod { return s.RescheduleAppointment }),
		unary("RunReminderPass", func(s AdminServiceServer) structMethod { return s.RunReminderPass }),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "showroom/admin/v1/admin.proto",
}
