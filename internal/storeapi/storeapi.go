// Package storeapi defines the fiberstack.v1.SnapshotStore gRPC service.
//
// The service is expressed with protobuf well-known types only, so that it
// needs no generated message code. Documents travel as google.protobuf.Struct
// and binary content as a stream of google.protobuf.BytesValue chunks.
package storeapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ServiceName = "fiberstack.v1.SnapshotStore"

	SnapshotStore_Info_FullMethodName             = "/fiberstack.v1.SnapshotStore/Info"
	SnapshotStore_ListSnapshots_FullMethodName    = "/fiberstack.v1.SnapshotStore/ListSnapshots"
	SnapshotStore_GetSnapshot_FullMethodName      = "/fiberstack.v1.SnapshotStore/GetSnapshot"
	SnapshotStore_DownloadSnapshot_FullMethodName = "/fiberstack.v1.SnapshotStore/DownloadSnapshot"
)

// SnapshotStoreClient is the client API for the SnapshotStore service.
type SnapshotStoreClient interface {
	// Info describes the serving process.
	Info(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	// ListSnapshots lists stored snapshots, restricted to one identifier
	// unless the request is empty.
	ListSnapshots(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.ListValue, error)
	// GetSnapshot returns the document stored at a path relative to the
	// store's base directory.
	GetSnapshot(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	// DownloadSnapshot streams the stored file as is.
	DownloadSnapshot(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (SnapshotStore_DownloadSnapshotClient, error)
}

type snapshotStoreClient struct {
	cc grpc.ClientConnInterface
}

// NewSnapshotStoreClient creates a client on cc.
func NewSnapshotStoreClient(cc grpc.ClientConnInterface) SnapshotStoreClient {
	return &snapshotStoreClient{cc}
}

func (c *snapshotStoreClient) Info(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, SnapshotStore_Info_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *snapshotStoreClient) ListSnapshots(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, SnapshotStore_ListSnapshots_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *snapshotStoreClient) GetSnapshot(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, SnapshotStore_GetSnapshot_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *snapshotStoreClient) DownloadSnapshot(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (SnapshotStore_DownloadSnapshotClient, error) {
	stream, err := c.cc.NewStream(ctx, &SnapshotStore_ServiceDesc.Streams[0], SnapshotStore_DownloadSnapshot_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	x := &snapshotStoreDownloadSnapshotClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// SnapshotStore_DownloadSnapshotClient receives file chunks.
type SnapshotStore_DownloadSnapshotClient interface {
	Recv() (*wrapperspb.BytesValue, error)
	grpc.ClientStream
}

type snapshotStoreDownloadSnapshotClient struct {
	grpc.ClientStream
}

func (x *snapshotStoreDownloadSnapshotClient) Recv() (*wrapperspb.BytesValue, error) {
	m := new(wrapperspb.BytesValue)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// SnapshotStoreServer is the server API for the SnapshotStore service.
// Implementations must embed UnimplementedSnapshotStoreServer.
type SnapshotStoreServer interface {
	Info(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	ListSnapshots(context.Context, *wrapperspb.StringValue) (*structpb.ListValue, error)
	GetSnapshot(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	DownloadSnapshot(*wrapperspb.StringValue, SnapshotStore_DownloadSnapshotServer) error
	mustEmbedUnimplementedSnapshotStoreServer()
}

// UnimplementedSnapshotStoreServer must be embedded by implementations.
type UnimplementedSnapshotStoreServer struct{}

func (UnimplementedSnapshotStoreServer) Info(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method Info not implemented")
}
func (UnimplementedSnapshotStoreServer) ListSnapshots(context.Context, *wrapperspb.StringValue) (*structpb.ListValue, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ListSnapshots not implemented")
}
func (UnimplementedSnapshotStoreServer) GetSnapshot(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GetSnapshot not implemented")
}
func (UnimplementedSnapshotStoreServer) DownloadSnapshot(*wrapperspb.StringValue, SnapshotStore_DownloadSnapshotServer) error {
	return status.Errorf(codes.Unimplemented, "method DownloadSnapshot not implemented")
}
func (UnimplementedSnapshotStoreServer) mustEmbedUnimplementedSnapshotStoreServer() {}

// RegisterSnapshotStoreServer registers srv with s.
func RegisterSnapshotStoreServer(s grpc.ServiceRegistrar, srv SnapshotStoreServer) {
	s.RegisterService(&SnapshotStore_ServiceDesc, srv)
}

func _SnapshotStore_Info_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SnapshotStoreServer).Info(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SnapshotStore_Info_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SnapshotStoreServer).Info(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _SnapshotStore_ListSnapshots_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SnapshotStoreServer).ListSnapshots(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SnapshotStore_ListSnapshots_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SnapshotStoreServer).ListSnapshots(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _SnapshotStore_GetSnapshot_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SnapshotStoreServer).GetSnapshot(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SnapshotStore_GetSnapshot_FullMethodName,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SnapshotStoreServer).GetSnapshot(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func _SnapshotStore_DownloadSnapshot_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := new(wrapperspb.StringValue)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(SnapshotStoreServer).DownloadSnapshot(m, &snapshotStoreDownloadSnapshotServer{stream})
}

// SnapshotStore_DownloadSnapshotServer sends file chunks.
type SnapshotStore_DownloadSnapshotServer interface {
	Send(*wrapperspb.BytesValue) error
	grpc.ServerStream
}

type snapshotStoreDownloadSnapshotServer struct {
	grpc.ServerStream
}

func (x *snapshotStoreDownloadSnapshotServer) Send(m *wrapperspb.BytesValue) error {
	return x.ServerStream.SendMsg(m)
}

// SnapshotStore_ServiceDesc is the grpc.ServiceDesc for the SnapshotStore
// service.
var SnapshotStore_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SnapshotStoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Info",
			Handler:    _SnapshotStore_Info_Handler,
		},
		{
			MethodName: "ListSnapshots",
			Handler:    _SnapshotStore_ListSnapshots_Handler,
		},
		{
			MethodName: "GetSnapshot",
			Handler:    _SnapshotStore_GetSnapshot_Handler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "DownloadSnapshot",
			Handler:       _SnapshotStore_DownloadSnapshot_Handler,
			ServerStreams: true,
		},
	},
}
