// Package getinfov1 describes the getinfo daemon's gRPC surface. Messages
// are plain Go structs carried as google.protobuf.Struct on the wire, so no
// generated code is needed.
package getinfov1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "getinfo.v1.GetInfoDaemon"

// Method names.
const (
	MethodFocus          = "Focus"
	MethodScanSequence   = "ScanSequence"
	MethodCancelSequence = "CancelSequence"
	MethodGetDirectory   = "GetDirectory"
	MethodSetEnabled     = "SetEnabled"
	MethodIsEnabled      = "IsEnabled"
	MethodListOverrides  = "ListOverrides"
	MethodSaveSnapshot   = "SaveSnapshot"
	MethodListSnapshots  = "ListSnapshots"
	MethodDeleteSnapshot = "DeleteSnapshot"
	MethodHistory        = "History"
	MethodWatch          = "Watch"
	MethodStatus         = "Status"
	MethodShutdown       = "Shutdown"
)

// FullMethod returns the /service/method path of method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// GetInfoDaemonServer is the server API for the daemon.
type GetInfoDaemonServer interface {
	Focus(context.Context, *FocusRequest) (*FocusResponse, error)
	ScanSequence(context.Context, *ScanSequenceRequest) (*ScanSequenceResponse, error)
	CancelSequence(context.Context, *Empty) (*Empty, error)
	GetDirectory(context.Context, *GetDirectoryRequest) (*GetDirectoryResponse, error)
	SetEnabled(context.Context, *SetEnabledRequest) (*IsEnabledResponse, error)
	IsEnabled(context.Context, *IsEnabledRequest) (*IsEnabledResponse, error)
	ListOverrides(context.Context, *Empty) (*OverridesResponse, error)
	SaveSnapshot(context.Context, *Empty) (*SaveSnapshotResponse, error)
	ListSnapshots(context.Context, *Empty) (*ListSnapshotsResponse, error)
	DeleteSnapshot(context.Context, *DeleteSnapshotRequest) (*Empty, error)
	History(context.Context, *HistoryRequest) (*HistoryResponse, error)
	Watch(*WatchRequest, WatchServer) error
	Status(context.Context, *Empty) (*StatusResponse, error)
	Shutdown(context.Context, *Empty) (*ShutdownResponse, error)
}

// WatchServer is the server side of a Watch stream.
type WatchServer interface {
	Send(*WatchEvent) error
	Context() context.Context
}

// UnimplementedGetInfoDaemonServer answers every call with Unimplemented.
// Embed it to stay forward compatible.
type UnimplementedGetInfoDaemonServer struct{}

func unimplemented(method string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", method)
}

func (UnimplementedGetInfoDaemonServer) Focus(context.Context, *FocusRequest) (*FocusResponse, error) {
	return nil, unimplemented(MethodFocus)
}
func (UnimplementedGetInfoDaemonServer) ScanSequence(context.Context, *ScanSequenceRequest) (*ScanSequenceResponse, error) {
	return nil, unimplemented(MethodScanSequence)
}
func (UnimplementedGetInfoDaemonServer) CancelSequence(context.Context, *Empty) (*Empty, error) {
	return nil, unimplemented(MethodCancelSequence)
}
func (UnimplementedGetInfoDaemonServer) GetDirectory(context.Context, *GetDirectoryRequest) (*GetDirectoryResponse, error) {
	return nil, unimplemented(MethodGetDirectory)
}
func (UnimplementedGetInfoDaemonServer) SetEnabled(context.Context, *SetEnabledRequest) (*IsEnabledResponse, error) {
	return nil, unimplemented(MethodSetEnabled)
}
func (UnimplementedGetInfoDaemonServer) IsEnabled(context.Context, *IsEnabledRequest) (*IsEnabledResponse, error) {
	return nil, unimplemented(MethodIsEnabled)
}
func (UnimplementedGetInfoDaemonServer) ListOverrides(context.Context, *Empty) (*OverridesResponse, error) {
	return nil, unimplemented(MethodListOverrides)
}
func (UnimplementedGetInfoDaemonServer) SaveSnapshot(context.Context, *Empty) (*SaveSnapshotResponse, error) {
	return nil, unimplemented(MethodSaveSnapshot)
}
func (UnimplementedGetInfoDaemonServer) ListSnapshots(context.Context, *Empty) (*ListSnapshotsResponse, error) {
	return nil, unimplemented(MethodListSnapshots)
}
func (UnimplementedGetInfoDaemonServer) DeleteSnapshot(context.Context, *DeleteSnapshotRequest) (*Empty, error) {
	return nil, unimplemented(MethodDeleteSnapshot)
}
func (UnimplementedGetInfoDaemonServer) History(context.Context, *HistoryRequest) (*HistoryResponse, error) {
	return nil, unimplemented(MethodHistory)
}
func (UnimplementedGetInfoDaemonServer) Watch(*WatchRequest, WatchServer) error {
	return unimplemented(MethodWatch)
}
func (UnimplementedGetInfoDaemonServer) Status(context.Context, *Empty) (*StatusResponse, error) {
	return nil, unimplemented(MethodStatus)
}
func (UnimplementedGetInfoDaemonServer) Shutdown(context.Context, *Empty) (*ShutdownResponse, error) {
	return nil, unimplemented(MethodShutdown)
}

// RegisterGetInfoDaemonServer registers srv with s.
func RegisterGetInfoDaemonServer(s grpc.ServiceRegistrar, srv GetInfoDaemonServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// unary adapts a typed handler to a grpc.MethodDesc.
func unary[Req, Resp any](method string, call func(GetInfoDaemonServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			handle := func(ctx context.Context, msg any) (any, error) {
				req := new(Req)
				if err := FromStruct(msg.(*structpb.Struct), req); err != nil {
					return nil, status.Error(codes.InvalidArgument, err.Error())
				}
				resp, err := call(srv.(GetInfoDaemonServer), ctx, req)
				if err != nil {
					return nil, err
				}
				out, err := ToStruct(resp)
				if err != nil {
					return nil, status.Error(codes.Internal, err.Error())
				}
				return out, nil
			}
			if interceptor == nil {
				return handle(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
			return interceptor(ctx, in, info, handle)
		},
	}
}

type watchServer struct {
	grpc.ServerStream
}

func (w *watchServer) Send(ev *WatchEvent) error {
	msg, err := ToStruct(ev)
	if err != nil {
		return status.Error(codes.Internal, err.Error())
	}
	return w.ServerStream.SendMsg(msg)
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	req := new(WatchRequest)
	if err := FromStruct(in, req); err != nil {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	return srv.(GetInfoDaemonServer).Watch(req, &watchServer{stream})
}

// ServiceDesc is the grpc.ServiceDesc of the daemon.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*GetInfoDaemonServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodFocus, GetInfoDaemonServer.Focus),
		unary(MethodScanSequence, GetInfoDaemonServer.ScanSequence),
		unary(MethodCancelSequence, GetInfoDaemonServer.CancelSequence),
		unary(MethodGetDirectory, GetInfoDaemonServer.GetDirectory),
		unary(MethodSetEnabled, GetInfoDaemonServer.SetEnabled),
		unary(MethodIsEnabled, GetInfoDaemonServer.IsEnabled),
		unary(MethodListOverrides, GetInfoDaemonServer.ListOverrides),
		unary(MethodSaveSnapshot, GetInfoDaemonServer.SaveSnapshot),
		unary(MethodListSnapshots, GetInfoDaemonServer.ListSnapshots),
		unary(MethodDeleteSnapshot, GetInfoDaemonServer.DeleteSnapshot),
		unary(MethodHistory, GetInfoDaemonServer.History),
		unary(MethodStatus, GetInfoDaemonServer.Status),
		unary(MethodShutdown, GetInfoDaemonServer.Shutdown),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    MethodWatch,
			Handler:       watchHandler,
			ServerStreams: true,
		},
	},
}
