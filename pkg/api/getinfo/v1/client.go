package getinfov1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// GetInfoDaemonClient is the typed client of the daemon.
type GetInfoDaemonClient struct {
	cc grpc.ClientConnInterface
}

// NewGetInfoDaemonClient wraps a connection.
func NewGetInfoDaemonClient(cc grpc.ClientConnInterface) *GetInfoDaemonClient {
	return &GetInfoDaemonClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, req any, opts ...grpc.CallOption) (*Resp, error) {
	in, err := ToStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	resp := new(Resp)
	if err := FromStruct(out, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *GetInfoDaemonClient) Focus(ctx context.Context, req *FocusRequest, opts ...grpc.CallOption) (*FocusResponse, error) {
	return invoke[FocusResponse](ctx, c.cc, MethodFocus, req, opts...)
}

func (c *GetInfoDaemonClient) ScanSequence(ctx context.Context, req *ScanSequenceRequest, opts ...grpc.CallOption) (*ScanSequenceResponse, error) {
	return invoke[ScanSequenceResponse](ctx, c.cc, MethodScanSequence, req, opts...)
}

func (c *GetInfoDaemonClient) CancelSequence(ctx context.Context, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c.cc, MethodCancelSequence, &Empty{}, opts...)
	return err
}

func (c *GetInfoDaemonClient) GetDirectory(ctx context.Context, req *GetDirectoryRequest, opts ...grpc.CallOption) (*GetDirectoryResponse, error) {
	return invoke[GetDirectoryResponse](ctx, c.cc, MethodGetDirectory, req, opts...)
}

func (c *GetInfoDaemonClient) SetEnabled(ctx context.Context, req *SetEnabledRequest, opts ...grpc.CallOption) (*IsEnabledResponse, error) {
	return invoke[IsEnabledResponse](ctx, c.cc, MethodSetEnabled, req, opts...)
}

func (c *GetInfoDaemonClient) IsEnabled(ctx context.Context, req *IsEnabledRequest, opts ...grpc.CallOption) (*IsEnabledResponse, error) {
	return invoke[IsEnabledResponse](ctx, c.cc, MethodIsEnabled, req, opts...)
}

func (c *GetInfoDaemonClient) ListOverrides(ctx context.Context, opts ...grpc.CallOption) (*OverridesResponse, error) {
	return invoke[OverridesResponse](ctx, c.cc, MethodListOverrides, &Empty{}, opts...)
}

func (c *GetInfoDaemonClient) SaveSnapshot(ctx context.Context, opts ...grpc.CallOption) (*SaveSnapshotResponse, error) {
	return invoke[SaveSnapshotResponse](ctx, c.cc, MethodSaveSnapshot, &Empty{}, opts...)
}

func (c *GetInfoDaemonClient) ListSnapshots(ctx context.Context, opts ...grpc.CallOption) (*ListSnapshotsResponse, error) {
	return invoke[ListSnapshotsResponse](ctx, c.cc, MethodListSnapshots, &Empty{}, opts...)
}

func (c *GetInfoDaemonClient) DeleteSnapshot(ctx context.Context, req *DeleteSnapshotRequest, opts ...grpc.CallOption) error {
	_, err := invoke[Empty](ctx, c.cc, MethodDeleteSnapshot, req, opts...)
	return err
}

func (c *GetInfoDaemonClient) History(ctx context.Context, req *HistoryRequest, opts ...grpc.CallOption) (*HistoryResponse, error) {
	return invoke[HistoryResponse](ctx, c.cc, MethodHistory, req, opts...)
}

func (c *GetInfoDaemonClient) Status(ctx context.Context, opts ...grpc.CallOption) (*StatusResponse, error) {
	return invoke[StatusResponse](ctx, c.cc, MethodStatus, &Empty{}, opts...)
}

func (c *GetInfoDaemonClient) Shutdown(ctx context.Context, opts ...grpc.CallOption) (*ShutdownResponse, error) {
	return invoke[ShutdownResponse](ctx, c.cc, MethodShutdown, &Empty{}, opts...)
}

// WatchClient is the client side of a Watch stream.
type WatchClient struct {
	stream grpc.ClientStream
}

// Recv blocks for the next event. It returns io.EOF when the server ends
// the stream.
func (w *WatchClient) Recv() (*WatchEvent, error) {
	out := new(structpb.Struct)
	if err := w.stream.RecvMsg(out); err != nil {
		return nil, err
	}
	ev := new(WatchEvent)
	if err := FromStruct(out, ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// Watch opens an event stream. Cancel ctx to end it.
func (c *GetInfoDaemonClient) Watch(ctx context.Context, req *WatchRequest, opts ...grpc.CallOption) (*WatchClient, error) {
	stream, err := c.cc.NewStream(ctx, &ServiceDesc.Streams[0], FullMethod(MethodWatch), opts...)
	if err != nil {
		return nil, err
	}
	in, err := ToStruct(req)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &WatchClient{stream: stream}, nil
}
