package grpcserver

import (
	"context"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	getBookMethod     = "/" + ServiceName + "/GetBook"
	getReportMethod   = "/" + ServiceName + "/GetReport"
	placeOrderMethod  = "/" + ServiceName + "/PlaceOrder"
	cancelOrderMethod = "/" + ServiceName + "/CancelOrder"
)

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*BookServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetBook", Handler: getBookHandler},
		{MethodName: "GetReport", Handler: getReportHandler},
		{MethodName: "PlaceOrder", Handler: placeOrderHandler},
		{MethodName: "CancelOrder", Handler: cancelOrderHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "turbobook/v1/book.proto",
}

func getBookHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BookServiceServer).GetBook(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getBookMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BookServiceServer).GetBook(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func getReportHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BookServiceServer).GetReport(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getReportMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BookServiceServer).GetReport(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func placeOrderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BookServiceServer).PlaceOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: placeOrderMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BookServiceServer).PlaceOrder(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func cancelOrderHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(BookServiceServer).CancelOrder(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: cancelOrderMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(BookServiceServer).CancelOrder(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// Client is a typed client for turbobook.v1.BookService.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client { return &Client{cc: cc} }

func (c *Client) GetBook(ctx context.Context, symbol string, depth int) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]any{"symbol": symbol, "depth": depth})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	return out, c.cc.Invoke(ctx, getBookMethod, in, out)
}

func (c *Client) GetReport(ctx context.Context, symbol string) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	return out, c.cc.Invoke(ctx, getReportMethod, wrapperspb.String(symbol), out)
}

func (c *Client) PlaceOrder(ctx context.Context, symbol, side, otype, price, qty string) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(map[string]any{
		"symbol": symbol, "side": side, "type": otype, "price": price, "quantity": qty,
	})
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	return out, c.cc.Invoke(ctx, placeOrderMethod, in, out)
}

func (c *Client) CancelOrder(ctx context.Context, symbol string, id uint64) (bool, error) {
	in, err := structpb.NewStruct(map[string]any{"symbol": symbol, "id": strconv.FormatUint(id, 10)})
	if err != nil {
		return false, err
	}
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(ctx, cancelOrderMethod, in, out); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}
