// Package grpcserver exposes the books over gRPC. Messages are the
// well-known structpb and wrapperspb types, so the service needs no
// generated code; ServiceDesc is written out by hand.
package grpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/arithmax-research/TurboBook/domain/orderbook"
	"github.com/arithmax-research/TurboBook/service"
)

const ServiceName = "turbobook.v1.BookService"

// Books resolves a symbol to its book. *service.Session satisfies it.
type Books interface {
	Book(symbol string) (*service.BookService, bool)
}

// BookServiceServer is the server API of turbobook.v1.BookService.
type BookServiceServer interface {
	GetBook(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetReport(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	PlaceOrder(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CancelOrder(context.Context, *structpb.Struct) (*wrapperspb.BoolValue, error)
}

// Server adapts the session's books to gRPC.
type Server struct {
	books Books
	log   zerolog.Logger
}

func NewServer(books Books, log zerolog.Logger) *Server {
	return &Server{books: books, log: log.With().Str("component", "grpc").Logger()}
}

// Register attaches srv to s.
func Register(s grpc.ServiceRegistrar, srv BookServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// -------------------- Commands --------------------

// PlaceOrder expects {symbol, side, type?, price, quantity} with decimal
// strings for price and quantity. It returns {id, trades}.
func (s *Server) PlaceOrder(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := req.GetFields()
	b, err := s.book(f["symbol"].GetStringValue())
	if err != nil {
		return nil, err
	}
	side, err := orderbook.ParseSide(f["side"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	otype := orderbook.Limit
	if strings.EqualFold(f["type"].GetStringValue(), "market") {
		otype = orderbook.Market
	}
	price, err := orderbook.ParsePrice(f["price"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	qty, err := orderbook.ParseQuantity(f["quantity"].GetStringValue())
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	id, trades, err := b.PlaceOrder(side, otype, price, qty)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	s.log.Debug().Str("symbol", b.Symbol()).Uint64("id", id).Int("trades", len(trades)).Msg("order placed")

	fills := make([]any, 0, len(trades))
	for _, t := range trades {
		fills = append(fills, map[string]any{
			"buy_order_id":  t.BuyOrderID,
			"sell_order_id": t.SellOrderID,
			"price":         t.Price.String(),
			"quantity":      t.Quantity.String(),
		})
	}
	return toStruct(map[string]any{"id": id, "trades": fills})
}

// CancelOrder expects {symbol, id} and reports whether an order was removed.
func (s *Server) CancelOrder(ctx context.Context, req *structpb.Struct) (*wrapperspb.BoolValue, error) {
	f := req.GetFields()
	b, err := s.book(f["symbol"].GetStringValue())
	if err != nil {
		return nil, err
	}
	id, err := orderID(f["id"])
	if err != nil {
		return nil, err
	}
	return wrapperspb.Bool(b.CancelOrder(id)), nil
}

// -------------------- Queries --------------------

// GetBook expects {symbol, depth?} and returns the top depth levels of
// each side.
func (s *Server) GetBook(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := req.GetFields()
	b, err := s.book(f["symbol"].GetStringValue())
	if err != nil {
		return nil, err
	}
	depth := 20
	if v, ok := f["depth"]; ok {
		depth = int(v.GetNumberValue())
	}
	snap := b.Snapshot()
	return toStruct(map[string]any{
		"symbol":   b.Symbol(),
		"version":  snap.Version,
		"best_bid": snap.BestBid().String(),
		"best_ask": snap.BestAsk().String(),
		"bids":     fromLevels(top(snap.Bids, depth)),
		"asks":     fromLevels(top(snap.Asks, depth)),
	})
}

func (s *Server) GetReport(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	b, err := s.book(req.GetValue())
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(b.Report())
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	out := &structpb.Struct{}
	if err := out.UnmarshalJSON(raw); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// -------------------- Converters --------------------

// orderID accepts the id as a decimal string, or as a number when it is
// integral and exactly representable.
func orderID(v *structpb.Value) (uint64, error) {
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		id, err := strconv.ParseUint(k.StringValue, 10, 64)
		if err != nil || id == 0 {
			return 0, status.Errorf(codes.InvalidArgument, "invalid id %q", k.StringValue)
		}
		return id, nil
	case *structpb.Value_NumberValue:
		n := k.NumberValue
		if n < 1 || n > maxExactID || n != math.Trunc(n) {
			return 0, status.Errorf(codes.InvalidArgument, "id %v is not an exact positive integer; send it as a string", n)
		}
		return uint64(n), nil
	}
	return 0, status.Error(codes.InvalidArgument, "id is required")
}

// maxExactID is the largest integer a float64 number value carries exactly.
const maxExactID = 1 << 53

func (s *Server) book(symbol string) (*service.BookService, error) {
	if symbol == "" {
		return nil, status.Error(codes.InvalidArgument, "symbol is required")
	}
	b, ok := s.books.Book(strings.ToUpper(symbol))
	if !ok {
		return nil, status.Errorf(codes.NotFound, "unknown symbol %s", symbol)
	}
	return b, nil
}

// top keeps the first depth levels; a negative depth keeps all.
func top(levels []orderbook.Level, depth int) []orderbook.Level {
	if depth >= 0 && depth < len(levels) {
		return levels[:depth]
	}
	return levels
}

func fromLevels(levels []orderbook.Level) []any {
	out := make([]any, 0, len(levels))
	for _, l := range levels {
		out = append(out, map[string]any{
			"price":    l.Price.String(),
			"quantity": l.Quantity.String(),
			"orders":   l.Orders,
		})
	}
	return out
}

func toStruct(m map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return s, nil
}

// IsNotFound reports whether err carries codes.NotFound.
func IsNotFound(err error) bool {
	var se interface{ GRPCStatus() *status.Status }
	return errors.As(err, &se) && se.GRPCStatus().Code() == codes.NotFound
}
