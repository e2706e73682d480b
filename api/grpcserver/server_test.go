package grpcserver

import (
	"context"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/arithmax-research/TurboBook/domain/orderbook"
	"github.com/arithmax-research/TurboBook/service"
)

func startServer(tb testing.TB) *Client {
	tb.Helper()
	c, _ := startSession(tb)
	return c
}

func startSession(tb testing.TB) (*Client, *service.Session) {
	tb.Helper()
	sess := service.NewSession(zerolog.Nop(), time.Millisecond)
	for _, sym := range []string{"BTCUSDT", "ETHUSDT"} {
		svc := service.NewBookService(sym, service.BookOptions{Logger: zerolog.Nop()})
		require.NoError(tb, sess.Add(svc, nil))
	}

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	Register(srv, NewServer(sess, zerolog.Nop()))
	go func() { _ = srv.Serve(lis) }()
	tb.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(tb, err)
	tb.Cleanup(func() { conn.Close() })
	return NewClient(conn), sess
}

func TestPlaceOrderAndBook(t *testing.T) {
	c := startServer(t)
	ctx := context.Background()

	placed, err := c.PlaceOrder(ctx, "BTCUSDT", "buy", "limit", "100.5", "2")
	require.NoError(t, err)
	id := uint64(placed.Fields["id"].GetNumberValue())
	assert.Equal(t, uint64(1), id)
	assert.Empty(t, placed.Fields["trades"].GetListValue().GetValues())

	crossed, err := c.PlaceOrder(ctx, "btcusdt", "sell", "limit", "100", "0.5")
	require.NoError(t, err)
	trades := crossed.Fields["trades"].GetListValue().GetValues()
	require.Len(t, trades, 1)
	fill := trades[0].GetStructValue().Fields
	assert.Equal(t, "100.5", fill["price"].GetStringValue())
	assert.Equal(t, float64(id), fill["buy_order_id"].GetNumberValue())

	book, err := c.GetBook(ctx, "BTCUSDT", 5)
	require.NoError(t, err)
	bids := book.Fields["bids"].GetListValue().GetValues()
	require.Len(t, bids, 1)
	assert.Equal(t, "1.5", bids[0].GetStructValue().Fields["quantity"].GetStringValue())
	assert.Empty(t, book.Fields["asks"].GetListValue().GetValues())

	ok, err := c.CancelOrder(ctx, "BTCUSDT", id)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = c.CancelOrder(ctx, "BTCUSDT", id)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetReport(t *testing.T) {
	c := startServer(t)
	ctx := context.Background()
	_, err := c.PlaceOrder(ctx, "ETHUSDT", "buy", "limit", "99", "1")
	require.NoError(t, err)
	_, err = c.PlaceOrder(ctx, "ETHUSDT", "sell", "limit", "101", "1")
	require.NoError(t, err)

	r, err := c.GetReport(ctx, "ETHUSDT")
	require.NoError(t, err)
	assert.Equal(t, "ETHUSDT", r.Fields["symbol"].GetStringValue())
	assert.InDelta(t, 100.0, r.Fields["mid"].GetNumberValue(), 1e-9)
	assert.Equal(t, 1.0, r.Fields["bid_levels"].GetNumberValue())
}

func TestErrorsMapToStatusCodes(t *testing.T) {
	c := startServer(t)
	ctx := context.Background()

	_, err := c.GetReport(ctx, "DOGE")
	assert.True(t, IsNotFound(err))

	_, err = c.PlaceOrder(ctx, "BTCUSDT", "sideways", "limit", "1", "1")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.PlaceOrder(ctx, "BTCUSDT", "buy", "limit", "1", "0")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.CancelOrder(ctx, "", 1)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestCancelOrderIDEncoding(t *testing.T) {
	c := startServer(t)
	ctx := context.Background()

	placed, err := c.PlaceOrder(ctx, "BTCUSDT", "buy", "limit", "100", "1")
	require.NoError(t, err)
	id := placed.Fields["id"].GetNumberValue()

	cancel := func(v any) (*wrapperspb.BoolValue, error) {
		in, err := structpb.NewStruct(map[string]any{"symbol": "BTCUSDT", "id": v})
		require.NoError(t, err)
		out := new(wrapperspb.BoolValue)
		return out, c.cc.Invoke(ctx, cancelOrderMethod, in, out)
	}

	for _, bad := range []any{id + 0.5, -1.0, 0.0, float64(1 << 60), "abc", "0", "-3", nil} {
		_, err := cancel(bad)
		assert.Equal(t, codes.InvalidArgument, status.Code(err), "id %v", bad)
	}

	out, err := cancel(id)
	require.NoError(t, err)
	assert.True(t, out.GetValue())

	placed, err = c.PlaceOrder(ctx, "BTCUSDT", "buy", "limit", "100", "1")
	require.NoError(t, err)
	out, err = cancel(strconv.FormatFloat(placed.Fields["id"].GetNumberValue(), 'f', 0, 64))
	require.NoError(t, err)
	assert.True(t, out.GetValue())

	out, err = cancel("18446744073709551615")
	require.NoError(t, err)
	assert.False(t, out.GetValue())
}

func TestGetBookIsOneView(t *testing.T) {
	c, sess := startSession(t)
	svc, ok := sess.Book("BTCUSDT")
	require.True(t, ok)
	ctx := context.Background()

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		var prev uint64
		for i := 0; ; i++ {
			select {
			case <-done:
				return
			default:
			}
			id, _, err := svc.PlaceOrder(orderbook.Buy, orderbook.Limit,
				orderbook.PriceFromFloat(100+float64(i%50)), orderbook.QuantityFromFloat(1))
			if err != nil {
				return
			}
			if prev != 0 {
				svc.CancelOrder(prev)
			}
			prev = id
		}
	}()

	for i := 0; i < 300; i++ {
		book, err := c.GetBook(ctx, "BTCUSDT", 1)
		require.NoError(t, err)
		bids := book.Fields["bids"].GetListValue().GetValues()
		if len(bids) == 0 {
			continue
		}
		require.Len(t, bids, 1)
		assert.Equal(t, book.Fields["best_bid"].GetStringValue(),
			bids[0].GetStructValue().Fields["price"].GetStringValue())
	}
	close(done)
	wg.Wait()
}

func BenchmarkPlaceOrderGRPC(b *testing.B) {
	c := startServer(b)
	ctx := context.Background()
	sides := [2]string{"buy", "sell"}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.PlaceOrder(ctx, "BTCUSDT", sides[i%2], "limit", "100", "1"); err != nil {
			b.Fatal(err)
		}
	}
}
