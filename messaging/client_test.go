package messaging

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/goliatone/go-conduit"
	"github.com/goliatone/go-conduit/pipeline"
	"github.com/goliatone/go-conduit/scope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type getPrice struct {
	SKU string
}

func (m *getPrice) Validate() error {
	if m.SKU == "" {
		return errors.New("sku is required")
	}
	return nil
}

type price struct {
	Amount int
}

func counter(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return prefix + string(rune('0'+n))
	}
}

func TestInProcessSendRunsBothPipelines(t *testing.T) {
	var seen []string

	handlerPipeline := pipeline.New[*getPrice, price]()
	handlerPipeline.UseFunc(func(ctx context.Context, call *pipeline.Call[*getPrice, price]) (price, error) {
		seen = append(seen, "handler-side:"+call.Transport.String())
		return call.Next(ctx, call.Message)
	})

	handler := conduit.HandlerFunc[*getPrice, price](func(ctx context.Context, msg *getPrice) (price, error) {
		seen = append(seen, "handler:"+msg.SKU)
		return price{Amount: 42}, nil
	})

	client := NewClient[*getPrice, price](NewInProcessTransport[*getPrice, price](handler, handlerPipeline))
	client.Pipeline().UseFunc(func(ctx context.Context, call *pipeline.Call[*getPrice, price]) (price, error) {
		seen = append(seen, "client-side:"+call.Transport.String())
		return call.Next(ctx, call.Message)
	})

	res, err := client.Send(context.Background(), &getPrice{SKU: "abc"})
	require.NoError(t, err)
	assert.Equal(t, 42, res.Amount)
	assert.Equal(t, []string{
		"client-side:in-process/sender",
		"handler-side:in-process/receiver",
		"handler:abc",
	}, seen)
}

func TestSendValidatesMessage(t *testing.T) {
	called := false
	handler := conduit.HandlerFunc[*getPrice, price](func(context.Context, *getPrice) (price, error) {
		called = true
		return price{}, nil
	})
	client := NewClient[*getPrice, price](NewInProcessTransport[*getPrice, price](handler, nil))

	_, err := client.Send(context.Background(), nil)
	require.Error(t, err)
	assert.True(t, conduit.HasErrorCode(err, conduit.ErrCodeInvalidMessage))

	_, err = client.Send(context.Background(), &getPrice{})
	require.Error(t, err)
	assert.True(t, conduit.HasErrorCode(err, conduit.ErrCodeValidation))
	assert.False(t, called)
}

func TestSendHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient[*getPrice, price](NewInProcessTransport[*getPrice, price](
		conduit.HandlerFunc[*getPrice, price](func(context.Context, *getPrice) (price, error) {
			t.Fatal("handler must not run")
			return price{}, nil
		}), nil))

	_, err := client.Send(ctx, &getPrice{SKU: "x"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSendAssignsMessageIDPerExecution(t *testing.T) {
	var handlerIDs []string
	handler := conduit.HandlerFunc[*getPrice, price](func(ctx context.Context, _ *getPrice) (price, error) {
		s, ok := scope.FromContext(ctx)
		require.True(t, ok)
		handlerIDs = append(handlerIDs, s.MessageID())
		return price{}, nil
	})

	client := NewClient[*getPrice, price](NewInProcessTransport[*getPrice, price](handler, nil),
		WithIDGenerator[*getPrice, price](counter("id-")))

	ctx, store, release := scope.GetOrCreate(context.Background(),
		scope.WithIDGenerator(func() string { return "outer" }))
	defer release()

	_, err := client.Send(ctx, &getPrice{SKU: "a"})
	require.NoError(t, err)
	_, err = client.Send(ctx, &getPrice{SKU: "b"})
	require.NoError(t, err)

	assert.Equal(t, []string{"id-1", "id-2"}, handlerIDs)
	assert.Equal(t, "outer", store.MessageID(), "borrowed store keeps its id")
}

func TestConcurrentSendsKeepTheirOwnMessageID(t *testing.T) {
	entered := map[string]chan struct{}{"a": make(chan struct{}), "b": make(chan struct{})}
	proceed := map[string]chan struct{}{"a": make(chan struct{}), "b": make(chan struct{})}

	var mu sync.Mutex
	atEntry := map[string]string{}
	atExit := map[string]string{}

	handler := conduit.HandlerFunc[*getPrice, price](func(ctx context.Context, msg *getPrice) (price, error) {
		s, _ := scope.FromContext(ctx)
		mu.Lock()
		atEntry[msg.SKU] = s.MessageID()
		mu.Unlock()

		close(entered[msg.SKU])
		<-proceed[msg.SKU]

		mu.Lock()
		atExit[msg.SKU] = s.MessageID()
		mu.Unlock()
		s.Set(scope.Upstream, "done-"+msg.SKU, "yes", scope.AcrossTransports)
		return price{}, nil
	})

	var genMu sync.Mutex
	next := counter("id-")
	client := NewClient[*getPrice, price](NewInProcessTransport[*getPrice, price](handler, nil),
		WithIDGenerator[*getPrice, price](func() string {
			genMu.Lock()
			defer genMu.Unlock()
			return next()
		}))

	ctx, store, release := scope.GetOrCreate(context.Background(),
		scope.WithIDGenerator(func() string { return "outer" }))
	defer release()

	var wg sync.WaitGroup
	send := func(sku string) {
		defer wg.Done()
		_, err := client.Send(ctx, &getPrice{SKU: sku})
		assert.NoError(t, err)
	}

	wg.Add(2)
	go send("a")
	<-entered["a"]
	go send("b")
	<-entered["b"]

	close(proceed["a"])
	close(proceed["b"])
	wg.Wait()

	assert.Equal(t, atEntry, atExit, "message id is stable within an execution")
	assert.NotEqual(t, atEntry["a"], atEntry["b"])
	assert.NotEqual(t, "outer", atEntry["a"])
	assert.NotEqual(t, "outer", atEntry["b"])
	assert.Equal(t, "outer", store.MessageID())

	for _, key := range []string{"done-a", "done-b"} {
		v, ok := store.Upstream().Get(key)
		assert.True(t, ok, key)
		assert.Equal(t, "yes", v)
	}
}

func TestSendOwnsStoreWithoutActiveOne(t *testing.T) {
	var captured *scope.Store
	handler := conduit.HandlerFunc[*getPrice, price](func(ctx context.Context, _ *getPrice) (price, error) {
		captured, _ = scope.FromContext(ctx)
		return price{}, nil
	})
	client := NewClient[*getPrice, price](NewInProcessTransport[*getPrice, price](handler, nil),
		WithIDGenerator[*getPrice, price](func() string { return "fresh" }))

	_, err := client.Send(context.Background(), &getPrice{SKU: "a"})
	require.NoError(t, err)
	require.NotNil(t, captured)
	assert.True(t, captured.Released())
}

func TestContextDataFlowsBothWays(t *testing.T) {
	handler := conduit.HandlerFunc[*getPrice, price](func(ctx context.Context, _ *getPrice) (price, error) {
		s, _ := scope.FromContext(ctx)
		tenant, _ := s.Downstream().Get("tenant")
		s.Set(scope.Upstream, "priced-for", tenant, scope.AcrossTransports)
		return price{}, nil
	})
	client := NewClient[*getPrice, price](NewInProcessTransport[*getPrice, price](handler, nil))

	ctx, store, release := scope.GetOrCreate(context.Background())
	defer release()
	store.Set(scope.Downstream, "tenant", "acme", scope.AcrossTransports)

	_, err := client.Send(ctx, &getPrice{SKU: "a"})
	require.NoError(t, err)

	v, ok := store.Upstream().Get("priced-for")
	assert.True(t, ok)
	assert.Equal(t, "acme", v)
}

func TestNewInProcessClientFromRegistry(t *testing.T) {
	reg := pipeline.NewRegistry()
	var steps []string
	require.NoError(t, pipeline.Register(reg, func(p *pipeline.Pipeline[*getPrice, price]) {
		p.UseFunc(func(ctx context.Context, call *pipeline.Call[*getPrice, price]) (price, error) {
			steps = append(steps, "handler-side")
			return call.Next(ctx, call.Message)
		})
	}))
	require.NoError(t, pipeline.RegisterClient(reg, func(p *pipeline.Pipeline[*getPrice, price]) {
		p.UseFunc(func(ctx context.Context, call *pipeline.Call[*getPrice, price]) (price, error) {
			steps = append(steps, "client-side")
			return call.Next(ctx, call.Message)
		})
	}))
	require.NoError(t, reg.Initialize())

	client := NewInProcessClient[*getPrice, price](
		conduit.HandlerFunc[*getPrice, price](func(context.Context, *getPrice) (price, error) {
			return price{Amount: 1}, nil
		}), reg)

	res, err := client.Send(context.Background(), &getPrice{SKU: "a"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Amount)
	assert.Equal(t, []string{"client-side", "handler-side"}, steps)
}

func TestSendPropagatesHandlerErrorVerbatim(t *testing.T) {
	boom := errors.New("boom")
	client := NewClient[*getPrice, price](NewInProcessTransport[*getPrice, price](
		conduit.HandlerFunc[*getPrice, price](func(context.Context, *getPrice) (price, error) {
			return price{}, boom
		}), nil))

	_, err := client.Send(context.Background(), &getPrice{SKU: "a"})
	assert.Same(t, boom, err)
}
