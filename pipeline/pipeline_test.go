package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/goliatone/go-conduit"
	"github.com/goliatone/go-conduit/scope"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type traceLog struct {
	mu    sync.Mutex
	steps []string
}

func (l *traceLog) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.steps = append(l.steps, s)
}

func (l *traceLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.steps...)
}

type tagConfig struct {
	Tag string
}

type tagMiddleware struct {
	log *traceLog
}

func (m *tagMiddleware) Execute(ctx context.Context, call *Call[string, string], cfg tagConfig) (string, error) {
	m.log.add(cfg.Tag)
	return call.Next(ctx, call.Message+"|"+cfg.Tag)
}

type otherMiddleware struct {
	log *traceLog
}

func (m otherMiddleware) Execute(ctx context.Context, call *Call[string, string], cfg int) (string, error) {
	m.log.add("other")
	return call.Next(ctx, call.Message)
}

type twiceMiddleware struct{}

func (twiceMiddleware) Execute(ctx context.Context, call *Call[string, string], _ conduit.Unit) (string, error) {
	first, err := call.Next(ctx, call.Message+"-1")
	if err != nil {
		return "", err
	}
	second, err := call.Next(ctx, call.Message+"-2")
	if err != nil {
		return "", err
	}
	return first + "+" + second, nil
}

func echoHandler(log *traceLog) conduit.Handler[string, string] {
	return conduit.HandlerFunc[string, string](func(_ context.Context, msg string) (string, error) {
		if log != nil {
			log.add("handler:" + msg)
		}
		return msg, nil
	})
}

func TestExecutionOrderFollowsEntries(t *testing.T) {
	log := &traceLog{}
	tag := &tagMiddleware{log: log}

	p := New[string, string]()
	Use(p, tag, tagConfig{Tag: "a"})
	Use(p, otherMiddleware{log: log}, 0)
	Use(p, tag, tagConfig{Tag: "b"})

	res, err := p.Execute(context.Background(), "m", conduit.InProcessReceiver(), echoHandler(log))
	require.NoError(t, err)
	assert.Equal(t, "m|a|b", res)
	assert.Equal(t, []string{"a", "other", "b", "handler:m|a|b"}, log.get())
}

func TestWithoutRemovesAllEntriesOfType(t *testing.T) {
	log := &traceLog{}
	tag := &tagMiddleware{log: log}

	p := New[string, string]()
	Use(p, tag, tagConfig{Tag: "a"})
	Use(p, otherMiddleware{log: log}, 0)
	Use(p, tag, tagConfig{Tag: "b"})

	assert.Equal(t, 2, Without[*tagMiddleware](p))
	assert.Equal(t, 1, p.Len())
	assert.Equal(t, 0, Without[*tagMiddleware](p))

	res, err := p.Execute(context.Background(), "m", conduit.InProcessReceiver(), echoHandler(nil))
	require.NoError(t, err)
	assert.Equal(t, "m", res)
	assert.Equal(t, []string{"other"}, log.get())
}

func TestConfigureRewritesFirstEntryInPlace(t *testing.T) {
	log := &traceLog{}
	tag := &tagMiddleware{log: log}

	p := New[string, string]()
	Use(p, tag, tagConfig{Tag: "a"})
	Use(p, otherMiddleware{log: log}, 0)
	Use(p, tag, tagConfig{Tag: "b"})

	ok := Configure[*tagMiddleware](p, func(c tagConfig) tagConfig {
		c.Tag = strings.ToUpper(c.Tag)
		return c
	})
	require.True(t, ok)

	res, err := p.Execute(context.Background(), "m", conduit.InProcessReceiver(), echoHandler(nil))
	require.NoError(t, err)
	assert.Equal(t, "m|A|b", res)
	assert.Equal(t, []string{"A", "other", "b"}, log.get())
}

func TestConfigureAllRewritesEveryEntry(t *testing.T) {
	tag := &tagMiddleware{log: &traceLog{}}
	p := New[string, string]()
	Use(p, tag, tagConfig{Tag: "a"})
	Use(p, tag, tagConfig{Tag: "b"})

	n := ConfigureAll[*tagMiddleware](p, func(c tagConfig) tagConfig {
		c.Tag += c.Tag
		return c
	})
	assert.Equal(t, 2, n)

	res, err := p.Execute(context.Background(), "m", conduit.InProcessReceiver(), echoHandler(nil))
	require.NoError(t, err)
	assert.Equal(t, "m|aa|bb", res)
}

func TestConfigureUnusedMiddlewareIsNoop(t *testing.T) {
	log := &traceLog{}
	p := New[string, string]()
	Use(p, otherMiddleware{log: log}, 0)

	called := false
	ok := Configure[*tagMiddleware](p, func(c tagConfig) tagConfig {
		called = true
		return c
	})
	assert.False(t, ok)
	assert.False(t, called)
	assert.Equal(t, 1, p.Len())
	assert.False(t, Has[*tagMiddleware](p))
	assert.True(t, Has[otherMiddleware](p))
}

func TestNextTwiceRunsHandlerTwice(t *testing.T) {
	log := &traceLog{}
	tag := &tagMiddleware{log: log}

	p := New[string, string]()
	Use(p, tag, tagConfig{Tag: "outer"})
	Use(p, twiceMiddleware{}, conduit.Unit{})
	Use(p, tag, tagConfig{Tag: "inner"})

	res, err := p.Execute(context.Background(), "m", conduit.InProcessReceiver(), echoHandler(log))
	require.NoError(t, err)
	assert.Equal(t, "m|outer-1|inner+m|outer-2|inner", res)
	assert.Equal(t, []string{
		"outer",
		"inner", "handler:m|outer-1|inner",
		"inner", "handler:m|outer-2|inner",
	}, log.get(), "re-entry resumes after the calling middleware only")
}

func TestShortCircuitSkipsHandler(t *testing.T) {
	log := &traceLog{}
	p := New[string, string]()
	p.UseFunc(func(ctx context.Context, call *Call[string, string]) (string, error) {
		return "cached", nil
	})

	res, err := p.Execute(context.Background(), "m", conduit.InProcessReceiver(), echoHandler(log))
	require.NoError(t, err)
	assert.Equal(t, "cached", res)
	assert.Empty(t, log.get())
}

func TestErrorsPropagateVerbatim(t *testing.T) {
	boom := errors.New("boom")
	log := &traceLog{}

	p := New[string, string]()
	Use(p, &tagMiddleware{log: log}, tagConfig{Tag: "a"})
	p.UseFunc(func(ctx context.Context, call *Call[string, string]) (string, error) {
		return "", boom
	})
	Use(p, &tagMiddleware{log: log}, tagConfig{Tag: "never"})

	_, err := p.Execute(context.Background(), "m", conduit.InProcessReceiver(), echoHandler(log))
	assert.Same(t, boom, err)
	assert.Equal(t, []string{"a"}, log.get())

	handlerErr := errors.New("handler failed")
	_, err = New[string, string]().Execute(context.Background(), "m", conduit.InProcessReceiver(),
		conduit.HandlerFunc[string, string](func(context.Context, string) (string, error) {
			return "", handlerErr
		}))
	assert.Same(t, handlerErr, err)
}

func TestCompiledChainIsFrozen(t *testing.T) {
	log := &traceLog{}
	tag := &tagMiddleware{log: log}

	p := New[string, string]()
	Use(p, tag, tagConfig{Tag: "a"})
	chain := p.Compile()

	Configure[*tagMiddleware](p, func(tagConfig) tagConfig { return tagConfig{Tag: "changed"} })
	Use(p, tag, tagConfig{Tag: "added"})

	res, err := chain.Run(context.Background(), "m", conduit.InProcessReceiver(), echoHandler(nil))
	require.NoError(t, err)
	assert.Equal(t, "m|a", res)
	assert.Equal(t, 1, chain.Len())

	res, err = p.Execute(context.Background(), "m", conduit.InProcessReceiver(), echoHandler(nil))
	require.NoError(t, err)
	assert.Equal(t, "m|changed|added", res)
}

func TestMutatingRecipeDuringRunDoesNotAffectRun(t *testing.T) {
	log := &traceLog{}
	p := New[string, string]()
	p.UseFunc(func(ctx context.Context, call *Call[string, string]) (string, error) {
		Use(p, &tagMiddleware{log: log}, tagConfig{Tag: "late"})
		return call.Next(ctx, call.Message)
	})

	res, err := p.Execute(context.Background(), "m", conduit.InProcessReceiver(), echoHandler(nil))
	require.NoError(t, err)
	assert.Equal(t, "m", res)
	assert.Equal(t, 2, p.Len())
	assert.Empty(t, log.get())
}

func TestCloneIsIndependent(t *testing.T) {
	p := New[string, string]()
	Use(p, &tagMiddleware{log: &traceLog{}}, tagConfig{Tag: "a"})
	cp := p.Clone()
	Use(cp, otherMiddleware{log: &traceLog{}}, 1)
	Configure[*tagMiddleware](cp, func(tagConfig) tagConfig { return tagConfig{Tag: "b"} })

	assert.Equal(t, 1, p.Len())
	assert.Equal(t, 2, cp.Len())
	assert.Equal(t, []string{"*pipeline.tagMiddleware", "pipeline.otherMiddleware"}, cp.Types())

	res, err := p.Execute(context.Background(), "m", conduit.InProcessReceiver(), echoHandler(nil))
	require.NoError(t, err)
	assert.Equal(t, "m|a", res)
}

func TestCallCarriesStoreAndTransport(t *testing.T) {
	ctx, store, release := scope.GetOrCreate(context.Background())
	defer release()

	transport := conduit.NewTransportType("http", conduit.RoleSender)
	p := New[string, string]()
	p.UseFunc(func(ctx context.Context, call *Call[string, string]) (string, error) {
		assert.Same(t, store, call.Store)
		assert.Equal(t, transport, call.Transport)
		assert.Equal(t, 0, call.Position)
		active, ok := Store(ctx)
		assert.True(t, ok)
		assert.Same(t, store, active)
		return call.Next(ctx, call.Message)
	})

	_, err := p.Execute(ctx, "m", transport, echoHandler(nil))
	require.NoError(t, err)
	assert.False(t, store.Released(), "borrowed store is not released by the run")
}

func TestRunOwnsStoreWhenNoneActive(t *testing.T) {
	var seen *scope.Store
	p := New[string, string]()
	p.UseFunc(func(ctx context.Context, call *Call[string, string]) (string, error) {
		seen = call.Store
		call.Store.Set(scope.Upstream, "k", "v", scope.InProcess)
		return call.Next(ctx, call.Message)
	})

	_, err := p.Execute(context.Background(), "m", conduit.InProcessReceiver(), echoHandler(nil))
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.True(t, seen.Released())
}

func TestRunRejectsNilHandler(t *testing.T) {
	_, err := New[string, string]().Execute(context.Background(), "m", conduit.InProcessReceiver(), nil)
	require.Error(t, err)
	assert.Equal(t, "NIL_HANDLER", conduit.ErrorCode(err))
}

func TestChainConcurrentRuns(t *testing.T) {
	p := New[string, string]()
	Use(p, &tagMiddleware{log: &traceLog{}}, tagConfig{Tag: "x"})
	chain := p.Compile()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := chain.Run(context.Background(), "m", conduit.InProcessReceiver(), echoHandler(nil))
			assert.NoError(t, err)
			assert.Equal(t, "m|x", res)
		}()
	}
	wg.Wait()
}

func TestWithoutInlineMiddleware(t *testing.T) {
	p := New[string, string]()
	p.UseFunc(func(ctx context.Context, call *Call[string, string]) (string, error) { return "a", nil })
	Use(p, otherMiddleware{log: &traceLog{}}, 0)
	p.UseFunc(func(ctx context.Context, call *Call[string, string]) (string, error) { return "b", nil })

	assert.Equal(t, 2, Without[MiddlewareFunc[string, string]](p))
	assert.Equal(t, 1, p.Len())
}
