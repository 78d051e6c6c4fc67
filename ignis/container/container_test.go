package container_test

import (
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ignis-framework/ignis/ignis/container"
	"github.com/ignis-framework/ignis/ignis/igniserr"
	"github.com/ignis-framework/ignis/ignis/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	_ = metrics.Init()
	os.Exit(m.Run())
}

func TestGetMissingRequiredBindingIsNotBound(t *testing.T) {
	c := container.New()
	_, err := c.Get("nope", false)
	require.Error(t, err)
	assert.Equal(t, igniserr.KindNotBound, igniserr.KindOf(err))
}

func TestGetMissingOptionalBindingReturnsNil(t *testing.T) {
	c := container.New()
	v, err := c.Get("nope", true)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestSingletonCachesFirstInstance(t *testing.T) {
	c := container.New()
	var constructions int32
	c.Bind("svc").ToClass(func() any {
		atomic.AddInt32(&constructions, 1)
		return &struct{ N int }{N: 1}
	}).InSingletonScope()

	first, err := c.Get("svc", false)
	require.NoError(t, err)
	second, err := c.Get("svc", false)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.EqualValues(t, 1, constructions)
}

func TestConcurrentSingletonGetConstructsExactlyOnce(t *testing.T) {
	c := container.New()
	var constructions int32
	c.Bind("svc").ToClass(func() any {
		atomic.AddInt32(&constructions, 1)
		return &struct{}{}
	}).InSingletonScope()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = c.Get("svc", false)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, constructions)
}

func TestTransientCreatesNewInstanceEveryGet(t *testing.T) {
	c := container.New()
	c.Bind("svc").ToClass(func() any { return &struct{}{} })

	first, _ := c.Get("svc", false)
	second, _ := c.Get("svc", false)
	assert.NotSame(t, first, second)
}

func TestCyclicProviderRaisesCyclicBinding(t *testing.T) {
	c := container.New()
	c.Bind("a").ToProvider(func(cc container.Resolver) (any, error) {
		return cc.Get("b", false)
	})
	c.Bind("b").ToProvider(func(cc container.Resolver) (any, error) {
		return cc.Get("a", false)
	})

	_, err := c.Get("a", false)
	require.Error(t, err)
	assert.Equal(t, igniserr.KindCyclicBinding, igniserr.KindOf(err))
}

func TestLazyProviderBreaksCycle(t *testing.T) {
	c := container.New()
	type lazy struct{ resolve func() (any, error) }
	c.Bind("a").ToProvider(func(cc container.Resolver) (any, error) {
		return &lazy{resolve: func() (any, error) { return cc.Get("b", false) }}, nil
	})
	c.Bind("b").ToProvider(func(cc container.Resolver) (any, error) {
		return "b-value", nil
	})

	a, err := c.Get("a", false)
	require.NoError(t, err)
	val, err := a.(*lazy).resolve()
	require.NoError(t, err)
	assert.Equal(t, "b-value", val)
}

func TestFindByTag(t *testing.T) {
	c := container.New()
	c.Bind("one").ToValue(1).Tag("numbers")
	c.Bind("two").ToValue(2).Tag("numbers")
	c.Bind("three").ToValue("three")

	tagged := c.FindByTag("numbers")
	assert.Len(t, tagged, 2)
}

type injected struct {
	Dep string `ignis:"dep"`
	Opt string `ignis:"missing,optional"`
}

func TestInstantiateResolvesTaggedFields(t *testing.T) {
	c := container.New()
	c.Bind("dep").ToValue("hello")

	dst := &injected{}
	require.NoError(t, c.Instantiate(dst))
	assert.Equal(t, "hello", dst.Dep)
	assert.Equal(t, "", dst.Opt)
}
