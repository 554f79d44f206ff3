package metrics

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMakeKey_Consistency(t *testing.T) {
	labels := Labels{
		"service": "matching",
		"method":  "AddTask",
		"region":  "us-east",
	}

	key1 := makeKey("requests_total", labels)
	key2 := makeKey("requests_total", labels)

	assert.Equal(t, key1, key2, "makeKey should be consistent across calls")
}

func TestMakeKey_DifferentLabelOrder(t *testing.T) {
	// Even with maps (which iterate in random order), keys should be consistent.
	labels1 := Labels{"a": "1", "b": "2", "c": "3"}
	labels2 := Labels{"c": "3", "a": "1", "b": "2"}

	key1 := makeKey("metric", labels1)
	key2 := makeKey("metric", labels2)

	assert.Equal(t, key1, key2, "makeKey should produce same key regardless of insertion order")
}

func TestMakeKey_EmptyLabels(t *testing.T) {
	key := makeKey("metric", Labels{})
	assert.Equal(t, "metric", key)
}

func TestCounter_Operations(t *testing.T) {
	c := NewCounter("test_counter", nil)

	assert.Equal(t, int64(0), c.Value())

	c.Inc()
	assert.Equal(t, int64(1), c.Value())

	c.Add(5)
	assert.Equal(t, int64(6), c.Value())
}

func TestCounter_Concurrent(t *testing.T) {
	c := NewCounter("test_counter", nil)

	var wg sync.WaitGroup
	iterations := 1000

	for i := 0; i < iterations; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Inc()
		}()
	}

	wg.Wait()

	assert.Equal(t, int64(iterations), c.Value())
}

func TestGauge_Operations(t *testing.T) {
	g := NewGauge("test_gauge", nil)

	assert.Equal(t, 0.0, g.Value())

	g.Set(42.5)
	assert.Equal(t, 42.5, g.Value())

	g.Inc()
	assert.Equal(t, 43.5, g.Value())

	g.Dec()
	assert.Equal(t, 42.5, g.Value())

	g.Add(7.5)
	assert.Equal(t, 50.0, g.Value())
}

func TestGauge_FloatPrecision(t *testing.T) {
	g := NewGauge("test_gauge", nil)

	g.Set(0.123456789)
	assert.Equal(t, 0.123456789, g.Value())
}

func TestGauge_Concurrent(t *testing.T) {
	g := NewGauge("test_gauge", nil)

	var wg sync.WaitGroup
	iterations := 1000

	for i := 0; i < iterations; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			g.Inc()
		}()
		go func() {
			defer wg.Done()
			g.Dec()
		}()
	}

	wg.Wait()

	assert.Equal(t, 0.0, g.Value(), "equal Inc/Dec counts should cancel out")
}

func TestHistogram_Observe(t *testing.T) {
	h := NewHistogram("test_histogram", nil, nil)

	h.Observe(10)
	h.Observe(50)
	h.Observe(100)

	assert.Equal(t, int64(3), h.Count())
	assert.Equal(t, 160.0, h.Sum())
}

func TestRegistry_GetOrCreate(t *testing.T) {
	r := NewRegistry()

	labels := Labels{"method": "test"}

	c1 := r.Counter("requests", labels)
	c1.Inc()

	c2 := r.Counter("requests", labels)

	assert.Equal(t, int64(1), c2.Value(), "registry should return the same counter for the same name+labels")
}

func TestRegistry_DifferentLabels(t *testing.T) {
	r := NewRegistry()

	c1 := r.Counter("requests", Labels{"method": "get"})
	c2 := r.Counter("requests", Labels{"method": "post"})

	c1.Inc()
	c2.Add(5)

	assert.Equal(t, int64(1), c1.Value())
	assert.Equal(t, int64(5), c2.Value())
}
