package heater

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHeaterStopWritesZero(t *testing.T) {
	var mu sync.Mutex
	var lastWrite float64
	read := func() (float64, error) { return 20, nil }
	write := func(p float64) error {
		mu.Lock()
		defer mu.Unlock()
		lastWrite = p
		return nil
	}
	h := New("extruder", 200, Coefficients{P: 0.05, I: 0.001, D: 0}, read, write, nil)
	h.Start()
	time.Sleep(10 * time.Millisecond)
	h.Stop()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0.0, lastWrite)
}

func TestHeaterWaitTimesOutWhenNeverFixed(t *testing.T) {
	read := func() (float64, error) { return 0, errors.New("no sensor") }
	write := func(p float64) error { return nil }
	h := New("bed", 100, Coefficients{P: 0.1, I: 0, D: 0}, read, write, nil)
	h.Start()
	defer h.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := h.Wait(ctx)
	assert.Error(t, err)
}
