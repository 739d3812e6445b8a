package vmx

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIRQString(t *testing.T) {
	assert.Equal(t, "none", IRQ(0).String())
	assert.Equal(t, "hard", IRQHard.String())
	assert.Equal(t, "hard|nmi|tpr", (IRQTPR | IRQNMI | IRQHard).String())
}

func TestParseIRQ(t *testing.T) {
	tests := []struct {
		in      string
		want    IRQ
		wantErr bool
	}{
		{in: "", want: 0},
		{in: "none", want: 0},
		{in: "hard", want: IRQHard},
		{in: "NMI | init", want: IRQNMI | IRQInit},
		{in: "sipi|poll|tpr", want: IRQSIPI | IRQPoll | IRQTPR},
		{in: "smi", wantErr: true},
		{in: "hard|", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseIRQ(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			back, err := ParseIRQ(got.String())
			require.NoError(t, err)
			assert.Equal(t, got, back)
		})
	}
}

func TestIRQMask(t *testing.T) {
	var m IRQMask

	assert.Equal(t, IRQ(0), m.Raise(IRQHard))
	assert.Equal(t, IRQHard, m.Raise(IRQNMI))
	assert.True(t, m.Pending(IRQNMI|IRQInit))
	assert.False(t, m.Pending(IRQInit))

	assert.True(t, m.TestAndClear(IRQNMI))
	assert.False(t, m.TestAndClear(IRQNMI))
	assert.Equal(t, IRQHard, m.Load())

	assert.Equal(t, IRQHard, m.Clear(IRQHard|IRQSIPI))
	assert.Zero(t, m.Load())
}

func TestIRQMaskConcurrentRaise(t *testing.T) {
	var m IRQMask
	flags := []IRQ{IRQHard, IRQNMI, IRQInit, IRQSIPI, IRQPoll, IRQTPR}

	var wg sync.WaitGroup
	for _, f := range flags {
		wg.Add(1)
		go func(f IRQ) {
			defer wg.Done()
			for range 1000 {
				m.Raise(f)
			}
		}(f)
	}
	wg.Wait()

	assert.Equal(t, IRQHard|IRQNMI|IRQInit|IRQSIPI|IRQPoll|IRQTPR, m.Load())
}

func TestIRQMaskTestAndClearDeliversOnce(t *testing.T) {
	const rounds = 500

	var m IRQMask
	var delivered, raised int
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range rounds {
			for m.Pending(IRQHard) {
			}
			m.Raise(IRQHard)
			raised++
		}
	}()

	for delivered < rounds {
		if m.TestAndClear(IRQHard) {
			delivered++
		}
	}
	wg.Wait()

	assert.Equal(t, raised, delivered)
	assert.False(t, m.Pending(IRQHard))
}
