package airband

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boondock/airband/output"
)

func TestTagQueueDropsOldestOnOverflow(t *testing.T) {
	var q TagQueue
	for i := 0; i < tagQueueDepth+4; i++ {
		q.Put(output.Tag{FreqIdx: i})
	}
	tags := q.Drain()
	require.Len(t, tags, tagQueueDepth)
	assert.Equal(t, 4, tags[0].FreqIdx, "oldest entries fall out first")
	assert.Equal(t, tagQueueDepth+3, tags[len(tags)-1].FreqIdx)

	assert.Empty(t, q.Drain())
}

func TestSpectrumSnapshotIsACopy(t *testing.T) {
	var s Spectrum
	s.magnitude = []float32{-10, -20, -30}

	mag, _, _ := s.Snapshot()
	mag[0] = 99

	again, _, _ := s.Snapshot()
	assert.Equal(t, float32(-10), again[0])
}

func TestChannelFreqSlots(t *testing.T) {
	p := Params{FFTSize: 64, FFTBatch: 8, WaveBatch: 100, AGCExtra: 20}
	ch := newTestChannel(p, ModAM, 1.0, 3)

	assert.Equal(t, 0, ch.FreqIdx())
	assert.Same(t, ch.Freqs[0], ch.Freq())

	ch.SetFreqIdx(2)
	assert.Same(t, ch.Freqs[2], ch.Freq())
}

func TestModulationString(t *testing.T) {
	assert.Equal(t, "am", ModAM.String())
	assert.Equal(t, "nfm", ModNFM.String())
}
