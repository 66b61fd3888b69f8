package airband

import (
	"github.com/boondock/airband/dsp"
)

/*------------------------------------------------------------------
 *
 * Purpose:	Read-only status snapshot for the monitoring boundary.
 * 		Everything here is assembled from atomics and
 * 		lock-guarded copies; calling it never blocks the demod
 * 		path.
 *
 *----------------------------------------------------------------*/

// ChannelStatus is one channel's monitoring view.
type ChannelStatus struct {
	Frequency  int     `json:"frequency"`
	Label      string  `json:"label,omitempty"`
	Modulation string  `json:"modulation"`
	Indicator  string  `json:"indicator"`
	SignalDBFS float32 `json:"signal_dbfs"`
	NoiseDBFS  float32 `json:"noise_dbfs"`
	Active     int64   `json:"active_batches"`
	Bin        int     `json:"bin"`
	BaseBin    int     `json:"base_bin"`
}

// DeviceStatus is one device's monitoring view.
type DeviceStatus struct {
	Index          int             `json:"index"`
	State          string          `json:"state"`
	Mode           string          `json:"mode"`
	CenterFreq     int             `json:"center_freq"`
	SampleRate     int             `json:"sample_rate"`
	BufferBytes    int             `json:"buffer_bytes"`
	InputOverflows uint64          `json:"input_overflows"`
	OutputOverruns uint64          `json:"output_overruns"`
	Channels       []ChannelStatus `json:"channels"`
}

// Status snapshots the whole pipeline.
func (r *Radio) Status() []DeviceStatus {
	out := make([]DeviceStatus, 0, len(r.Devices))
	for _, dev := range r.Devices {
		info := dev.Input.Info()
		mode := "multichannel"
		if dev.Mode == ModeScan {
			mode = "scan"
		}
		ds := DeviceStatus{
			Index:          dev.Index,
			State:          dev.Input.State().String(),
			Mode:           mode,
			CenterFreq:     info.CenterFreq,
			SampleRate:     info.SampleRate,
			BufferBytes:    dev.Input.Buffer.Available(),
			InputOverflows: dev.Input.Overflows.Load(),
			OutputOverruns: dev.OutputOverruns.Load(),
		}
		for i, ch := range dev.Channels {
			f := ch.Freq()
			ds.Channels = append(ds.Channels, ChannelStatus{
				Frequency:  f.Frequency,
				Label:      f.Label,
				Modulation: f.Modulation.String(),
				Indicator:  string(ch.Indicator()),
				SignalDBFS: dsp.LevelToDBFS(f.Squelch.SignalLevel()),
				NoiseDBFS:  dsp.LevelToDBFS(f.Squelch.NoiseLevel()),
				Active:     f.ActiveCounter.Load(),
				Bin:        dev.Bin(i),
				BaseBin:    dev.BaseBin(i),
			})
		}
		out = append(out, ds)
	}
	return out
}

// SpectrumSnapshot returns device i's spectrum, or ok=false when the
// device does not exist or snapshots are disabled.
func (r *Radio) SpectrumSnapshot(i int) (mag []float32, counter uint64, ok bool) {
	if i < 0 || i >= len(r.Devices) {
		return nil, 0, false
	}
	sp := &r.Devices[i].Spectrum
	if !sp.Enabled {
		return nil, 0, false
	}
	mag, counter, _ = sp.Snapshot()
	return mag, counter, true
}
