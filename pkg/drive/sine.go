// Package drive provides loop controllers generating stimulation
// patterns.
package drive

import (
	"math"
	"sort"

	"github.com/golang/glog"

	"github.com/robotalks/fes.go/pkg/fes"
	fx "github.com/robotalks/fes.go/pkg/framework"
)

// Target is the part of a Stimulator a pattern drives.
type Target interface {
	SetAmplitudes(map[string]uint8) error
	Update() error
}

// Sine modulates the amplitude of each channel around its base value:
// base + depth*sin(t), t being the seconds since the loop started.
type Sine struct {
	Target Target
	Base   map[string]uint8
	Depth  float64
	// Rate is the angular rate in rad/s, 1 if zero.
	Rate float64
}

// DefaultBase assigns decreasing base amplitudes to channels, 40 mA for
// the first and 10 mA less for each next one, down to Depth.
func DefaultBase(channels []*fes.Channel, depth float64) map[string]uint8 {
	base := make(map[string]uint8, len(channels))
	for n, ch := range channels {
		v := 40 - 10*n
		if v < int(depth) {
			v = int(depth)
		}
		base[ch.Name()] = uint8(v)
	}
	return base
}

// Amplitudes computes the amplitudes at t seconds.
func (s *Sine) Amplitudes(t float64) map[string]uint8 {
	rate := s.Rate
	if rate == 0 {
		rate = 1
	}
	offset := int(s.Depth * math.Sin(rate*t))
	values := make(map[string]uint8, len(s.Base))
	for name, base := range s.Base {
		v := int(base) + offset
		switch {
		case v < 0:
			v = 0
		case v > math.MaxUint8:
			v = math.MaxUint8
		}
		values[name] = uint8(v)
	}
	return values
}

// Control implements framework.Controller.
func (s *Sine) Control(tc fx.TickContext) error {
	values := s.Amplitudes(tc.Elapsed().Seconds())
	if glog.V(4) {
		names := make([]string, 0, len(values))
		for name := range values {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			glog.Infof("tick %d: %s amp=%d", tc.Tick(), name, values[name])
		}
	}
	if err := s.Target.SetAmplitudes(values); err != nil {
		return err
	}
	return s.Target.Update()
}
