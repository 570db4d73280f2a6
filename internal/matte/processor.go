package matte

import (
	"image"
	"sync"

	"framecut/internal/calibration"
	"framecut/internal/geometry"
	"framecut/internal/metrics"
)

// maxCachedMasks bounds the mask cache. A batch rarely has more than a couple
// of distinct resolutions per orientation.
const maxCachedMasks = 16

type maskKey struct {
	orientation geometry.Orientation
	size        geometry.Size
}

// Processor applies the background rule to whole frames using masks built
// from a calibration preset. Masks are cached per orientation and resolution
// so every frame of a video, and every input sharing a resolution, reuses
// the same mask. Safe for concurrent use.
type Processor struct {
	preset    calibration.Preset
	threshold Threshold

	mu    sync.Mutex
	masks map[maskKey]*geometry.Mask
}

// NewProcessor creates a processor for the given preset and threshold.
func NewProcessor(preset calibration.Preset, threshold Threshold) *Processor {
	return &Processor{
		preset:    preset,
		threshold: threshold,
		masks:     make(map[maskKey]*geometry.Mask),
	}
}

// Threshold returns the white threshold in use.
func (p *Processor) Threshold() Threshold {
	return p.threshold
}

// Region returns the preset region for the size's orientation, scaled to it.
func (p *Processor) Region(size geometry.Size) (geometry.Region, geometry.Orientation) {
	o := geometry.OrientationOf(size)
	return geometry.Scale(p.preset.For(o), size), o
}

// Mask returns the cached mask for a frame size, building it on first use.
func (p *Processor) Mask(size geometry.Size) *geometry.Mask {
	key := maskKey{orientation: geometry.OrientationOf(size), size: size}

	p.mu.Lock()
	defer p.mu.Unlock()

	if m, ok := p.masks[key]; ok {
		metrics.MaskCacheLookups.WithLabelValues("hit").Inc()
		return m
	}
	metrics.MaskCacheLookups.WithLabelValues("miss").Inc()

	if len(p.masks) >= maxCachedMasks {
		clear(p.masks)
	}
	region, _ := p.Region(size)
	m := geometry.NewMask(region, size)
	p.masks[key] = m
	return m
}

// ProcessFrame clears white backdrop outside the frame region in place and
// returns the number of pixels made transparent.
func (p *Processor) ProcessFrame(img *image.NRGBA) (int, error) {
	b := img.Bounds()
	mask := p.Mask(geometry.Size{Width: b.Dx(), Height: b.Dy()})
	n, err := Apply(img, mask, p.threshold)
	if err != nil {
		return 0, err
	}
	metrics.PixelsClearedTotal.Add(float64(n))
	return n, nil
}
