package pipeline

import (
	"framecut/internal/crop"
	"framecut/internal/filesystem"
	"framecut/internal/geometry"
	"framecut/internal/logging"
)

// maskImage clears the backdrop of a still and writes it as PNG.
func (p *Pipeline) maskImage(log logging.FileLogger, input, output string) (int, error) {
	img, err := p.codec.Decode(input)
	if err != nil {
		return 0, fail(input, DecodeFailure, err)
	}
	b := img.Bounds()
	size := geometry.Size{Width: b.Dx(), Height: b.Dy()}
	log.Info("%s, %s", size, geometry.OrientationOf(size))

	cleared, err := p.processor.ProcessFrame(img)
	if err != nil {
		return 0, fail(input, DecodeFailure, err)
	}

	out, err := filesystem.NewOutput(output)
	if err != nil {
		return 0, fail(input, FilesystemFailure, err)
	}
	if err := p.codec.Encode(out.Path(), img); err != nil {
		return 0, commit(out, input, fail(input, EncodeFailure, err))
	}
	log.Debug("%d pixels cleared", cleared)
	return cleared, commit(out, input, nil)
}

// cropImage crops a still to the frame's inner rectangle and writes JPEG.
func (p *Pipeline) cropImage(log logging.FileLogger, input, output string) error {
	size, err := p.codec.Dimensions(input)
	if err != nil {
		return fail(input, ProbeFailure, err)
	}
	rect, err := p.planCrop(input, size)
	if err != nil {
		return err
	}
	log.Info("%s, %s, crop %dx%d+%d+%d", size, geometry.OrientationOf(size), rect.Width, rect.Height, rect.X, rect.Y)

	out, err := filesystem.NewOutput(output)
	if err != nil {
		return fail(input, FilesystemFailure, err)
	}
	if err := p.codec.CropImage(input, out.Path(), rect); err != nil {
		return commit(out, input, fail(input, EncodeFailure, err))
	}
	return commit(out, input, nil)
}

// planCrop scales the crop preset for size and clips it to the frame.
func (p *Pipeline) planCrop(input string, size geometry.Size) (geometry.Rect, error) {
	preset := p.opts.Calibration.Crop.For(geometry.OrientationOf(size))
	rect, err := crop.Plan(preset, size)
	if err != nil {
		return geometry.Rect{}, fail(input, ConfigFailure, err)
	}
	rect, err = crop.Clip(rect, size)
	if err != nil {
		return geometry.Rect{}, fail(input, ConfigFailure, err)
	}
	return rect, nil
}
