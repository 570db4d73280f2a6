// Package geometry models the picture-frame boundary used to mask and crop
// artwork footage.
//
// A CalibrationRegion is measured once against a base resolution. Scale maps
// it onto any actual resolution by scaling each axis independently and
// truncating, so a region calibrated on a 737x883 photo applies to a 1474x1766
// video of the same frame:
//
//	region := geometry.Scale(calib, geometry.Size{Width: 1474, Height: 1766})
//	mask := geometry.NewMask(region, size)
//	if !mask.Inside(x, y) {
//	    // candidate for background removal
//	}
//
// Containment uses a half-open convention for both shapes: left and top
// edges are inside, right and bottom edges are outside. NewMask rasterises
// a region by scanline spans and always agrees with Region.Contains.
package geometry
