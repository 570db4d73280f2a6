// Package calibration holds the measured frame boundaries for each mode and
// orientation.
//
// Two presets exist per mode. Masking presets are quadrilaterals because the
// photographed frame is slightly skewed; crop presets are rectangles. Both are
// measured against a base resolution (883x737 wide, 737x883 tall) and scaled
// per input by the geometry package.
//
// The defaults are compiled in. A YAML file can replace any subset of them:
//
//	mask:
//	  wide:
//	    base: {width: 883, height: 737}
//	    quad: [{x: 54, y: 61}, {x: 56, y: 668}, {x: 804, y: 668}, {x: 804, y: 61}]
//	crop:
//	  tall:
//	    base: {width: 737, height: 883}
//	    rect: {x: 54, y: 50, w: 629, h: 769}
package calibration
