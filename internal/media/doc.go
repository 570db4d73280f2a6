// Package media decodes, encodes and crops still frames.
//
// Codec is the still-image boundary of the pipeline. Decoding goes through
// imaging (with golang.org/x/image registering WebP, BMP and TIFF) and always
// yields *image.NRGBA. Encoding picks the format from the destination's
// extension. Cropped stills use libvips when InitVips has succeeded and fall
// back to imaging otherwise.
package media
