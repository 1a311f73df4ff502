// Package wavelet implements the continuous wavelet transform used to split
// an acoustic-emission waveform into narrow frequency bands.
//
// The transform follows the integrated-wavelet formulation: the Morlet
// wavelet is integrated once on a fixed grid, resampled for each scale,
// convolved with the data and differentiated. Rows have the same length as
// the input and can be computed by direct convolution or through an FFT.
package wavelet
