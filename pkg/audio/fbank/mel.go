package fbank

import "math"

// hammingWindow generates a Hamming window of the given length.
func hammingWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.54 - 0.46*math.Cos(2*math.Pi*float64(i)/float64(n-1))
	}
	return w
}

// HzToMel converts frequency in Hz to the HTK mel scale.
func HzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// MelToHz converts a mel scale value back to Hz.
func MelToHz(mel float64) float64 {
	return 700.0 * (math.Pow(10.0, mel/2595.0) - 1.0)
}

// BandEdges returns the lower and upper edge in Hz of mel band m out of
// numMels over [lowFreq, highFreq].
func BandEdges(m, numMels int, lowFreq, highFreq float64) (float64, float64) {
	lowMel, highMel := HzToMel(lowFreq), HzToMel(highFreq)
	step := (highMel - lowMel) / float64(numMels+1)
	return MelToHz(lowMel + float64(m)*step), MelToHz(lowMel + float64(m+2)*step)
}

// melFilterBank builds the [numMels][fftSize/2+1] triangular filter matrix.
func melFilterBank(numMels, fftSize, sampleRate int, lowFreq, highFreq float64) [][]float64 {
	halfFFT := fftSize/2 + 1
	lowMel, highMel := HzToMel(lowFreq), HzToMel(highFreq)
	step := (highMel - lowMel) / float64(numMels+1)

	// numMels+2 mel points mapped to the nearest FFT bin.
	bins := make([]int, numMels+2)
	for i := range bins {
		hz := MelToHz(lowMel + float64(i)*step)
		bin := int(math.Round(hz * float64(fftSize) / float64(sampleRate)))
		bins[i] = min(bin, halfFFT-1)
		if i > 0 && bins[i] <= bins[i-1] {
			bins[i] = bins[i-1] + 1
		}
	}

	bank := make([][]float64, numMels)
	for m := range bank {
		filter := make([]float64, halfFFT)
		left, center, right := bins[m], bins[m+1], bins[m+2]
		for k := left; k < center && k < halfFFT; k++ {
			filter[k] = float64(k-left) / float64(center-left)
		}
		for k := center; k <= right && k < halfFFT; k++ {
			filter[k] = float64(right-k) / float64(right-center)
		}
		bank[m] = filter
	}
	return bank
}
