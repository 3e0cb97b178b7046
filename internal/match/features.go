// Package match searches synthesis parameters so a rendered tab best
// resembles the source recording. Similarity blends a chroma comparison
// (what pitches sound) with an onset-envelope correlation (when they
// sound).
package match

import (
	"math"
	"math/cmplx"

	"github.com/andrepxx/go-dsp-guitar/fft"

	"github.com/fretless/tabscribe/internal/music"
	"github.com/fretless/tabscribe/internal/pitch"
)

// Frame geometry matches the pitch tracker so both analysis paths see the
// signal the same way.
const (
	frameLength = pitch.FrameLength
	hopLength   = pitch.HopLength
)

// spectrogram returns per-frame magnitude spectra (bins 1..N/2) of a mono
// signal, Hann-windowed.
func spectrogram(samples []float64) ([][]float64, error) {
	if len(samples) < frameLength {
		return nil, nil
	}

	window := pitch.Hann(frameLength)
	ft := fft.CreateFourierTransform()
	bufReal := make([]float64, frameLength)
	bufCplx := make([]complex128, frameLength)

	nFrames := 1 + (len(samples)-frameLength)/hopLength
	mags := make([][]float64, nFrames)

	for f := 0; f < nFrames; f++ {
		frame := samples[f*hopLength : f*hopLength+frameLength]
		for i, s := range frame {
			bufReal[i] = s * window[i]
		}
		if err := ft.RealFourier(bufReal, bufCplx, fft.SCALING_DEFAULT); err != nil {
			return nil, err
		}

		row := make([]float64, frameLength/2)
		for k := 1; k <= frameLength/2; k++ {
			row[k-1] = cmplx.Abs(bufCplx[k])
		}
		mags[f] = row
	}

	return mags, nil
}

// chromaFold sums per-frame spectral magnitude into 12 pitch classes.
func chromaFold(mags [][]float64, rate int) [][12]float64 {
	chroma := make([][12]float64, len(mags))
	for f, row := range mags {
		for k, mag := range row {
			freq := float64(k+1) * float64(rate) / frameLength
			m, err := music.HzToMIDI(freq)
			if err != nil {
				continue
			}
			pc := ((int(math.Round(m)) % 12) + 12) % 12
			chroma[f][pc] += mag
		}
	}
	return chroma
}

// onsetEnvelope computes positive spectral flux between consecutive
// frames.
func onsetEnvelope(mags [][]float64) []float64 {
	if len(mags) < 2 {
		return nil
	}
	env := make([]float64, len(mags)-1)
	for f := 1; f < len(mags); f++ {
		var flux float64
		for k := range mags[f] {
			if d := mags[f][k] - mags[f-1][k]; d > 0 {
				flux += d
			}
		}
		env[f-1] = flux
	}
	return env
}

// cosineMean averages the per-frame cosine similarity of two chroma
// sequences over their common length.
func cosineMean(a, b [][12]float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}

	var sum float64
	for f := 0; f < n; f++ {
		var dot, na, nb float64
		for pc := 0; pc < 12; pc++ {
			dot += a[f][pc] * b[f][pc]
			na += a[f][pc] * a[f][pc]
			nb += b[f][pc] * b[f][pc]
		}
		sum += dot / (math.Sqrt(na)*math.Sqrt(nb) + 1e-8)
	}
	return sum / float64(n)
}

// pearson computes the correlation coefficient of two equal-prefix
// sequences; zero when either side is (nearly) constant.
func pearson(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}

	var meanA, meanB float64
	for i := 0; i < n; i++ {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= float64(n)
	meanB /= float64(n)

	var cov, varA, varB float64
	for i := 0; i < n; i++ {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}

	stdA := math.Sqrt(varA / float64(n))
	stdB := math.Sqrt(varB / float64(n))
	if stdA <= 1e-6 || stdB <= 1e-6 {
		return 0
	}
	return cov / float64(n) / (stdA * stdB)
}

// Similarity scores how alike two mono signals sound, roughly in [0, 1].
// The blend is 0.75 chroma similarity + 0.25 onset correlation.
func Similarity(original, rendered []float64, rate int) (float64, error) {
	n := len(original)
	if len(rendered) < n {
		n = len(rendered)
	}
	if n <= frameLength {
		return 0, nil
	}

	a := normalizePeak(original[:n])
	b := normalizePeak(rendered[:n])

	magsA, err := spectrogram(a)
	if err != nil {
		return 0, err
	}
	magsB, err := spectrogram(b)
	if err != nil {
		return 0, err
	}

	chromaSim := cosineMean(chromaFold(magsA, rate), chromaFold(magsB, rate))

	onsetSim := pearson(onsetEnvelope(magsA), onsetEnvelope(magsB))
	if math.IsNaN(onsetSim) {
		onsetSim = 0
	} else if onsetSim > 1 {
		onsetSim = 1
	} else if onsetSim < -1 {
		onsetSim = -1
	}

	return 0.75*chromaSim + 0.25*onsetSim, nil
}

// normalizePeak returns a copy scaled so the largest magnitude is 1.
func normalizePeak(samples []float64) []float64 {
	peak := 0.0
	for _, s := range samples {
		if v := math.Abs(s); v > peak {
			peak = v
		}
	}
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s / (peak + 1e-8)
	}
	return out
}
