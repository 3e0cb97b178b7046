// Package pitch estimates the fundamental frequency of a mono signal over
// time and segments the resulting track into discrete notes.
//
// Estimation works frame by frame: each frame is Hann-windowed, its
// autocorrelation computed via forward/inverse FFT (multiplying the
// spectrum by its complex conjugate), and the dominant lag within the
// detectable band located with parabolic interpolation. The normalized
// peak height serves as a clarity measure for voicing decisions.
package pitch

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"github.com/andrepxx/go-dsp-guitar/fft"

	"github.com/fretless/tabscribe/internal/music"
)

const (
	// FrameLength is the analysis window size in samples.
	FrameLength = 2048
	// HopLength is the spacing between consecutive analysis frames.
	HopLength = 512

	// silenceRMS is the level below which a frame is considered unvoiced.
	silenceRMS = 1e-4

	// medianKernel is the width of the median filter applied to the
	// fundamental track.
	medianKernel = 5
)

// Detector estimates per-frame fundamentals within a configured band.
type Detector struct {
	sampleRate int
	fmin       float64
	fmax       float64

	transform fft.FourierTransform
	window    []float64
	fftSize   int
	bufCorr   []float64
	bufFFT    []complex128
}

// NewDetector creates a detector for the given sample rate. fminNote and
// fmaxNote bound the detectable band, e.g. "E2".."E6" for guitar.
func NewDetector(sampleRate int, fminNote, fmaxNote string) (*Detector, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("pitch: sample rate must be > 0, got %d", sampleRate)
	}

	fmin, err := music.NoteToHz(fminNote)
	if err != nil {
		return nil, fmt.Errorf("pitch: fmin: %w", err)
	}
	fmax, err := music.NoteToHz(fmaxNote)
	if err != nil {
		return nil, fmt.Errorf("pitch: fmax: %w", err)
	}
	if fmin >= fmax {
		return nil, fmt.Errorf("pitch: fmin %q must be below fmax %q", fminNote, fmaxNote)
	}
	if fmax > float64(sampleRate)/2 {
		return nil, fmt.Errorf("pitch: fmax %q exceeds the Nyquist frequency for %d Hz", fmaxNote, sampleRate)
	}

	fftSize64, _ := fft.NextPowerOfTwo(uint64(2 * FrameLength))
	fftSize := int(fftSize64)

	return &Detector{
		sampleRate: sampleRate,
		fmin:       fmin,
		fmax:       fmax,
		transform:  fft.CreateFourierTransform(),
		window:     Hann(FrameLength),
		fftSize:    fftSize,
		bufCorr:    make([]float64, fftSize),
		bufFFT:     make([]complex128, fftSize),
	}, nil
}

// SampleRate returns the rate the detector was configured for.
func (d *Detector) SampleRate() int {
	return d.sampleRate
}

// Track computes the fundamental frequency and clarity for each analysis
// frame. Unvoiced frames carry NaN in the frequency track and zero
// clarity. The frequency track is median-smoothed over voiced frames.
func (d *Detector) Track(samples []float64) (f0, clarity []float64, err error) {
	if len(samples) < FrameLength {
		return nil, nil, nil
	}

	nFrames := 1 + (len(samples)-FrameLength)/HopLength
	f0 = make([]float64, nFrames)
	clarity = make([]float64, nFrames)

	for i := 0; i < nFrames; i++ {
		frame := samples[i*HopLength : i*HopLength+FrameLength]
		freq, c, ferr := d.analyzeFrame(frame)
		if ferr != nil {
			return nil, nil, ferr
		}
		f0[i] = freq
		clarity[i] = c
	}

	medianSmooth(f0, medianKernel)

	return f0, clarity, nil
}

// FrameTimes returns the time in seconds of each of n analysis frames.
func (d *Detector) FrameTimes(n int) []float64 {
	times := make([]float64, n)
	for i := range times {
		times[i] = float64(i*HopLength) / float64(d.sampleRate)
	}
	return times
}

// analyzeFrame estimates the fundamental of one frame. Returns NaN
// frequency and zero clarity for unvoiced frames.
func (d *Detector) analyzeFrame(frame []float64) (float64, float64, error) {
	var energy float64
	for _, s := range frame {
		energy += s * s
	}
	if math.Sqrt(energy/float64(len(frame))) < silenceRMS {
		return math.NaN(), 0, nil
	}

	for i, s := range frame {
		d.bufCorr[i] = s * d.window[i]
	}
	fft.ZeroFloat(d.bufCorr[len(frame):])

	if err := d.transform.RealFourier(d.bufCorr, d.bufFFT, fft.SCALING_DEFAULT); err != nil {
		return 0, 0, fmt.Errorf("pitch: forward FFT: %w", err)
	}

	for i, elem := range d.bufFFT {
		d.bufFFT[i] = elem * cmplx.Conj(elem)
	}

	if err := d.transform.RealInverseFourier(d.bufFFT, d.bufCorr, fft.SCALING_DEFAULT); err != nil {
		return 0, 0, fmt.Errorf("pitch: inverse FFT: %w", err)
	}

	r0 := d.bufCorr[0]
	if r0 <= 0 {
		return math.NaN(), 0, nil
	}

	minLag := int(float64(d.sampleRate)/d.fmax + 0.5)
	if minLag < 2 {
		minLag = 2
	}
	maxLag := int(float64(d.sampleRate)/d.fmin + 0.5)
	if maxLag > FrameLength-2 {
		maxLag = FrameLength - 2
	}
	if minLag >= maxLag {
		return math.NaN(), 0, nil
	}

	peakLag := minLag
	peakVal := math.Inf(-1)
	for lag := minLag; lag <= maxLag; lag++ {
		if d.bufCorr[lag] > peakVal {
			peakVal = d.bufCorr[lag]
			peakLag = lag
		}
	}
	if peakVal <= 0 {
		return math.NaN(), 0, nil
	}

	// Parabolic interpolation around the peak for sub-sample lag accuracy.
	left := d.bufCorr[peakLag-1]
	right := d.bufCorr[peakLag+1]
	denom := 2*peakVal - left - right
	shift := 0.0
	if denom != 0 {
		shift = 0.5 * (right - left) / denom
	}
	if shift < -0.5 {
		shift = -0.5
	} else if shift > 0.5 {
		shift = 0.5
	}

	lag := float64(peakLag) + shift
	freq := float64(d.sampleRate) / lag

	// Normalize the peak against r(0), compensating the Hann window's own
	// autocorrelation so a clean periodic signal scores near 1 regardless
	// of lag.
	x := float64(peakLag) / float64(FrameLength)
	taper := (1-x)*(2.0/3.0+math.Cos(2*math.Pi*x)/3.0) + math.Sin(2*math.Pi*x)/(2*math.Pi)
	if taper < 0.1 {
		taper = 0.1
	}
	clarity := peakVal / (r0 * taper)
	if clarity > 1 {
		clarity = 1
	} else if clarity < 0 {
		clarity = 0
	}

	return freq, clarity, nil
}

// Hann returns an N-point symmetric Hann window. It is shared with the
// spectral-feature code so both analysis paths window identically.
func Hann(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

// medianSmooth applies an in-place median filter to the voiced portion of
// the track. NaN entries are filled with the track median for filtering
// and restored to NaN afterwards.
func medianSmooth(track []float64, kernel int) {
	if len(track) == 0 {
		return
	}
	if kernel%2 == 0 {
		kernel++
	}

	finite := make([]float64, 0, len(track))
	for _, v := range track {
		if !math.IsNaN(v) {
			finite = append(finite, v)
		}
	}
	if len(finite) == 0 {
		return
	}
	fill := median(finite)

	filled := make([]float64, len(track))
	for i, v := range track {
		if math.IsNaN(v) {
			filled[i] = fill
		} else {
			filled[i] = v
		}
	}

	half := kernel / 2
	win := make([]float64, 0, kernel)
	for i := range track {
		if math.IsNaN(track[i]) {
			continue
		}
		win = win[:0]
		for j := i - half; j <= i+half; j++ {
			if j >= 0 && j < len(filled) {
				win = append(win, filled[j])
			}
		}
		track[i] = median(win)
	}
}

// median returns the middle value of xs. xs is not modified.
func median(xs []float64) float64 {
	tmp := make([]float64, len(xs))
	copy(tmp, xs)
	sort.Float64s(tmp)
	if len(tmp)%2 == 1 {
		return tmp[len(tmp)/2]
	}
	return (tmp[len(tmp)/2-1] + tmp[len(tmp)/2]) / 2
}
