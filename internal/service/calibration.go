package service

// DefaultConfidenceDampening shrinks the synthesizer's self-reported
// confidence. Raw LLM confidences skew high; the damped value is what the
// persistence gate and the stored edge carry.
const DefaultConfidenceDampening = 0.9

type Calibrator struct {
	Dampening float64
}

func NewCalibrator() *Calibrator {
	return &Calibrator{Dampening: DefaultConfidenceDampening}
}

// Calibrate returns the adjusted confidence and a coarse interpretation label.
func (c *Calibrator) Calibrate(raw float64) (float64, string) {
	calibrated := raw * c.Dampening
	return calibrated, ConfidenceLabel(calibrated)
}

func ConfidenceLabel(confidence float64) string {
	switch {
	case confidence < 0.3:
		return "Uncertain / Likely Noise"
	case confidence < 0.6:
		return "Weak Evidence"
	case confidence < 0.85:
		return "Moderate Confidence"
	default:
		return "High Confidence"
	}
}
