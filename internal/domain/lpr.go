package domain

// PlateScanResult is returned after a licence plate was read from a gate image.
type PlateScanResult struct {
	DetectedPlate string  `json:"detected_plate"`
	Confidence    float32 `json:"confidence,omitempty"`
	Visitor       Visitor `json:"visitor"`
}
