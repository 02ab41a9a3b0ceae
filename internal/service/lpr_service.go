package service

import (
	"apartment_parking/internal/domain"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/rs/zerolog/log"
)

// ErrLPRDisabled is returned when plate scanning is requested without a recognition backend.
var ErrLPRDisabled = errors.New("licence plate recognition is not enabled")

// TextDetector is the part of the Rekognition client used here.
type TextDetector interface {
	DetectText(ctx context.Context, params *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
}

var (
	// State code, district, optional series, four digits: KA01AB1234, DL3C1234.
	statePlateRegex = regexp.MustCompile(`^[A-Z]{2}[0-9]{1,2}[A-Z]{0,3}[0-9]{4}$`)
	// Bharat series: 22BH1234AB.
	bharatPlateRegex = regexp.MustCompile(`^[0-9]{2}BH[0-9]{4}[A-Z]{1,2}$`)
	plateNoise       = strings.NewReplacer(" ", "", "-", "", ".", "")
)

func normalizePlate(text string) string {
	return strings.ToUpper(plateNoise.Replace(text))
}

func isPlate(text string) bool {
	return statePlateRegex.MatchString(text) || bharatPlateRegex.MatchString(text)
}

type LPRService struct {
	detector TextDetector
	visitors *VisitorService
}

func NewLPRService(detector TextDetector, visitors *VisitorService) *LPRService {
	return &LPRService{detector: detector, visitors: visitors}
}

// RecognizePlate picks the most confident detected text that looks like a
// licence plate.
func (s *LPRService) RecognizePlate(ctx context.Context, imageBytes []byte) (string, float32, error) {
	if s.detector == nil {
		return "", 0, ErrLPRDisabled
	}

	result, err := s.detector.DetectText(ctx, &rekognition.DetectTextInput{
		Image: &types.Image{Bytes: imageBytes},
	})
	if err != nil {
		return "", 0, fmt.Errorf("rekognition DetectText: %w", err)
	}
	log.Debug().Int("detections", len(result.TextDetections)).Msg("rekognition returned text")

	var best string
	var maxConfidence float32
	var seen []string
	for _, d := range result.TextDetections {
		if d.Type != types.TextTypesLine && d.Type != types.TextTypesWord {
			continue
		}
		if d.DetectedText == nil || d.Confidence == nil {
			continue
		}
		txt := normalizePlate(*d.DetectedText)
		seen = append(seen, txt)
		if isPlate(txt) && *d.Confidence > maxConfidence {
			maxConfidence = *d.Confidence
			best = txt
		}
	}

	if best == "" {
		return "", 0, fmt.Errorf("%w: no licence plate found in image (text: %s)", ErrValidation, strings.Join(seen, ", "))
	}
	log.Info().Str("plate", best).Float32("confidence", maxConfidence).Msg("licence plate recognized")
	return best, maxConfidence, nil
}

// ScanUnplanned reads the plate from a gate snapshot and registers the
// vehicle as an unplanned visitor.
func (s *LPRService) ScanUnplanned(ctx context.Context, dto domain.PlateScanDTO) (*domain.PlateScanResult, error) {
	imageBytes, err := decodeImage(dto.ImageBase64)
	if err != nil {
		return nil, err
	}
	plate, confidence, err := s.RecognizePlate(ctx, imageBytes)
	if err != nil {
		return nil, err
	}

	v, err := s.visitors.RegisterUnplanned(ctx, domain.UnplannedVisitorDTO{
		ResidentID:    dto.ResidentID,
		VisitorName:   dto.VisitorName,
		VehicleNumber: plate,
		VehicleType:   dto.VehicleType,
	})
	if err != nil {
		return nil, err
	}
	return &domain.PlateScanResult{DetectedPlate: plate, Confidence: confidence, Visitor: *v}, nil
}

func decodeImage(encoded string) ([]byte, error) {
	if i := strings.Index(encoded, ","); strings.HasPrefix(encoded, "data:") && i > 0 {
		encoded = encoded[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: image is not valid base64", ErrValidation)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: image is empty", ErrValidation)
	}
	return data, nil
}
