package service

import (
	"apartment_parking/internal/domain"
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDetector struct {
	detections []types.TextDetection
	err        error
	calls      int
}

func (f *fakeDetector) DetectText(ctx context.Context, params *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &rekognition.DetectTextOutput{TextDetections: f.detections}, nil
}

func detection(text string, confidence float32) types.TextDetection {
	return types.TextDetection{
		DetectedText: aws.String(text),
		Confidence:   aws.Float32(confidence),
		Type:         types.TextTypesLine,
	}
}

func TestNormalizePlate(t *testing.T) {
	tests := []struct {
		in    string
		want  string
		plate bool
	}{
		{"ka 01 ab 1234", "KA01AB1234", true},
		{"DL-3C-1234", "DL3C1234", true},
		{"22 BH 1234 AB", "22BH1234AB", true},
		{"MH12.DE.1433", "MH12DE1433", true},
		{"INDIA", "INDIA", false},
		{"1234", "1234", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := normalizePlate(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.plate, isPlate(got))
		})
	}
}

func TestLPRService_RecognizePlate(t *testing.T) {
	ctx := context.Background()

	t.Run("picks the most confident plate", func(t *testing.T) {
		detector := &fakeDetector{detections: []types.TextDetection{
			detection("IND", 99),
			detection("KA 01 AB 1234", 80),
			detection("KA 01 AB 1284", 95),
		}}
		svc := NewLPRService(detector, nil)

		plate, confidence, err := svc.RecognizePlate(ctx, []byte("img"))
		require.NoError(t, err)
		assert.Equal(t, "KA01AB1284", plate)
		assert.Equal(t, float32(95), confidence)
	})

	t.Run("no plate in image", func(t *testing.T) {
		svc := NewLPRService(&fakeDetector{detections: []types.TextDetection{detection("WELCOME", 99)}}, nil)
		_, _, err := svc.RecognizePlate(ctx, []byte("img"))
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("backend error", func(t *testing.T) {
		svc := NewLPRService(&fakeDetector{err: errors.New("throttled")}, nil)
		_, _, err := svc.RecognizePlate(ctx, []byte("img"))
		assert.Error(t, err)
	})

	t.Run("disabled", func(t *testing.T) {
		svc := NewLPRService(nil, nil)
		_, _, err := svc.RecognizePlate(ctx, []byte("img"))
		assert.ErrorIs(t, err, ErrLPRDisabled)
	})
}

func TestLPRService_ScanUnplanned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	resident := f.resident(t, "r1@example.com")
	detector := &fakeDetector{detections: []types.TextDetection{detection("MH 12 DE 1433", 97)}}
	svc := NewLPRService(detector, f.visitors)

	result, err := svc.ScanUnplanned(ctx, domain.PlateScanDTO{
		ResidentID:  resident.ID,
		VisitorName: "Courier",
		VehicleType: domain.TwoWheeler,
		ImageBase64: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString([]byte("jpeg-bytes")),
	})
	require.NoError(t, err)
	assert.Equal(t, "MH12DE1433", result.DetectedPlate)
	assert.Equal(t, "MH12DE1433", result.Visitor.VehicleNumber)
	assert.Equal(t, domain.VisitorPending, result.Visitor.Status)

	_, err = svc.ScanUnplanned(ctx, domain.PlateScanDTO{ResidentID: resident.ID, ImageBase64: "%%%"})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 1, detector.calls)
}
