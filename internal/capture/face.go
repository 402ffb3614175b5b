package capture

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/BrandonDHaskell/Portunus/monitor/internal/portunus/types"
)

// DefaultFaceThreshold is the LBPH distance above which a match is rejected.
// Lower is more confident.
const DefaultFaceThreshold = 70.0

// FaceMatch is one classified face region.
type FaceMatch struct {
	Label      string
	Confidence float64
	Region     image.Rectangle
}

// FaceClassifier labels every face found in a frame.  Training happens
// elsewhere; the monitor only consumes predictions.
type FaceClassifier interface {
	Classify(ctx context.Context, frame types.Frame) ([]FaceMatch, error)
}

// FaceSource is the face detection channel.  Matches at or above the
// threshold are passed on as rejected so they can be drawn as unknown.
type FaceSource struct {
	classifier FaceClassifier
	threshold  float64
}

func NewFaceSource(c FaceClassifier, threshold float64) *FaceSource {
	if threshold <= 0 {
		threshold = DefaultFaceThreshold
	}
	return &FaceSource{classifier: c, threshold: threshold}
}

func (s *FaceSource) Channel() string { return types.ChannelFace }

func (s *FaceSource) Detect(ctx context.Context, frame types.Frame) ([]types.Detection, error) {
	matches, err := s.classifier.Classify(ctx, frame)
	if err != nil {
		return nil, err
	}
	out := make([]types.Detection, 0, len(matches))
	for _, m := range matches {
		out = append(out, types.Detection{
			Key:        m.Label,
			Region:     m.Region,
			Confidence: m.Confidence,
			Rejected:   m.Confidence >= s.threshold,
		})
	}
	return out, nil
}

// SidecarClassifier reads predictions written next to each frame by an
// external recognizer: frame_0001.png -> frame_0001.faces.yaml
//
//	faces:
//	  - label: ANA_LOPEZ
//	    confidence: 42.5
//	    box: [x, y, w, h]
//
// A frame without a side file has no faces.
type SidecarClassifier struct{}

type sidecarFile struct {
	Faces []struct {
		Label      string  `yaml:"label"`
		Confidence float64 `yaml:"confidence"`
		Box        []int   `yaml:"box"`
	} `yaml:"faces"`
}

func SidecarPath(framePath string) string {
	return strings.TrimSuffix(framePath, filepath.Ext(framePath)) + ".faces.yaml"
}

func (SidecarClassifier) Classify(_ context.Context, frame types.Frame) ([]FaceMatch, error) {
	if frame.Path == "" {
		return nil, nil
	}

	b, err := os.ReadFile(SidecarPath(frame.Path))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read face sidecar: %w", err)
	}

	var f sidecarFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse face sidecar %s: %w", SidecarPath(frame.Path), err)
	}

	out := make([]FaceMatch, 0, len(f.Faces))
	for _, fc := range f.Faces {
		m := FaceMatch{Label: fc.Label, Confidence: fc.Confidence}
		if len(fc.Box) == 4 {
			m.Region = image.Rect(fc.Box[0], fc.Box[1], fc.Box[0]+fc.Box[2], fc.Box[1]+fc.Box[3])
		}
		out = append(out, m)
	}
	return out, nil
}
