package capture

import (
	"context"
	"fmt"
	"image"
	"math"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/multi"
	multiqr "github.com/makiuchi-d/gozxing/multi/qrcode"

	"github.com/BrandonDHaskell/Portunus/monitor/internal/portunus/types"
)

// QRDecoder finds every QR badge in an image.
type QRDecoder struct {
	reader multi.MultipleBarcodeReader
}

func NewQRDecoder() *QRDecoder {
	return &QRDecoder{reader: multiqr.NewQRCodeMultiReader()}
}

// Decode returns one detection per distinct badge payload in img.  Failing
// to find or read any symbol is the normal empty result, not an error.
func (d *QRDecoder) Decode(img image.Image) ([]types.Detection, error) {
	if img == nil {
		return nil, nil
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, fmt.Errorf("qr bitmap: %w", err)
	}

	results, err := d.reader.DecodeMultiple(bmp, nil)
	if err != nil {
		return nil, nil
	}

	out := make([]types.Detection, 0, len(results))
	seen := make(map[string]bool, len(results))
	for _, res := range results {
		if res == nil || seen[res.GetText()] {
			continue
		}
		seen[res.GetText()] = true
		out = append(out, types.Detection{
			Key:    res.GetText(),
			Region: boundingBox(res.GetResultPoints()),
		})
	}
	return out, nil
}

func boundingBox(pts []gozxing.ResultPoint) image.Rectangle {
	if len(pts) == 0 {
		return image.Rectangle{}
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range pts {
		minX = math.Min(minX, p.GetX())
		minY = math.Min(minY, p.GetY())
		maxX = math.Max(maxX, p.GetX())
		maxY = math.Max(maxY, p.GetY())
	}
	return image.Rect(int(minX), int(minY), int(math.Ceil(maxX)), int(math.Ceil(maxY)))
}

// BadgeSource is the badge detection channel.
type BadgeSource struct {
	decoder *QRDecoder
}

func NewBadgeSource(decoder *QRDecoder) *BadgeSource {
	return &BadgeSource{decoder: decoder}
}

func (s *BadgeSource) Channel() string { return types.ChannelBadge }

func (s *BadgeSource) Detect(_ context.Context, frame types.Frame) ([]types.Detection, error) {
	return s.decoder.Decode(frame.Image)
}
