// Package badge generates the printable QR badge handed to a registered
// identity.
package badge

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// DefaultSize is the badge edge length in pixels.
const DefaultSize = 256

// QRGenerator writes <Dir>/<code>.png encoding code.
type QRGenerator struct {
	Dir  string
	Size int
}

func NewQRGenerator(dir string) *QRGenerator {
	return &QRGenerator{Dir: dir, Size: DefaultSize}
}

// Generate writes the badge and returns its path.  An existing file for the
// same code is overwritten; its content would be identical.
func (g *QRGenerator) Generate(code string) (string, error) {
	if strings.TrimSpace(code) == "" {
		return "", fmt.Errorf("badge: empty code")
	}
	if err := os.MkdirAll(g.Dir, 0o755); err != nil {
		return "", fmt.Errorf("badge: mkdir %s: %w", g.Dir, err)
	}

	size := g.Size
	if size <= 0 {
		size = DefaultSize
	}

	path := filepath.Join(g.Dir, fileName(code))
	if err := qrcode.WriteFile(code, qrcode.Medium, size, path); err != nil {
		return "", fmt.Errorf("badge: write %s: %w", path, err)
	}
	return path, nil
}

// fileName maps each code to its own file inside Dir.  Separators and '%'
// are escaped, so distinct codes never share a badge.
func fileName(code string) string {
	return url.PathEscape(code) + ".png"
}
