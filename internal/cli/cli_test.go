package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/BrandonDHaskell/Portunus/monitor/internal/portunus/types"
)

type workspace struct {
	dir    string
	config string
}

// newWorkspace writes a config that keeps every path inside a temp dir and
// disables the network listeners.
func newWorkspace(t *testing.T) workspace {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)

	cfg := filepath.Join(dir, "monitor.yaml")
	body := strings.Join([]string{
		"db_path: " + filepath.Join(dir, "data", "monitor.db"),
		"badge_dir: " + filepath.Join(dir, "qrcodes"),
		"mirror_path: " + filepath.Join(dir, "data", "access_log.txt"),
		"frames_dir: " + filepath.Join(dir, "frames"),
		`http_addr: ""`,
		`grpc_addr: ""`,
	}, "\n")
	if err := os.WriteFile(cfg, []byte(body+"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "frames"), 0o755); err != nil {
		t.Fatalf("mkdir frames: %v", err)
	}
	return workspace{dir: dir, config: cfg}
}

func (w workspace) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetArgs(append([]string{"--config", w.config}, args...))
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// mustRun fails the test unless the command succeeds.
func (w workspace) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := w.run(t, args...)
	if err != nil {
		t.Fatalf("%v: %v", args, err)
	}
	return out
}

func copyFile(t *testing.T, from, to string) {
	t.Helper()
	b, err := os.ReadFile(from)
	if err != nil {
		t.Fatalf("read %s: %v", from, err)
	}
	if err := os.WriteFile(to, b, 0o644); err != nil {
		t.Fatalf("write %s: %v", to, err)
	}
}

func TestRegister_ThenList(t *testing.T) {
	w := newWorkspace(t)

	out := w.mustRun(t, "register", "Ana Lopez", "staff", "abc123")
	if !strings.Contains(out, "registered ABC123") {
		t.Fatalf("unexpected output %q", out)
	}
	if _, err := os.Stat(filepath.Join(w.dir, "qrcodes", "ABC123.png")); err != nil {
		t.Fatalf("badge missing: %v", err)
	}

	out = w.mustRun(t, "--format", "json", "identities")
	var ids []types.Identity
	if err := json.Unmarshal([]byte(out), &ids); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(ids) != 1 || ids[0].Name != "Ana Lopez" {
		t.Fatalf("unexpected identities %+v", ids)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	w := newWorkspace(t)

	w.mustRun(t, "register", "Ana", "staff", "ABC123")
	if _, err := w.run(t, "register", "Bo", "staff", "ABC123"); !errors.Is(err, types.ErrDuplicateCode) {
		t.Fatalf("expected ErrDuplicateCode, got %v", err)
	}
}

func TestNext_UnknownCode(t *testing.T) {
	w := newWorkspace(t)

	if _, err := w.run(t, "next", "ZZZ999"); !errors.Is(err, types.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestInvalidFormat(t *testing.T) {
	w := newWorkspace(t)

	if _, err := w.run(t, "--format", "xml", "events"); err == nil {
		t.Fatalf("expected an error for an unknown format")
	}
}

func TestMonitor_RecordsBadgeOnceWithinWindow(t *testing.T) {
	w := newWorkspace(t)

	w.mustRun(t, "register", "Ana Lopez", "staff", "ABC123")

	// Two frames showing the same badge, then one empty frame.
	badgePath := filepath.Join(w.dir, "qrcodes", "ABC123.png")
	frames := filepath.Join(w.dir, "frames")
	copyFile(t, badgePath, filepath.Join(frames, "frame_0001.png"))
	copyFile(t, badgePath, filepath.Join(frames, "frame_0002.png"))
	writeBlank(t, filepath.Join(frames, "frame_0003.png"))

	w.mustRun(t, "monitor")

	out := w.mustRun(t, "--format", "json", "events")
	var rows []types.EventRow
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 event, got %d", len(rows))
	}
	if rows[0].Event.Kind != types.EventEntry || rows[0].Event.Channel != types.ChannelBadge {
		t.Fatalf("unexpected event %+v", rows[0].Event)
	}

	if out := w.mustRun(t, "next", "abc123"); out != "ABC123 next: Exit\n" {
		t.Fatalf("unexpected next output %q", out)
	}
}

func TestMonitor_MissingFramesDir(t *testing.T) {
	w := newWorkspace(t)

	if _, err := w.run(t, "monitor", "--frames", filepath.Join(w.dir, "nope")); err == nil {
		t.Fatalf("expected an error for a missing frames dir")
	}
}

func writeBlank(t *testing.T, path string) {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 32, 32))
	for i := range img.Pix {
		img.Pix[i] = uint8(color.White.Y >> 8)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
}
