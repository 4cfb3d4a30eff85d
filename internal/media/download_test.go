package media

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestBuildYtDlpArgs(t *testing.T) {
	args := buildYtDlpArgs("https://www.youtube.com/watch?v=abc", "/tmp/work")

	joined := strings.Join(args, " ")
	for _, want := range []string{
		"-f bestaudio/best",
		"-x",
		"--audio-format mp3",
		"--audio-quality 192K",
		"-o /tmp/work/downloaded_audio.%(ext)s",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected args to contain %q, got %q", want, joined)
		}
	}
	if args[len(args)-1] != "https://www.youtube.com/watch?v=abc" {
		t.Errorf("expected URL as last argument, got %q", args[len(args)-1])
	}
}

// fakeYtDlp writes a shell script that mimics yt-dlp by creating the
// output file named by -o.
func fakeYtDlp(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "yt-dlp")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatalf("write fake yt-dlp: %v", err)
	}
	return path
}

const writeOutput = `
while [ $# -gt 0 ]; do
  if [ "$1" = "-o" ]; then out="$2"; fi
  shift
done
file=$(echo "$out" | sed 's/%(ext)s/mp3/')
printf 'ID3-fake-audio' > "$file"
`

func TestDownload(t *testing.T) {
	d := &Downloader{Binary: fakeYtDlp(t, writeOutput)}
	workDir := t.TempDir()

	asset, cleanup, err := d.Download(context.Background(), "https://example.com/v", workDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if asset.Format != "mp3" {
		t.Errorf("expected mp3, got %q", asset.Format)
	}
	if filepath.Base(asset.Path) != "downloaded_audio.mp3" {
		t.Errorf("unexpected file name %q", asset.Path)
	}
	if asset.Size != int64(len("ID3-fake-audio")) {
		t.Errorf("unexpected size %d", asset.Size)
	}

	cleanup()
	if _, err := os.Stat(filepath.Dir(asset.Path)); !os.IsNotExist(err) {
		t.Errorf("expected download directory removed, stat err = %v", err)
	}
	cleanup()
}

func TestDownload_CommandFails(t *testing.T) {
	d := &Downloader{Binary: fakeYtDlp(t, "echo 'ERROR: Unsupported URL' >&2\nexit 1\n")}
	workDir := t.TempDir()

	_, cleanup, err := d.Download(context.Background(), "https://example.com/v", workDir)
	defer cleanup()
	if err == nil {
		t.Fatal("expected error from failing yt-dlp")
	}
	if !strings.Contains(err.Error(), "Unsupported URL") {
		t.Errorf("expected yt-dlp output in error, got: %v", err)
	}
	entries, _ := os.ReadDir(workDir)
	if len(entries) != 0 {
		t.Errorf("expected work dir to be cleaned up, found %d entries", len(entries))
	}
}

func TestDownload_NoOutput(t *testing.T) {
	d := &Downloader{Binary: fakeYtDlp(t, "exit 0\n")}

	_, cleanup, err := d.Download(context.Background(), "https://example.com/v", t.TempDir())
	defer cleanup()
	if err == nil || !strings.Contains(err.Error(), "no audio file") {
		t.Errorf("expected missing output error, got %v", err)
	}
}

func TestDownload_EmptyURL(t *testing.T) {
	_, cleanup, err := NewDownloader().Download(context.Background(), "  ", t.TempDir())
	defer cleanup()
	if err == nil {
		t.Error("expected error for empty URL")
	}
}

func TestLocalAsset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "call.WAV")
	os.WriteFile(path, []byte("RIFF"), 0o600)

	asset, err := LocalAsset(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if asset.Format != "wav" {
		t.Errorf("expected wav, got %q", asset.Format)
	}

	empty := filepath.Join(dir, "empty.mp3")
	os.WriteFile(empty, nil, 0o600)
	if _, err := LocalAsset(empty); err == nil {
		t.Error("expected error for empty file")
	}
	if _, err := LocalAsset(dir); err == nil {
		t.Error("expected error for directory")
	}
}

func TestIsLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "call.mp3")
	os.WriteFile(path, []byte("x"), 0o600)

	if !IsLocalFile(path) {
		t.Error("expected existing file to be local")
	}
	if IsLocalFile("https://www.youtube.com/watch?v=abc") {
		t.Error("expected URL not to be local")
	}
	if IsLocalFile(filepath.Dir(path)) {
		t.Error("expected directory not to be local")
	}
}
