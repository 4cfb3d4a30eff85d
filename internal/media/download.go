// Package media fetches the audio and metadata for a video link. The
// transcoding itself is delegated to yt-dlp (and the ffmpeg it drives).
package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// AudioFormat is the container yt-dlp is asked to produce.
	AudioFormat = "mp3"

	// AudioQuality is the target bitrate passed to yt-dlp.
	AudioQuality = "192K"

	outputStem = "downloaded_audio"
)

// Asset is a local audio file ready for upload.
type Asset struct {
	Path   string
	Format string
	Size   int64
}

// Downloader runs yt-dlp. Binary defaults to "yt-dlp" on PATH.
type Downloader struct {
	Binary string
}

// NewDownloader returns a Downloader using yt-dlp from PATH.
func NewDownloader() *Downloader {
	return &Downloader{Binary: "yt-dlp"}
}

// CheckYtDlpAvailable checks if yt-dlp is available in the system PATH.
// Returns nil if it is, or an error describing how to install it.
func CheckYtDlpAvailable() error {
	path, err := exec.LookPath("yt-dlp")
	if err != nil {
		return fmt.Errorf("yt-dlp not found in PATH: video links cannot be downloaded. Install it with: brew install yt-dlp (macOS) or pipx install yt-dlp (Linux)")
	}
	log.Debug().Str("path", path).Msg("yt-dlp found")
	return nil
}

// buildYtDlpArgs returns the arguments that extract the best audio stream
// of videoURL as <dir>/downloaded_audio.mp3.
func buildYtDlpArgs(videoURL, dir string) []string {
	return []string{
		"-f", "bestaudio/best",
		"-x",
		"--audio-format", AudioFormat,
		"--audio-quality", AudioQuality,
		"--no-playlist",
		"--no-progress",
		"-o", filepath.Join(dir, outputStem+".%(ext)s"),
		videoURL,
	}
}

// Download extracts the audio of videoURL into a fresh directory under
// workDir. The returned cleanup removes that directory; it is safe to call
// more than once and must be called even on success.
func (d *Downloader) Download(ctx context.Context, videoURL, workDir string) (*Asset, func(), error) {
	if strings.TrimSpace(videoURL) == "" {
		return nil, func() {}, errors.New("video URL is empty")
	}

	binary := d.Binary
	if binary == "" {
		binary = "yt-dlp"
	}
	binPath, err := exec.LookPath(binary)
	if err != nil {
		return nil, func() {}, fmt.Errorf("yt-dlp not found: audio download requires yt-dlp: %w", err)
	}

	dir, err := os.MkdirTemp(workDir, "call-sentiment-*")
	if err != nil {
		return nil, func() {}, fmt.Errorf("failed to create download directory: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("Failed to remove download directory")
		} else {
			log.Debug().Str("dir", dir).Msg("Download directory removed")
		}
	}

	log.Info().Str("url", videoURL).Str("dir", dir).Msg("Downloading audio")
	start := time.Now()

	cmd := exec.CommandContext(ctx, binPath, buildYtDlpArgs(videoURL, dir)...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		cleanup()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, func() {}, fmt.Errorf("audio download cancelled: %w", ctxErr)
		}
		return nil, func() {}, fmt.Errorf("audio download failed: %w\nOutput: %s", err, truncate(string(output), 2000))
	}

	asset, err := locateOutput(dir)
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}

	log.Info().
		Str("path", asset.Path).
		Str("format", asset.Format).
		Int64("bytes", asset.Size).
		Dur("duration", time.Since(start)).
		Msg("Audio downloaded")

	return asset, cleanup, nil
}

// locateOutput finds the file yt-dlp wrote. The mp3 is preferred; any
// other downloaded_audio.* is accepted if post-processing kept the
// original container.
func locateOutput(dir string) (*Asset, error) {
	matches, err := filepath.Glob(filepath.Join(dir, outputStem+".*"))
	if err != nil {
		return nil, fmt.Errorf("failed to list download directory: %w", err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("yt-dlp reported success but wrote no audio file in %s", dir)
	}

	chosen := matches[0]
	for _, m := range matches {
		if strings.EqualFold(filepath.Ext(m), "."+AudioFormat) {
			chosen = m
			break
		}
	}
	return LocalAsset(chosen)
}

// LocalAsset describes an audio file already on disk.
func LocalAsset(path string) (*Asset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat audio file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("audio path is a directory: %s", path)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("audio file is empty: %s", path)
	}
	return &Asset{
		Path:   path,
		Format: strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."),
		Size:   info.Size(),
	}, nil
}

// IsLocalFile reports whether input names an existing regular file rather
// than a link.
func IsLocalFile(input string) bool {
	if strings.Contains(input, "://") {
		return false
	}
	info, err := os.Stat(input)
	return err == nil && info.Mode().IsRegular()
}

// truncate returns the first n characters of s, appending "..." if truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
