package ffmpeg

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

const (
	bundleVersion = "6.1"
	bundleBaseURL = "https://github.com/ffbinaries/ffbinaries-prebuilt/releases/download"

	// explicit overrides, checked before PATH
	EnvFFmpegPath  = "REVOICE_FFMPEG_PATH"
	EnvFFprobePath = "REVOICE_FFPROBE_PATH"
)

type BinaryPaths struct {
	FFmpeg  string
	FFprobe string
}

func (p BinaryPaths) complete() bool {
	return p.FFmpeg != "" && p.FFprobe != ""
}

var (
	locateOnce sync.Once
	located    BinaryPaths
	locateErr  error
)

// resolves ffmpeg and ffprobe once per process: env override, PATH,
// user cache, embedded bundle, then download
func Locate() (BinaryPaths, error) {
	locateOnce.Do(func() {
		located, locateErr = locate()
	})
	return located, locateErr
}

func FFmpegPath() (string, error) {
	paths, err := Locate()
	if err != nil {
		return "", err
	}
	return paths.FFmpeg, nil
}

func FFprobePath() (string, error) {
	paths, err := Locate()
	if err != nil {
		return "", err
	}
	return paths.FFprobe, nil
}

func locate() (BinaryPaths, error) {
	paths := fromEnvAndPath()
	if paths.complete() {
		return paths, nil
	}

	asset, err := bundleAsset(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return BinaryPaths{}, fmt.Errorf("ffmpeg not found on PATH: %w", err)
	}

	installDir := cacheInstallDir()
	cached := BinaryPaths{
		FFmpeg:  filepath.Join(installDir, "ffmpeg"+exeSuffix()),
		FFprobe: filepath.Join(installDir, "ffprobe"+exeSuffix()),
	}
	if usable(cached.FFmpeg) && usable(cached.FFprobe) {
		return cached, nil
	}

	if err := os.MkdirAll(installDir, 0o755); err != nil {
		return BinaryPaths{}, fmt.Errorf("create ffmpeg cache dir: %w", err)
	}

	if err := install(asset, installDir); err != nil {
		return BinaryPaths{}, err
	}
	if !usable(cached.FFmpeg) || !usable(cached.FFprobe) {
		return BinaryPaths{}, errors.New("ffmpeg binaries missing after install")
	}
	if runtime.GOOS != "windows" {
		for _, p := range []string{cached.FFmpeg, cached.FFprobe} {
			if err := os.Chmod(p, 0o755); err != nil {
				return BinaryPaths{}, fmt.Errorf("chmod %s: %w", filepath.Base(p), err)
			}
		}
	}
	return cached, nil
}

func fromEnvAndPath() BinaryPaths {
	paths := BinaryPaths{
		FFmpeg:  os.Getenv(EnvFFmpegPath),
		FFprobe: os.Getenv(EnvFFprobePath),
	}
	if paths.FFmpeg == "" {
		if found, err := exec.LookPath("ffmpeg"); err == nil {
			paths.FFmpeg = found
		}
	}
	if paths.FFprobe == "" {
		if found, err := exec.LookPath("ffprobe"); err == nil {
			paths.FFprobe = found
		}
	}
	return paths
}

func cacheInstallDir() string {
	base, err := os.UserCacheDir()
	if err != nil || base == "" {
		base = os.TempDir()
	}
	return filepath.Join(base, "revoice", "ffmpeg", bundleVersion, runtime.GOOS, runtime.GOARCH)
}

// prefers the embedded bundle when the binary was built with it
func install(asset, installDir string) error {
	reader, ok, err := openEmbeddedAsset(asset)
	if err != nil {
		return fmt.Errorf("open embedded ffmpeg: %w", err)
	}
	if !ok {
		reader, err = download(asset)
		if err != nil {
			return err
		}
	}
	defer func() { _ = reader.Close() }()

	return unpack(asset, reader, installDir)
}

func bundleAsset(goos, goarch string) (string, error) {
	var suffix string
	switch goos + "/" + goarch {
	case "linux/amd64":
		suffix = "linux-64"
	case "linux/arm64":
		suffix = "linux-arm-64"
	case "darwin/amd64":
		suffix = "macos-64"
	case "windows/amd64":
		suffix = "win-64"
	default:
		return "", fmt.Errorf("no bundled ffmpeg for %s/%s", goos, goarch)
	}
	return "ffmpeg-" + bundleVersion + "-" + suffix + ".zip", nil
}

func download(asset string) (io.ReadCloser, error) {
	url := fmt.Sprintf("%s/v%s/%s", bundleBaseURL, bundleVersion, asset)
	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("download ffmpeg bundle: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("download ffmpeg bundle: unexpected status %s", resp.Status)
	}
	return resp.Body, nil
}

// zip needs random access, so the stream is spooled to a temp file first
func unpack(asset string, reader io.Reader, installDir string) error {
	tmp, err := os.CreateTemp("", "revoice-ffmpeg-*.zip")
	if err != nil {
		return fmt.Errorf("create temp archive: %w", err)
	}
	archivePath := tmp.Name()
	defer func() { _ = os.Remove(archivePath) }()

	if _, err := io.Copy(tmp, reader); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}

	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open %s: %w", asset, err)
	}
	defer func() { _ = zr.Close() }()

	found := map[string]bool{}
	for _, file := range zr.File {
		name := binaryName(filepath.Base(file.Name))
		if name == "" {
			continue
		}
		dest := filepath.Join(installDir, name+exeSuffix())
		if err := writeEntry(file, dest); err != nil {
			return err
		}
		found[name] = true
	}

	if !found["ffmpeg"] || !found["ffprobe"] {
		return fmt.Errorf("%s is missing ffmpeg or ffprobe", asset)
	}
	return nil
}

func writeEntry(file *zip.File, dest string) error {
	src, err := file.Open()
	if err != nil {
		return fmt.Errorf("open archive entry %s: %w", file.Name, err)
	}
	defer func() { _ = src.Close() }()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return out.Close()
}

// maps an archive entry to "ffmpeg" / "ffprobe", or "" for anything else
func binaryName(entry string) string {
	name := strings.TrimSuffix(strings.ToLower(entry), ".exe")
	switch name {
	case "ffmpeg", "ffprobe":
		return name
	default:
		return ""
	}
}

func usable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir() && info.Size() > 0
}

func exeSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}
