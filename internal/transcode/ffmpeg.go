package transcode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrProbe indicates ffprobe could not inspect the file.
	ErrProbe = errors.New("probe failed")
	// ErrTranscode indicates ffmpeg failed, timed out, or ran out of resources.
	ErrTranscode = errors.New("transcode failed")
)

// CommandRunner executes external commands and returns stdout bytes.
type CommandRunner func(ctx context.Context, binary string, args ...string) ([]byte, error)

// FFmpegGateway shells out to ffmpeg/ffprobe for probe, trim, and concatenate
// operations. It holds no state: every successful call writes exactly one new
// file at the caller-supplied output path, and inputs are never touched.
type FFmpegGateway struct {
	FFmpegPath  string
	FFprobePath string
	Run         CommandRunner
	Timeout     time.Duration
}

// NewFFmpegGateway constructs a gateway around the ffmpeg and ffprobe binaries.
func NewFFmpegGateway(ffmpegPath, ffprobePath string, timeout time.Duration) *FFmpegGateway {
	if strings.TrimSpace(ffmpegPath) == "" {
		ffmpegPath = "ffmpeg"
	}
	if strings.TrimSpace(ffprobePath) == "" {
		ffprobePath = "ffprobe"
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &FFmpegGateway{
		FFmpegPath:  ffmpegPath,
		FFprobePath: ffprobePath,
		Run:         defaultCommandRunner,
		Timeout:     timeout,
	}
}

// Probe inspects a media file without mutating it and returns its duration.
func (g *FFmpegGateway) Probe(ctx context.Context, path string) (time.Duration, error) {
	execCtx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()

	out, err := g.run(execCtx, g.FFprobePath,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		path,
	)
	if err != nil {
		return 0, fmt.Errorf("%w: ffprobe %s: %v", ErrProbe, path, err)
	}

	var payload struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(out, &payload); err != nil {
		return 0, fmt.Errorf("%w: parse ffprobe response: %v", ErrProbe, err)
	}

	seconds, err := strconv.ParseFloat(payload.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: no duration in ffprobe response for %s", ErrProbe, path)
	}

	return time.Duration(seconds * float64(time.Second)), nil
}

// Trim extracts the sub-range [start, end) of sourcePath into outputPath.
// The caller guarantees the range is within the source duration; inverted and
// negative ranges are rejected here as a second line of defense.
func (g *FFmpegGateway) Trim(ctx context.Context, sourcePath, outputPath string, start, end time.Duration) error {
	if start < 0 || start >= end {
		return fmt.Errorf("%w: invalid range [%s, %s)", ErrTranscode, start, end)
	}

	execCtx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()

	_, err := g.run(execCtx, g.FFmpegPath,
		"-y",
		"-i", sourcePath,
		"-ss", formatSeconds(start),
		"-t", formatSeconds(end-start),
		outputPath,
	)
	if err != nil {
		return fmt.Errorf("%w: ffmpeg trim %s: %v", ErrTranscode, sourcePath, err)
	}

	return nil
}

// Concatenate merges the source files, in the given order, into outputPath.
// Incompatible inputs surface as an opaque tool failure.
func (g *FFmpegGateway) Concatenate(ctx context.Context, sourcePaths []string, outputPath string) error {
	if len(sourcePaths) == 0 {
		return fmt.Errorf("%w: no sources to concatenate", ErrTranscode)
	}

	listFile, err := writeConcatList(sourcePaths)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTranscode, err)
	}
	defer os.Remove(listFile)

	execCtx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()

	_, err = g.run(execCtx, g.FFmpegPath,
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-c", "copy",
		outputPath,
	)
	if err != nil {
		return fmt.Errorf("%w: ffmpeg concat: %v", ErrTranscode, err)
	}

	return nil
}

func (g *FFmpegGateway) run(ctx context.Context, binary string, args ...string) ([]byte, error) {
	run := g.Run
	if run == nil {
		run = defaultCommandRunner
	}
	return run(ctx, binary, args...)
}

// writeConcatList materializes the ffmpeg concat demuxer input list. Single
// quotes in paths are escaped per the demuxer's quoting rules.
func writeConcatList(paths []string) (string, error) {
	f, err := os.CreateTemp("", "concat-*.txt")
	if err != nil {
		return "", fmt.Errorf("create concat list: %v", err)
	}

	var sb strings.Builder
	for _, p := range paths {
		sb.WriteString("file '")
		sb.WriteString(strings.ReplaceAll(p, "'", `'\''`))
		sb.WriteString("'\n")
	}

	if _, err := f.WriteString(sb.String()); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write concat list: %v", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close concat list: %v", err)
	}

	return f.Name(), nil
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

func defaultCommandRunner(ctx context.Context, binary string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, binary, args...)
	return cmd.Output()
}
