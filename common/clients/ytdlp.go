package clients

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/soundsphere/trackstore/common/logger"
)

var (
	// ErrNoMatch means the search ran and returned zero results
	ErrNoMatch = errors.New("no search results")

	// ErrMalformedOutput means the tool's output could not be understood
	ErrMalformedOutput = errors.New("malformed yt-dlp output")

	// ErrToolFailed wraps any failed tool invocation
	ErrToolFailed = errors.New("yt-dlp failed")
)

// SearchHit is the first-ranked search result
type SearchHit struct {
	ID    string
	Title string
}

// YTDLPConfig holds tool settings
type YTDLPConfig struct {
	Executable    string // empty uses the binary on PATH or the installed one
	AutoInstall   bool
	AudioFormat   string
	SearchTimeout time.Duration
	FetchTimeout  time.Duration
}

// YTDLP is a shared handle to the yt-dlp tool. Build it once at startup.
type YTDLP struct {
	cfg YTDLPConfig
	log *logger.Logger
}

// NewYTDLP prepares the tool, downloading the binary when AutoInstall is set
func NewYTDLP(ctx context.Context, cfg YTDLPConfig, log *logger.Logger) (*YTDLP, error) {
	if cfg.AudioFormat == "" {
		cfg.AudioFormat = "mp3"
	}

	if cfg.AutoInstall && cfg.Executable == "" {
		resolved, err := ytdlp.Install(ctx, &ytdlp.InstallOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to install yt-dlp: %w", err)
		}
		cfg.Executable = resolved.Executable
		log.Info("yt-dlp installed", "executable", resolved.Executable, "version", resolved.Version)
	}

	return &YTDLP{cfg: cfg, log: log}, nil
}

func (y *YTDLP) command() *ytdlp.Command {
	cmd := ytdlp.New().
		NoPlaylist().
		NoWarnings().
		IgnoreConfig()
	if y.cfg.Executable != "" {
		cmd = cmd.SetExecutable(y.cfg.Executable)
	}
	return cmd
}

// Search returns the first hit for query, ErrNoMatch when there is none
func (y *YTDLP) Search(ctx context.Context, query string) (*SearchHit, error) {
	if y.cfg.SearchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, y.cfg.SearchTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := y.command().
		Print("%(id)s\t%(title)s").
		SkipDownload().
		Run(ctx, "ytsearch1:"+query)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %w", ErrToolFailed, err)
	}

	hit, err := ParseSearchOutput(result.Stdout)
	if err != nil {
		return nil, err
	}

	y.log.Debug("yt-dlp search complete",
		"query", query,
		"id", hit.ID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return hit, nil
}

// ParseSearchOutput reads the first "<id>\t<title>" line of search output
func ParseSearchOutput(stdout string) (*SearchHit, error) {
	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		id, title, _ := strings.Cut(line, "\t")
		id = strings.TrimSpace(id)
		if id == "" || id == "NA" {
			return nil, fmt.Errorf("%w: missing id in %q", ErrMalformedOutput, line)
		}
		return &SearchHit{ID: id, Title: strings.TrimSpace(title)}, nil
	}
	return nil, ErrNoMatch
}

// Download extracts audio from locator into dir and returns the file path
func (y *YTDLP) Download(ctx context.Context, locator, dir string) (string, error) {
	if y.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, y.cfg.FetchTimeout)
		defer cancel()
	}

	start := time.Now()
	_, err := y.command().
		ExtractAudio().
		AudioFormat(y.cfg.AudioFormat).
		Output(filepath.Join(dir, "track.%(ext)s")).
		Run(ctx, locator)
	if err != nil {
		return "", fmt.Errorf("%w: download: %w", ErrToolFailed, err)
	}

	path, err := FindOutput(dir, y.cfg.AudioFormat)
	if err != nil {
		return "", err
	}

	y.log.Debug("yt-dlp download complete",
		"locator", locator,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return path, nil
}

// FindOutput locates the extracted file in dir, preferring the target format
func FindOutput(dir, format string) (string, error) {
	want := filepath.Join(dir, "track."+format)
	if info, err := os.Stat(want); err == nil && info.Mode().IsRegular() {
		return want, nil
	}

	matches, err := filepath.Glob(filepath.Join(dir, "track.*"))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedOutput, err)
	}

	var files []string
	for _, m := range matches {
		// yt-dlp leaves .part and .ytdl files behind on interrupted runs
		if strings.HasSuffix(m, ".part") || strings.HasSuffix(m, ".ytdl") {
			continue
		}
		files = append(files, m)
	}
	if len(files) != 1 {
		return "", fmt.Errorf("%w: expected one output file in %s, found %d", ErrMalformedOutput, dir, len(files))
	}
	return files[0], nil
}
