package main

import (
	"context"
	"fmt"
	"io"
	"os/exec"

	"github.com/dreysen/voicelink/pkg/client"
)

// ffplaySink plays each reply through an ffplay process. A fresh process per
// utterance keeps the sample rate flexible, since it is fixed on the ffplay
// command line.
type ffplaySink struct {
	path string
}

func newFFPlaySink() (client.Sink, func(), error) {
	path, err := exec.LookPath("ffplay")
	if err != nil {
		return nil, nil, fmt.Errorf("ffplay not found in PATH (use -no-play or -out): %w", err)
	}
	return &ffplaySink{path: path}, func() {}, nil
}

func (s *ffplaySink) Play(ctx context.Context, sampleRate int, pcm []byte) error {
	if len(pcm) == 0 {
		return nil
	}

	cmd := exec.CommandContext(ctx, s.path,
		"-hide_banner",
		"-loglevel", "error",
		"-nostats",
		"-nodisp",
		"-autoexit",
		"-f", "s16le",
		"-ch_layout", "mono",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-i", "-",
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	cmd.Stdout = io.Discard

	if err := cmd.Start(); err != nil {
		stdin.Close()
		return err
	}
	if _, err := stdin.Write(pcm); err != nil {
		stdin.Close()
		cmd.Process.Kill()
		cmd.Wait()
		return err
	}
	stdin.Close()
	return cmd.Wait()
}
