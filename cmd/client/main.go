// Command client is a terminal client for a voicelink server. It streams a
// raw PCM file (or typed text) to the server and plays synthesized replies
// through ffplay, or writes them to a file.
package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dreysen/voicelink/internal/protocol"
	"github.com/dreysen/voicelink/internal/wav"
	"github.com/dreysen/voicelink/pkg/client"
)

func main() {
	var (
		url        = flag.String("url", "ws://localhost:8080/ws", "server WebSocket URL")
		token      = flag.String("token", os.Getenv("VOICELINK_TOKEN"), "access token")
		audioPath  = flag.String("audio", "", "raw 16-bit mono PCM file to stream")
		text       = flag.String("text", "", "send typed input instead of audio")
		sampleRate = flag.Int("rate", 16000, "sample rate of the input audio")
		outPath    = flag.String("out", "", "write reply PCM to this file instead of playing")
		noPlay     = flag.Bool("no-play", false, "do not spawn ffplay for replies")
		verbose    = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	logger := zap.NewNop()
	if *verbose {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	if *token == "" {
		fmt.Fprintln(os.Stderr, "a token is required (-token or VOICELINK_TOKEN)")
		os.Exit(1)
	}

	c, err := client.New(client.Config{
		URL:    *url,
		Token:  *token,
		Logger: logger,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-quit
		cancel()
		c.Disconnect()
	}()

	go func() {
		for status := range c.StatusChanges() {
			fmt.Fprintf(os.Stderr, "[%s]\n", status)
		}
	}()

	if err := c.Connect(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer c.Disconnect()
	fmt.Fprintf(os.Stderr, "connected, session %s\n", c.SessionID())

	sink, closeSink, err := buildSink(*outPath, *noPlay)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closeSink()

	done := make(chan struct{})
	go func() {
		defer close(done)
		receive(ctx, c, sink, *sampleRate)
	}()

	switch {
	case *text != "":
		if err := c.SendText(*text); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	case *audioPath != "":
		f, err := os.Open(*audioPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		src := client.NewReaderSource(f, *sampleRate, 100*time.Millisecond)
		err = c.Stream(ctx, src)
		f.Close()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	default:
		fmt.Fprintln(os.Stderr, "nothing to send: use -audio or -text")
		os.Exit(1)
	}

	// Wait for the reply (or interrupt).
	<-done
}

// receive prints server messages and plays reply audio. It returns after the
// first complete response or when the context ends.
func receive(ctx context.Context, c *client.Client, sink client.Sink, defaultRate int) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.Messages():
			if !ok {
				return
			}
			switch m := msg.(type) {
			case *protocol.BufferingMessage:
				fmt.Fprintf(os.Stderr, "buffering %.1f/%.1fs\n", m.BufferedSeconds, m.TargetSeconds)
			case *protocol.TranscriptionMessage:
				fmt.Printf("you: %s\n", m.Text)
			case *protocol.ErrorMessage:
				fmt.Fprintf(os.Stderr, "error [%s]: %s\n", m.Code, m.Message)
				return
			case *protocol.InfoMessage:
				fmt.Fprintln(os.Stderr, m.Message)
			case *protocol.ResponseMessage:
				fmt.Printf("assistant: %s\n", m.Text)
				if m.Audio != nil && sink != nil {
					raw, err := base64.StdEncoding.DecodeString(*m.Audio)
					if err != nil {
						fmt.Fprintf(os.Stderr, "bad audio payload: %v\n", err)
						return
					}
					rate, pcm := wav.Decode(raw, defaultRate)
					if err := sink.Play(ctx, rate, pcm); err != nil && ctx.Err() == nil {
						fmt.Fprintf(os.Stderr, "playback failed: %v\n", err)
					}
				}
				return
			}
		}
	}
}

func buildSink(outPath string, noPlay bool) (client.Sink, func(), error) {
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return nil, nil, err
		}
		return client.NewWriterSink(f, 0), func() { f.Close() }, nil
	}
	if noPlay {
		return client.NewWriterSink(io.Discard, 0), func() {}, nil
	}
	return newFFPlaySink()
}
