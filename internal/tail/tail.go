// Package tail follows a growing text file and feeds its lines into a
// bounded channel.
package tail

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"boundedchan/internal/channel"
	"boundedchan/internal/event"
	"boundedchan/internal/metrics"
	"boundedchan/internal/pipeline"
)

type Options struct {
	Path string
	// Poll is how often the file is checked when no filesystem event
	// arrives. Defaults to one second.
	Poll time.Duration
	// FromStart reads the existing content of the file instead of only
	// lines appended after Follow starts.
	FromStart bool
	// DropWhenFull drops lines instead of waiting when the channel is full.
	DropWhenFull bool
	Stream       string
	Metrics      *metrics.Metrics

	// ready is called once the directory is watched and the initial open
	// has happened.
	ready func()
}

type follower struct {
	opts    Options
	w       *channel.Writer[event.Event]
	file    *os.File
	info    os.FileInfo
	reader  *bufio.Reader
	offset  int64
	pending strings.Builder
	seq     uint64
}

// Follow writes every complete line appended to opts.Path into w until ctx
// ends, which is a normal stop and returns nil. Rotated or recreated files
// are reopened from their beginning. Follow returns channel.ErrClosed if the
// channel is completed underneath it.
func Follow(ctx context.Context, opts Options, w *channel.Writer[event.Event]) error {
	if opts.Poll <= 0 {
		opts.Poll = time.Second
	}
	if opts.Stream == "" {
		opts.Stream = "tail"
	}
	opts.Path = filepath.Clean(opts.Path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	// Watch the directory so rename/create rotations are seen too.
	if err := watcher.Add(filepath.Dir(opts.Path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(opts.Path), err)
	}

	f := &follower{opts: opts, w: w}
	defer f.close()
	f.open(!opts.FromStart)
	if opts.ready != nil {
		opts.ready()
	}

	ticker := time.NewTicker(opts.Poll)
	defer ticker.Stop()

	for {
		if err := f.drain(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) == opts.Path && !ev.Has(fsnotify.Write) {
				f.checkRotation()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Str("path", opts.Path).Msg("watcher error")
		case <-ticker.C:
			f.checkRotation()
		}
	}
}

func (f *follower) open(seekEnd bool) {
	f.close()
	file, err := os.Open(f.opts.Path)
	if err != nil {
		return
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return
	}
	f.file = file
	f.info = info
	f.offset = 0
	if seekEnd {
		if off, err := file.Seek(0, io.SeekEnd); err == nil {
			f.offset = off
		}
	}
	f.reader = bufio.NewReader(file)
	f.pending.Reset()
	log.Debug().Str("path", f.opts.Path).Int64("offset", f.offset).Msg("following file")
}

func (f *follower) close() {
	if f.file != nil {
		_ = f.file.Close()
	}
	f.file = nil
	f.reader = nil
}

// checkRotation reopens the path when it now names a different file, and
// rewinds when the current file was truncated.
func (f *follower) checkRotation() {
	info, err := os.Stat(f.opts.Path)
	if err != nil {
		return
	}
	if f.file == nil || !os.SameFile(f.info, info) {
		f.open(false)
		return
	}
	if info.Size() < f.offset {
		if _, err := f.file.Seek(0, io.SeekStart); err == nil {
			f.offset = 0
			f.reader.Reset(f.file)
			f.pending.Reset()
		}
	}
}

func (f *follower) drain(ctx context.Context) error {
	if f.reader == nil {
		return nil
	}
	for {
		chunk, err := f.reader.ReadString('\n')
		f.offset += int64(len(chunk))
		f.pending.WriteString(chunk)
		if err != nil {
			// Keep a partial last line until the rest of it is written.
			return nil
		}
		line := strings.TrimRight(f.pending.String(), "\r\n")
		f.pending.Reset()
		if err := f.publish(ctx, line); err != nil {
			return err
		}
	}
}

func (f *follower) publish(ctx context.Context, line string) error {
	ev := event.Event{
		Source: f.opts.Stream,
		Seq:    f.seq,
		TS:     time.Now().UTC(),
		Data:   event.Line{Path: f.opts.Path, Text: line},
	}
	f.seq++
	if !f.opts.DropWhenFull {
		return f.w.Write(ctx, ev)
	}
	err := pipeline.TryPublish(f.w, f.opts.Metrics, f.opts.Stream, ev)
	if errors.Is(err, channel.ErrFull) {
		return nil
	}
	return err
}
