package sink

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/thermview/pkg/render"
)

// Map from four character codec codes to ffmpeg encoder names
var codecs = map[string]string{
	"mp4v": "mpeg4",
	"avc1": "libx264",
	"XVID": "libxvid",
	"MJPG": "mjpeg",
}

const DefaultCodec = "mp4v"
const DefaultFPS = 10

type VideoOptions struct {
	FPS   int
	Codec string // One of mp4v, avc1, XVID, MJPG
}

// encoder receives raw rgb24 frames
type encoder interface {
	io.Writer
	// Finish flushes and closes the output file
	Finish() error
}

type encoderStarter func(filename string, width, height int, opts VideoOptions) (encoder, error)

// VideoSink encodes frames into a video file at a fixed frame rate.
// The first frame decides the video dimensions.
type VideoSink struct {
	log      logs.Log
	filename string
	opts     VideoOptions
	start    encoderStarter
	enc      encoder
	width    int
	height   int
	last     int
	nFrames  int
	closed   bool
}

// NewVideoSink checks that ffmpeg is available and has an encoder for the codec, and creates the output directory.
// The encoder itself is started when the first frame arrives. If it exits before accepting
// that frame (eg the container rejects the codec), WriteFrame returns ErrSinkOpen.
func NewVideoSink(log logs.Log, filename string, opts VideoOptions) (*VideoSink, error) {
	if err := validateVideoOptions(&opts); err != nil {
		return nil, err
	}
	ffmpeg, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("%w: Unable to find ffmpeg in your path (%w)", ErrSinkOpen, err)
	}
	if err := checkEncoder(ffmpeg, codecs[opts.Codec]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSinkOpen, err)
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSinkOpen, err)
	}
	return newVideoSink(log, filename, opts, ffmpegStarter(ffmpeg)), nil
}

func newVideoSink(log logs.Log, filename string, opts VideoOptions, start encoderStarter) *VideoSink {
	return &VideoSink{
		log:      log,
		filename: filename,
		opts:     opts,
		start:    start,
		last:     -1,
	}
}

func validateVideoOptions(opts *VideoOptions) error {
	if opts.Codec == "" {
		opts.Codec = DefaultCodec
	}
	if opts.FPS == 0 {
		opts.FPS = DefaultFPS
	}
	if _, ok := codecs[opts.Codec]; !ok {
		return fmt.Errorf("%w: Unsupported codec '%v'", ErrSinkOpen, opts.Codec)
	}
	if opts.FPS < 0 {
		return fmt.Errorf("%w: Invalid frame rate %v", ErrSinkOpen, opts.FPS)
	}
	return nil
}

func (v *VideoSink) WriteFrame(index int, img *image.RGBA) error {
	if v.closed {
		return fmt.Errorf("%w: video %v is closed", ErrSinkWrite, v.filename)
	}
	w, h := img.Rect.Dx(), img.Rect.Dy()
	if v.enc == nil {
		enc, err := v.start(v.filename, w, h, v.opts)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrSinkOpen, err)
		}
		v.log.Infof("Writing %v x %v video at %v fps to %v", w, h, v.opts.FPS, v.filename)
		v.enc = enc
		v.width = w
		v.height = h
	}
	if w != v.width || h != v.height {
		return fmt.Errorf("%w: frame %v is %v x %v, but video is %v x %v", ErrSinkWrite, index, w, h, v.width, v.height)
	}
	if index <= v.last {
		return fmt.Errorf("%w: frame %v written after frame %v", ErrSinkWrite, index, v.last)
	}
	if _, err := v.enc.Write(render.RGB(img)); err != nil {
		if v.nFrames == 0 {
			// The encoder never got going
			return fmt.Errorf("%w: %w", ErrSinkOpen, err)
		}
		return fmt.Errorf("%w: %w", ErrSinkWrite, err)
	}
	v.last = index
	v.nFrames++
	return nil
}

// FramesWritten returns the number of frames accepted so far
func (v *VideoSink) FramesWritten() int {
	return v.nFrames
}

func (v *VideoSink) Close() error {
	if v.closed {
		return nil
	}
	v.closed = true
	if v.enc == nil {
		v.log.Warnf("No frames were written to %v", v.filename)
		return nil
	}
	if err := v.enc.Finish(); err != nil {
		return err
	}
	v.log.Infof("Wrote %v frames to %v", v.nFrames, v.filename)
	return nil
}

// checkEncoder asks ffmpeg whether it was built with the named encoder.
// An ffmpeg without it prints "Codec 'x' is not recognized" instead of the encoder's options.
func checkEncoder(ffmpeg, name string) error {
	out, err := exec.Command(ffmpeg, "-hide_banner", "-h", "encoder="+name).CombinedOutput()
	if !strings.Contains(string(out), "Encoder "+name) {
		msg := strings.TrimSpace(string(out))
		if err != nil {
			msg = fmt.Sprintf("%v %v", err, msg)
		}
		return fmt.Errorf("ffmpeg has no '%v' encoder (%v)", name, msg)
	}
	return nil
}

type ffmpegEncoder struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	output  bytes.Buffer
	done    chan struct{} // Closed when ffmpeg exits
	waitErr error
}

func ffmpegStarter(ffmpeg string) encoderStarter {
	return func(filename string, width, height int, opts VideoOptions) (encoder, error) {
		args := []string{
			"ffmpeg",
			"-y", // overwrite output file
			"-loglevel", "error",
			"-f", "rawvideo",
			"-pix_fmt", "rgb24",
			"-s", fmt.Sprintf("%vx%v", width, height),
			"-r", strconv.Itoa(opts.FPS),
			"-i", "-",
			"-c:v", codecs[opts.Codec],
		}
		if opts.Codec != "MJPG" {
			args = append(args, "-pix_fmt", "yuv420p")
		}
		args = append(args, filename)
		e := &ffmpegEncoder{
			cmd: &exec.Cmd{
				Path: ffmpeg,
				Args: args,
			},
			done: make(chan struct{}),
		}
		e.cmd.Stdout = &e.output
		e.cmd.Stderr = &e.output
		stdin, err := e.cmd.StdinPipe()
		if err != nil {
			return nil, err
		}
		e.stdin = stdin
		if err := e.cmd.Start(); err != nil {
			return nil, fmt.Errorf("Unable to start ffmpeg: %w", err)
		}
		go func() {
			e.waitErr = e.cmd.Wait()
			close(e.done)
		}()
		return e, nil
	}
}

// Write fails once ffmpeg has exited. The error then carries ffmpeg's own explanation.
func (e *ffmpegEncoder) Write(b []byte) (int, error) {
	n, err := e.stdin.Write(b)
	if err != nil {
		select {
		case <-e.done:
			return n, fmt.Errorf("ffmpeg exited: %v (%v)", e.waitErr, strings.TrimSpace(e.output.String()))
		case <-time.After(time.Second):
		}
	}
	return n, err
}

func (e *ffmpegEncoder) Finish() error {
	e.stdin.Close()
	<-e.done
	if e.waitErr != nil {
		return fmt.Errorf("ffmpeg execution failed: %w (%v)", e.waitErr, e.output.String())
	}
	return nil
}
