// Command framecheck round-trips an image through the GPU: it decodes the
// input, uploads it as a texture, copies it back into a host-visible buffer
// and writes what came back.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/framing"
	"github.com/gogpu/framing/device"
	"github.com/gogpu/framing/format"
	"github.com/gogpu/framing/gpubuf"
	"github.com/gogpu/framing/internal/codec"
)

type config struct {
	input   string
	output  string
	format  string
	backend string
	layers  int
	timeout time.Duration
}

func main() {
	var cfg config
	flag.StringVar(&cfg.input, "in", "", "input image (png, jpeg, gif, bmp, tiff, webp)")
	flag.StringVar(&cfg.output, "out", "framecheck.png", "output image (png or jpeg)")
	flag.StringVar(&cfg.format, "format", "rgba8unorm", "texture format: "+strings.Join(format.Names(), ", "))
	flag.StringVar(&cfg.backend, "backend", "vulkan", "GPU backend: vulkan or noop")
	flag.IntVar(&cfg.layers, "layers", 1, "upload the frame this many times as an array image")
	flag.DurationVar(&cfg.timeout, "timeout", device.DefaultWaitTimeout, "GPU wait timeout")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if cfg.input == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *verbose {
		framing.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
}

// run does the round trip. It returns instead of exiting so deferred GPU
// cleanup always runs.
func run(cfg config) error {
	f, err := format.Lookup(cfg.format)
	if err != nil {
		return fmt.Errorf("bad format: %w", err)
	}

	opts := []device.Option{device.WithLabel("framecheck"), device.WithWaitTimeout(cfg.timeout)}
	switch cfg.backend {
	case "vulkan":
		opts = append(opts, device.WithBackend(gputypes.BackendVulkan))
	case "noop":
		opts = append(opts, device.WithInstanceFactory(&noop.API{}))
	default:
		return fmt.Errorf("unknown backend %q", cfg.backend)
	}

	src, err := codec.DecodeFile(cfg.input)
	if err != nil {
		return fmt.Errorf("failed to decode: %w", err)
	}

	q, err := device.Open(opts...)
	if err != nil {
		return fmt.Errorf("failed to open GPU: %w", err)
	}
	defer q.Close()

	start := time.Now()
	img, err := upload(q, f, src, cfg.layers)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	defer img.Destroy()

	var pixels []format.RGBA8
	if f.TextureFormat() == gputypes.TextureFormatBGRA8Unorm {
		pixels, err = readBack(q, img, func(p format.BGRA8) format.RGBA8 {
			return format.RGBA8{R: p.R, G: p.G, B: p.B, A: p.A}
		})
	} else {
		pixels, err = readBack(q, img, func(p format.RGBA8) format.RGBA8 { return p })
	}
	if err != nil {
		return fmt.Errorf("readback failed: %w", err)
	}

	if err := codec.SaveFile(cfg.output, src.Width(), src.Height(), pixels); err != nil {
		return fmt.Errorf("failed to save: %w", err)
	}
	log.Printf("Round trip of %s (%dx%d, %s, %d layer(s)) saved to %s in %v",
		cfg.input, src.Width(), src.Height(), f, cfg.layers, cfg.output, time.Since(start))
	return nil
}

func upload(q *device.Queue, f format.Format[[4]uint8], src *codec.Image, layers int) (*device.Image, error) {
	var (
		img *device.Image
		fut *device.Future
		err error
	)
	if layers > 1 {
		frames := make([]framing.Frame[format.RGBA8], layers)
		for i := range frames {
			frames[i] = src
		}
		img, fut, err = framing.UploadArray(q, f, frames)
	} else {
		img, fut, err = framing.Upload[[4]uint8, format.RGBA8](q, f, src)
	}
	if err != nil {
		return nil, err
	}
	if err := fut.Wait(); err != nil {
		img.Destroy()
		return nil, err
	}
	return img, nil
}

// readBack copies layer 0 of img into a buffer of T and converts it to RGBA8.
func readBack[T any](q *device.Queue, img *device.Image, toRGBA func(T) format.RGBA8) ([]format.RGBA8, error) {
	dims := img.Dimensions()
	raw, err := gpubuf.New[T](q, dims.Width*dims.Height, "framecheck_readback")
	if err != nil {
		return nil, err
	}
	inFlight := false
	defer func() {
		// A buffer the GPU may still write is leaked rather than freed.
		if !inFlight {
			raw.Destroy()
		}
	}()

	buf, err := framing.NewBuffer(raw, dims.Width, dims.Height)
	if err != nil {
		return nil, err
	}
	fut, err := framing.CopyToBuffer(q, img, 0, buf)
	if err != nil {
		return nil, err
	}
	if err := fut.Wait(); err != nil {
		fut.Release()
		inFlight = !fut.Done()
		return nil, err
	}

	r, err := buf.Read()
	if err != nil {
		return nil, err
	}
	defer r.Release()

	out := make([]format.RGBA8, 0, dims.Texels())
	for p := range framing.Pixels[T](r) {
		out = append(out, toRGBA(p))
	}
	return out, nil
}
