// Command gpucachedemo streams synthetic block updates through a GPU
// cache and reports per-frame statistics.
//
// With the software backend the final cache texture can be written as a
// PNG, one pixel per block, downscaled by -scale.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"log"
	"log/slog"
	"math/rand"
	"os"

	"golang.org/x/image/draw"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/gpucache"
	"github.com/gogpu/gpucache/backend"

	// Register the native backend.
	_ "github.com/gogpu/gpucache/backend/native"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML config file")
		backendArg = flag.String("backend", "", "backend name (default: best available)")
		frames     = flag.Int("frames", 0, "number of frames")
		blocks     = flag.Int("blocks", 0, "blocks written per frame")
		scatter    = flag.Bool("scatter", false, "use the scatter bus when supported")
		stress     = flag.Bool("stress", false, "reallocate the texture every frame")
		output     = flag.String("output", "", "write the cache texture to this PNG")
		verbose    = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	cfg, err := Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			cfg.Backend = *backendArg
		case "frames":
			cfg.Frames = *frames
		case "blocks":
			cfg.BlocksPerFrame = *blocks
		case "scatter":
			cfg.Scatter = *scatter
		case "stress":
			cfg.ResizeStress = *stress
		case "output":
			cfg.Output = *output
		}
	})
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	if *verbose {
		gpucache.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	b, err := openBackend(cfg.Backend)
	if err != nil {
		log.Fatalf("Failed to open backend: %v", err)
	}
	defer b.Close()

	if err := run(cfg, b); err != nil {
		log.Fatalf("Demo failed: %v", err)
	}
}

func openBackend(name string) (backend.DeviceBackend, error) {
	if name == "" {
		return backend.InitDefault()
	}
	b := backend.Get(name)
	if b == nil {
		return nil, fmt.Errorf("%w: %q (available: %v)", backend.ErrBackendNotAvailable, name, backend.Available())
	}
	if err := b.Init(); err != nil {
		return nil, err
	}
	return b, nil
}

func run(cfg Config, b backend.DeviceBackend) error {
	opts := []gpucache.Option{gpucache.WithScatterUpdates(cfg.Scatter)}
	if cfg.MaxRows > 0 {
		opts = append(opts, gpucache.WithMaxTextureSize(cfg.MaxRows))
	}
	if cfg.ResizeStress {
		opts = append(opts, gpucache.WithDebugFlags(gpucache.DebugResizeStress))
	}

	cache, err := gpucache.NewCache(b.Device(), opts...)
	if err != nil {
		return err
	}
	defer cache.Close()

	p := message.NewPrinter(language.English)
	p.Printf("backend %s, %v bus, %s\n", b.Name(), cache.BusKind(), cache.Capabilities())

	w := newWorkload(cfg)
	var total gpucache.FrameStats
	for frame := 1; frame <= cfg.Frames; frame++ {
		//nolint:gosec // G115: frame is positive
		if list, ok := w.frame(gpucache.FrameID(frame)); ok {
			cache.Enqueue(list)
		}
		stats, err := cache.Update()
		if err != nil {
			return fmt.Errorf("frame %d: %w", frame, err)
		}
		total.Lists += stats.Lists
		total.RowsUpdated += stats.RowsUpdated
		total.BlocksUpdated += stats.BlocksUpdated
		total.UploadTime += stats.UploadTime
		if stats.Resized || stats.Cleared {
			p.Printf("frame %d: %v\n", frame, stats)
		}
	}

	p.Printf("%d frames, %d lists, %d blocks, %d rows uploaded in %v\n",
		cfg.Frames, total.Lists, total.BlocksUpdated, total.RowsUpdated, total.UploadTime)
	p.Printf("texture %d rows, %v\n", cache.Texture().Height(), cache.MemoryReport())
	for _, e := range cache.Errors() {
		p.Printf("error: %v\n", e)
	}

	if cfg.Output == "" {
		return nil
	}
	sw, ok := b.(*backend.SoftwareBackend)
	if !ok {
		p.Printf("skipping %s: texture readback needs the software backend\n", cfg.Output)
		return nil
	}
	return writeTexture(cfg.Output, sw.SoftwareDevice(), cache, cfg.Scale)
}

// workload allocates, rewrites and frees runs of blocks like a renderer
// caching per-primitive data.
type workload struct {
	cfg     Config
	rng     *rand.Rand
	builder *gpucache.UpdateBuilder
	live    []liveRun
}

type liveRun struct {
	addr gpucache.Address
	n    int
}

func newWorkload(cfg Config) *workload {
	return &workload{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(cfg.Seed)), //nolint:gosec // G404: demo data
		builder: gpucache.NewUpdateBuilder(gpucache.NewBlockAllocator()),
	}
}

func (w *workload) frame(id gpucache.FrameID) (gpucache.UpdateList, bool) {
	if w.cfg.ClearEvery > 0 && int(id)%w.cfg.ClearEvery == 0 {
		w.builder.RequestClear()
		w.live = w.live[:0]
	}
	if w.cfg.FreeEvery > 0 && len(w.live) > 0 && int(id)%w.cfg.FreeEvery == 0 {
		i := w.rng.Intn(len(w.live))
		w.builder.Allocator().Free(w.live[i].addr)
		w.live = append(w.live[:i], w.live[i+1:]...)
	}

	for written := 0; written < w.cfg.BlocksPerFrame; {
		n := 1 + w.rng.Intn(w.cfg.MaxRunLength)
		blocks := make([]gpucache.Block, n)
		for i := range blocks {
			blocks[i] = gpucache.Block{w.rng.Float32(), w.rng.Float32(), w.rng.Float32(), 1}
		}
		// Rewrite a live run in place half the time.
		if len(w.live) > 0 && w.rng.Intn(2) == 0 {
			r := w.live[w.rng.Intn(len(w.live))]
			w.builder.Push(r.addr, blocks[:min(n, r.n)]...)
			written += min(n, r.n)
			continue
		}
		addr, err := w.builder.Allocate(blocks...)
		if err != nil {
			break
		}
		w.live = append(w.live, liveRun{addr: addr, n: n})
		written += n
	}
	return w.builder.Finish(id)
}

// writeTexture saves the cache texture as a PNG. Each block becomes one
// pixel with its components clamped to [0, 1].
func writeTexture(path string, dev *backend.SoftwareDevice, cache *gpucache.Cache, scale int) error {
	if cache.Texture().Height() == 0 {
		return fmt.Errorf("no cache texture to write")
	}
	data, desc, err := dev.ReadTexture(cache.Texture().TextureID())
	if err != nil {
		return err
	}

	src := image.NewNRGBA(image.Rect(0, 0, desc.Width, desc.Height))
	for i := 0; i < desc.Width*desc.Height; i++ {
		blk := gpucache.BlockFromBytes(data[i*gpucache.BlockSize:])
		for c := 0; c < 4; c++ {
			src.Pix[i*4+c] = unorm8(blk[c])
		}
	}

	dstRect := image.Rect(0, 0, max(1, desc.Width/scale), max(1, desc.Height/scale))
	dst := image.NewNRGBA(dstRect)
	draw.ApproxBiLinear.Scale(dst, dstRect, src, src.Bounds(), draw.Src, nil)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, dst); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Printf("Cache texture saved to %s (%dx%d)\n", path, dstRect.Dx(), dstRect.Dy())
	return nil
}

func unorm8(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 255
	}
	return uint8(v*255 + 0.5)
}
