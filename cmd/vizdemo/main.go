// Command vizdemo is a self-contained demonstration host for the
// vizcore render core: it generates a handful of synthetic series,
// drives the Engine through a small fixed render loop, serves the
// debug dashboard over HTTP, and exposes tier health over gRPC.
//
// It exists for the same reason the teacher's cmd/radar binary wires
// every optional subsystem behind flags: a single process a developer
// can point a browser and grpcurl at without assembling their own
// harness.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/billyribeiro-ux/vizcore/internal/config"
	"github.com/billyribeiro-ux/vizcore/internal/dashboard"
	"github.com/billyribeiro-ux/vizcore/internal/demosurface"
	"github.com/billyribeiro-ux/vizcore/internal/engine"
	"github.com/billyribeiro-ux/vizcore/internal/eventbridge"
	"github.com/billyribeiro-ux/vizcore/internal/events"
	"github.com/billyribeiro-ux/vizcore/internal/sessionstore"
	"github.com/billyribeiro-ux/vizcore/internal/seriesdata"
	"github.com/billyribeiro-ux/vizcore/internal/surface"
	"github.com/billyribeiro-ux/vizcore/internal/version"
	"google.golang.org/grpc"
)

var (
	dashboardListen = flag.String("dashboard-listen", ":8090", "HTTP listen address for the debug dashboard")
	grpcListen      = flag.String("grpc-listen", ":8091", "gRPC listen address for the tier health service")
	dbPath          = flag.String("db-path", "vizdemo_session.db", "path to the sqlite session store file")
	seriesCount     = flag.Int("series-count", 3, "number of synthetic demo series to generate")
	pointsPerSeries = flag.Int("points-per-series", 20000, "number of points to generate per demo series")
	tickInterval    = flag.Duration("tick", 500*time.Millisecond, "interval between synthetic render frames")
	configFile      = flag.String("config", "", "path to a JSON tuning configuration file (optional)")
	versionFlag     = flag.Bool("version", false, "print version information and exit")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if *versionFlag {
		fmt.Printf("vizdemo v%s (git SHA: %s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		os.Exit(0)
	}

	class := config.DetectClass()
	opts := config.Defaults(class)
	if *configFile != "" {
		loaded, err := config.LoadOptions(*configFile, class)
		if err != nil {
			log.Fatalf("load config %s: %v", *configFile, err)
		}
		opts = loaded
	}
	if err := opts.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	store, err := sessionstore.Open(*dbPath)
	if err != nil {
		log.Fatalf("open session store %s: %v", *dbPath, err)
	}
	defer store.Close()

	bus := events.NewBus()
	defer bus.Close()

	eng := engine.New(opts, bus, store)

	vectorFile, err := os.Create("vizdemo_vector.svg")
	if err != nil {
		log.Fatalf("create vector output file: %v", err)
	}
	defer vectorFile.Close()
	rasterFile, err := os.Create("vizdemo_raster.png")
	if err != nil {
		log.Fatalf("create raster output file: %v", err)
	}
	defer rasterFile.Close()

	vector := demosurface.NewVector()
	raster := demosurface.NewRaster(1280, 720)
	if err := eng.RegisterSurface(config.TierVector, vector); err != nil {
		log.Fatalf("register vector surface: %v", err)
	}
	if err := eng.RegisterSurface(config.TierRaster, raster); err != nil {
		log.Fatalf("register raster surface: %v", err)
	}

	series := syntheticSeries(*seriesCount, *pointsPerSeries)
	viewport := seriesdata.Viewport{
		WidthPx: 1280, HeightPx: 720,
		XScale: seriesdata.LinearScale{DataMin: 0, DataMax: float64(*pointsPerSeries), PixelMin: 0, PixelMax: 1280},
		YScale: seriesdata.LinearScale{DataMin: -1.5, DataMax: 1.5, PixelMin: 720, PixelMax: 0},
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handles := map[config.TierName]surface.Handle{
		config.TierVector: vectorFile,
		config.TierRaster: rasterFile,
	}
	if err := eng.Start(ctx, handles, viewport); err != nil {
		log.Fatalf("start engine: %v", err)
	}
	defer eng.Shutdown()

	bridge := eventbridge.NewBridge(bus)
	defer bridge.Close()

	grpcServer := grpc.NewServer()
	bridge.Register(grpcServer)

	lis, err := net.Listen("tcp", *grpcListen)
	if err != nil {
		log.Fatalf("listen on %s: %v", *grpcListen, err)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("tier health gRPC service listening on %s", *grpcListen)
		if err := grpcServer.Serve(lis); err != nil {
			log.Printf("grpc server stopped: %v", err)
		}
	}()

	dash := dashboard.NewServer(*dashboardListen, eng)
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Printf("debug dashboard listening on %s", *dashboardListen)
		if err := dash.Start(ctx); err != nil {
			log.Printf("dashboard server stopped: %v", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runRenderLoop(ctx, eng, series, viewport, *tickInterval)
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	grpcServer.GracefulStop()
	wg.Wait()
}

// runRenderLoop drives the engine at a fixed cadence, nudging the
// synthetic series forward each tick so the tier engine has something
// to react to (phase-shifted sine waves standing in for live sensor
// data).
func runRenderLoop(ctx context.Context, eng *engine.Engine, series []seriesdata.Series, viewport seriesdata.Viewport, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var frame int64
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			frame++
			animate(series, frame)
			if _, err := eng.Render(series, viewport, now.UnixNano()); err != nil {
				log.Printf("render frame %d: %v", frame, err)
			}
		}
	}
}

func animate(series []seriesdata.Series, frame int64) {
	phase := float64(frame) * 0.1
	for i := range series {
		shift := float64(i) * 0.5
		for j := range series[i].Data {
			series[i].Data[j].Y = math.Sin(float64(j)*0.01 + phase + shift)
		}
	}
}

func syntheticSeries(count, pointsPerSeries int) []seriesdata.Series {
	out := make([]seriesdata.Series, 0, count)
	names := []string{"Alpha", "Bravo", "Charlie", "Delta", "Echo"}
	for i := 0; i < count; i++ {
		data := make([]seriesdata.DataPoint, pointsPerSeries)
		for j := 0; j < pointsPerSeries; j++ {
			data[j] = seriesdata.DataPoint{X: float64(j), Y: math.Sin(float64(j) * 0.01)}
		}
		out = append(out, seriesdata.Series{
			ID:      fmt.Sprintf("series-%d", i),
			Name:    names[i%len(names)],
			Visible: true,
			Data:    data,
		})
	}
	return out
}
