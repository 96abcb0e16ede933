// Package dashboard serves an HTML view of a running engine's output
// over plain net/http: the accessibility summary rendered as text, and
// a go-echarts line chart with one line of LOD bucket means per visible
// series. It exists for debugging and demos, not as vizcore's primary
// rendering path — that's whatever Surface the caller is driving.
package dashboard

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"time"

	"github.com/billyribeiro-ux/vizcore/internal/a11y"
	"github.com/billyribeiro-ux/vizcore/internal/lod"
	"github.com/billyribeiro-ux/vizcore/internal/monitoring"
	"github.com/billyribeiro-ux/vizcore/internal/seriesdata"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// SeriesSource supplies the live series set and viewport the dashboard
// renders against. The engine's own accessors satisfy this directly.
type SeriesSource interface {
	VisibleSeries() []seriesdata.Series
	Viewport() seriesdata.Viewport
}

// Server is a minimal debug HTTP server over a SeriesSource.
type Server struct {
	address string
	source  SeriesSource
	server  *http.Server
}

// NewServer builds a dashboard server bound to addr (e.g. "127.0.0.1:8090").
func NewServer(addr string, source SeriesSource) *Server {
	s := &Server{address: addr, source: source}
	mux := http.NewServeMux()
	s.registerRoutes(mux)
	s.server = &http.Server{Addr: addr, Handler: mux}
	return s
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/debug/vizcore/summary", s.handleSummary)
	mux.HandleFunc("/debug/vizcore/envelope", s.handleEnvelopeChart)
}

const indexHTML = `<!doctype html>
<html><head><title>vizcore debug dashboard</title></head>
<body>
<h1>vizcore</h1>
<p><a href="/debug/vizcore/summary">accessibility summary</a></p>
<p><a href="/debug/vizcore/envelope">LOD envelope chart</a></p>
</body></html>
`

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(indexHTML))
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	summary := a11y.Summarize(s.source.VisibleSeries())
	text := a11y.Render(summary)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(html.EscapeString(text)))
}

// handleEnvelopeChart downsamples each visible series to the
// viewport's pixel width and plots each bucket's mean (AvgY) as one
// line per series in a single go-echarts line chart. The min/max band
// is not drawn.
func (s *Server) handleEnvelopeChart(w http.ResponseWriter, r *http.Request) {
	series := s.source.VisibleSeries()
	viewport := s.source.Viewport()
	target := int(viewport.InnerWidth())
	if target < 100 {
		target = 100
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "vizcore LOD envelope", Theme: "dark", Width: "960px", Height: "540px"}),
		charts.WithTitleOpts(opts.Title{Title: "LOD envelope", Subtitle: fmt.Sprintf("%d series, target %d buckets", len(series), target)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "x"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "y"}),
	)

	var xAxis []string
	for _, s := range series {
		if !s.Visible {
			continue
		}
		result := lod.Downsample(s.Data, target, lod.DefaultConfig(), nil)
		meanData := make([]opts.LineData, 0, len(result.Buckets))
		if xAxis == nil {
			for _, b := range result.Buckets {
				xAxis = append(xAxis, fmt.Sprintf("%.2f", b.TStart))
			}
		}
		for _, b := range result.Buckets {
			meanData = append(meanData, opts.LineData{Value: b.AvgY})
		}
		name := s.Name
		if name == "" {
			name = s.ID
		}
		line.AddSeries(name, meanData)
	}
	line.SetXAxis(xAxis)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := line.Render(w); err != nil {
		monitoring.Logf("dashboard: render envelope chart: %v", err)
	}
}

// Start runs the HTTP server until ctx is cancelled, then shuts it
// down gracefully with a short deadline.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		monitoring.Logf("dashboard: listening on %s", s.address)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			monitoring.Logf("dashboard: server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return s.server.Close()
	}
	return nil
}
