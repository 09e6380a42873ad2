// Package metrics owns the Prometheus registry served on the admin surface. Next
// to the runtime collectors it exports the build and the mosaic settings the
// process runs with, plus the live size of the sample cache.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type BuildInfo struct {
	Version   string
	Revision  string
	Branch    string
	BuildDate string
}

// Runtime is the configuration a mosaic process was started with.
type Runtime struct {
	TargetCRS    string
	SampleScope  string
	Redis        bool
	Invalidation bool
}

type Config struct {
	Build   BuildInfo
	Runtime Runtime
}

type Provider struct {
	reg *prometheus.Registry
}

func Init(cfg Config) *Provider {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	b := cfg.Build
	if b.Version == "" {
		b.Version = "dev"
	}
	rt := cfg.Runtime
	reg.MustRegister(
		infoGauge("stac_mosaic_build_info", "Build of this binary (value is always 1).", prometheus.Labels{
			"version": b.Version, "revision": b.Revision, "branch": b.Branch, "build_date": b.BuildDate,
		}),
		infoGauge("stac_mosaic_runtime_info", "Mosaic settings of this process (value is always 1).", prometheus.Labels{
			"target_crs":   rt.TargetCRS,
			"sample_scope": rt.SampleScope,
			"redis":        strconv.FormatBool(rt.Redis),
			"invalidation": strconv.FormatBool(rt.Invalidation),
		}),
	)
	return &Provider{reg: reg}
}

func infoGauge(name, help string, labels prometheus.Labels) prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: help, ConstLabels: labels})
	g.Set(1)
	return g
}

// TrackSampleCache exports n as sample_cache_entries. n is called on every scrape.
func (p *Provider) TrackSampleCache(n func() int) {
	p.reg.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "sample_cache_entries",
			Help: "Sample items held by the in-process cache.",
		},
		func() float64 { return float64(n()) },
	))
}

func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.reg, promhttp.HandlerOpts{Registry: p.reg})
}

func (p *Provider) Registerer() prometheus.Registerer { return p.reg }
