package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"net/http"
	"path"

	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/robotalks/bang.go/pkg/bridge"
	"github.com/robotalks/bang.go/pkg/config"
	"github.com/robotalks/bang.go/pkg/framework"
	"github.com/robotalks/bang.go/pkg/l0/comm"
)

func init() {
	config.SetupFlags()
}

// pushConfig configures the device once the channel is running and
// then idles, as any returning Runnable stops the daemon.
func pushConfig(cfg *config.Config, ch *comm.Channel) framework.RunnableFunc {
	return func(ctx context.Context) error {
		if err := cfg.Push(ctx, ch, ch.Registry); err != nil {
			return err
		}
		glog.Infof("device %s configured", cfg.Device.ID)
		<-ctx.Done()
		return ctx.Err()
	}
}

func serveMetrics(addr string, reg *prometheus.Registry) framework.RunnableFunc {
	return func(ctx context.Context) error {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		server := &http.Server{Addr: addr, Handler: mux}
		glog.Infof("serving metrics on %s", addr)
		return framework.RunWithContextCloser(ctx, server, server.ListenAndServe)
	}
}

func main() {
	flag.Parse()
	defer glog.Flush()

	cfg, err := config.Load()
	if err != nil {
		glog.Exitln(err)
	}

	ch, err := comm.Open(cfg.Device.URI)
	if err != nil {
		glog.Exitf("open %s: %v", cfg.Device.URI, err)
	}

	q, err := bridge.NewQueueFromURL(cfg.MQTT.URL)
	if err != nil {
		glog.Exitln(err)
	}
	if err = q.Connect(); err != nil {
		glog.Exitf("connect %s: %v", cfg.MQTT.URL, err)
	}
	defer q.Close()

	b := bridge.New(cfg.Device.ID, ch.Registry, ch, q)
	b.URI = cfg.Device.URI
	b.Odometry = cfg.NewOdometry()
	ch.Handler = &comm.LogHandler{Handler: b, Prefix: path.Join("device", cfg.Device.ID) + ": "}

	runner := framework.NewRunner().HandleSignals()
	if cfg.MetricsAddr != "" {
		reg := prometheus.NewRegistry()
		ch.Metrics = comm.NewMetrics("bang", prometheus.Labels{"device": cfg.Device.ID})
		if err = ch.Metrics.Register(reg); err != nil {
			glog.Exitln(err)
		}
		runner.Go(framework.NamedRun("metrics", serveMetrics(cfg.MetricsAddr, reg)))
	}
	runner.Go(
		framework.NamedRun("channel", ch),
		b,
		framework.NamedRun("config", pushConfig(cfg, ch)),
	)
	if err = runner.Wait(); err != nil {
		glog.Exitln(err)
	}
}
