package main

//go-build: CGO_ENABLED=0

import (
	"context"
	"flag"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/bang.go/pkg/framework"
	"github.com/robotalks/bang.go/pkg/l0/transport"
	"github.com/robotalks/bang.go/pkg/sim"
)

var (
	tcpAddr      = ":7700"
	wsAddr       = ""
	pollTimeout  = 10 * time.Millisecond
	odomInterval = sim.DefaultOdomInterval
	echo         bool
)

func init() {
	flag.StringVar(&tcpAddr, "listen", tcpAddr, "TCP address, empty to disable.")
	flag.StringVar(&wsAddr, "ws-listen", wsAddr, "Websocket address serving /, empty to disable.")
	flag.DurationVar(&pollTimeout, "poll", pollTimeout, "Read timeout of a single poll.")
	flag.DurationVar(&odomInterval, "odom-interval", odomInterval, "Odom report interval.")
	flag.BoolVar(&echo, "echo", echo, "Echo the type and size of every received message.")
}

func runFirmware(ctx context.Context, name string, rw io.ReadWriteCloser) {
	defer rw.Close()
	f := sim.NewFirmware(rw)
	f.OdomInterval, f.Echo = odomInterval, echo
	glog.Infof("%s: connected", name)
	err := f.Run(ctx)
	glog.Infof("%s: disconnected: %v", name, err)
}

func serveTCP(ctx context.Context) error {
	ln, err := net.Listen("tcp", tcpAddr)
	if err != nil {
		return err
	}
	glog.Infof("listening on %s", ln.Addr())
	return framework.RunWithContextCloser(ctx, ln, func() error {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return err
			}
			go runFirmware(ctx, conn.RemoteAddr().String(), transport.WithReadTimeout(conn, pollTimeout))
		}
	})
}

func serveWebSocket(ctx context.Context) error {
	handler := transport.WebSocketHandler(func(rw io.ReadWriteCloser) {
		if conn, ok := rw.(net.Conn); ok {
			rw = transport.WithReadTimeout(conn, pollTimeout)
		}
		runFirmware(ctx, "ws", rw)
	})
	server := &http.Server{Addr: wsAddr, Handler: handler}
	glog.Infof("serving websocket on %s", wsAddr)
	return framework.RunWithContextCloser(ctx, server, server.ListenAndServe)
}

func main() {
	flag.Parse()
	defer glog.Flush()

	runner := framework.NewRunner().HandleSignals()
	if tcpAddr != "" {
		runner.Go(framework.NamedRun("tcp", framework.RunnableFunc(serveTCP)))
	}
	if wsAddr != "" {
		runner.Go(framework.NamedRun("ws", framework.RunnableFunc(serveWebSocket)))
	}
	if len(runner.Runners) == 0 {
		glog.Exitln("nothing to serve")
	}
	if err := runner.Wait(); err != nil {
		glog.Exitln(err)
	}
}
