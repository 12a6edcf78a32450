package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	fx "github.com/robotalks/fes.go/pkg/framework"
)

// Feed streams the status of a Stimulator to WebSocket clients as JSON
// messages.
type Feed struct {
	Source    Source
	MachineID string
	Interval  time.Duration
}

// Handler returns the WebSocket handler.
func (f *Feed) Handler() websocket.Handler {
	return websocket.Handler(f.serve)
}

func (f *Feed) serve(conn *websocket.Conn) {
	defer conn.Close()
	interval := f.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	ctx := conn.Request().Context()
	glog.V(1).Infof("feed client %s connected", conn.Request().RemoteAddr)
	for {
		if err := websocket.JSON.Send(conn, StatusOf(f.Source, f.MachineID, time.Now())); err != nil {
			glog.V(1).Infof("feed client %s: %v", conn.Request().RemoteAddr, err)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// NewRouter creates the HTTP status server:
//
//	GET /status     current status in JSON
//	GET /status.pb  current status in protobuf
//	GET /feed       WebSocket status feed
func NewRouter(feed *Feed) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, StatusOf(feed.Source, feed.MachineID, time.Now()))
	})
	r.GET("/status.pb", func(c *gin.Context) {
		payload, err := StatusOf(feed.Source, feed.MachineID, time.Now()).Encode()
		if err != nil {
			c.AbortWithError(http.StatusInternalServerError, err)
			return
		}
		c.Data(http.StatusOK, "application/x-protobuf", payload)
	})
	r.GET("/feed", gin.WrapH(feed.Handler()))
	return r
}

// Server runs an HTTP server until canceled.
type Server struct {
	Addr    string
	Handler http.Handler
}

// Run implements framework.Runnable.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.Addr, Handler: s.Handler}
	glog.Infof("HTTP status on %s", s.Addr)
	return fx.RunWithContextCloser(ctx, srv, func() error {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})
}
