package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/dutybill/internal/audit"
	"github.com/smallbiznis/dutybill/internal/billing"
	billingdomain "github.com/smallbiznis/dutybill/internal/billing/domain"
	"github.com/smallbiznis/dutybill/internal/config"
	"github.com/smallbiznis/dutybill/internal/observability"
	obslogger "github.com/smallbiznis/dutybill/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/dutybill/internal/observability/metrics"
	"github.com/smallbiznis/dutybill/internal/pricingrule"
	"github.com/smallbiznis/dutybill/internal/trip"
	"github.com/smallbiznis/dutybill/internal/triplock"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	trip.Module,
	pricingrule.Module,
	audit.Module,
	triplock.Module,
	billing.Module,
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, registry *prometheus.Registry, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, s *Server, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	BillingSvc billingdomain.Service
}

type Server struct {
	engine     *gin.Engine
	billingSvc billingdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		billingSvc: p.BillingSvc,
	}

	svc.registerAPIRoutes()
	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	trips := api.Group("/trips/:id")
	{
		trips.GET("/bill/lines", s.GenerateBillLines)
		trips.GET("/bill/preview", s.PreviewBill)
		trips.POST("/bill", s.GenerateBill)
		trips.GET("/bill", s.GetActiveBillForTrip)
	}

	bills := api.Group("/bills/:id")
	{
		bills.GET("", s.GetBill)
		bills.GET("/events", s.ListBillEvents)
		bills.POST("/finalize", s.FinalizeBill)
		bills.POST("/cancel", s.CancelBill)
	}
}
