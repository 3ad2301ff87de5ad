package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/akylbek/payment-system/paypal-checkout/internal/handlers"
	"github.com/akylbek/payment-system/paypal-checkout/internal/session"
	"github.com/akylbek/payment-system/paypal-checkout/internal/telemetry"
)

type RouterOptions struct {
	Debug        bool
	SecureCookie bool
}

func NewRouter(payments *handlers.PaymentHandler, states *handlers.PaymentStateHandler, opts RouterOptions) *gin.Engine {
	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(telemetry.TracingMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "paypal-checkout"})
	})

	r.GET("/payments/:id/state", states.GetPaymentState)

	browser := r.Group("/", session.Middleware(opts.SecureCookie))
	browser.GET("", payments.Welcome)
	browser.GET("home", payments.Home)
	browser.GET("payment", payments.StartPayment)
	browser.POST("payment", payments.CreatePayment)
	browser.GET("payment/status", payments.PaymentStatus)

	return r
}
