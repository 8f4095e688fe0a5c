package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	orderDomain "github.com/davicafu/deliverylab/internal/order/domain"
	"github.com/davicafu/deliverylab/pkg/utils"
)

// RegisterValidators añade la regla order_status al validador de gin.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("order_status", func(fl validator.FieldLevel) bool {
		return orderDomain.OrderStatus(fl.Field().String()).Valid()
	})
}

func RegisterOrderRoutes(r *gin.Engine, handler *OrderHandler) {
	orders := r.Group("/orders")
	{
		orders.POST("", handler.CreateOrder)
		orders.POST("/clear-completed", handler.ClearCompleted)
		orders.GET("/:id", handler.GetOrder)
		orders.PUT("/:id/status", handler.UpdateOrderStatus)
	}
	r.GET("/customers/:id/orders", handler.ListCustomerOrders)
	r.GET("/restaurants/:id/orders", handler.ListRestaurantOrders)
}

// NewRouter monta el engine con recovery, CORS, log de peticiones y las rutas.
func NewRouter(handler *OrderHandler, corsOrigins []string, log *zap.Logger) (*gin.Engine, error) {
	if err := RegisterValidators(); err != nil {
		return nil, err
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	corsCfg := cors.DefaultConfig()
	if len(corsOrigins) == 0 || (len(corsOrigins) == 1 && corsOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = corsOrigins
	}
	router.Use(cors.New(corsCfg))

	RegisterOrderRoutes(router, handler)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.NoRoute(func(c *gin.Context) {
		utils.SendNotFound(c, "route not found")
	})
	return router, nil
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
