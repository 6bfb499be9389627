package api

import (
	"errors"
	"net/http"
	"time"

	"tradehook/internal/bracket"
	"tradehook/internal/events"
	"tradehook/internal/metadata"
	"tradehook/internal/sweep"

	"github.com/gin-gonic/gin"
)

// Server wires HTTP endpoints around the bracket engine.
type Server struct {
	Router    *gin.Engine
	Engine    *bracket.Engine
	Sweeper   *sweep.Sweeper
	Bus       *events.Bus
	JWTSecret string
	Exchange  string
}

// NewServer builds the router. allowedIPs scopes the webhook route to the
// signal provider's addresses; management routes additionally require a
// bearer token when jwtSecret is set.
func NewServer(engine *bracket.Engine, sweeper *sweep.Sweeper, bus *events.Bus, exchange, jwtSecret string, allowedIPs []string) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLogger())
	r.Use(RateLimitMiddleware())
	r.Use(TimeoutMiddleware(30 * time.Second))

	s := &Server{
		Router:    r,
		Engine:    engine,
		Sweeper:   sweeper,
		Bus:       bus,
		JWTSecret: jwtSecret,
		Exchange:  exchange,
	}
	s.routes(allowedIPs)
	return s
}

func (s *Server) routes(allowedIPs []string) {
	s.Router.GET("/health", s.health)

	api := s.Router.Group("/api/:exchange", s.checkExchange)
	{
		// The webhook route trusts source IP, not tokens: the signal
		// provider posts fire-and-forget and cannot refresh credentials.
		api.POST("/order", IPAllowlistMiddleware(allowedIPs), s.createOrder)

		protected := api.Group("")
		protected.Use(AuthMiddleware(s.JWTSecret))
		{
			protected.GET("/position/:symbol", s.getPosition)
			protected.POST("/position/:symbol/close", s.closePosition)
			protected.POST("/orders/:symbol/cancel", s.cancelOrders)
			protected.POST("/sweep", s.runSweep)
			protected.GET("/balance", s.getBalance)
		}
	}
}

// checkExchange rejects routes addressed to an exchange this process is
// not trading on. One process serves one venue.
func (s *Server) checkExchange(c *gin.Context) {
	if c.Param("exchange") != s.Exchange {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
			"code":  "UNKNOWN_EXCHANGE",
			"error": "exchange not served by this instance",
		})
		return
	}
	c.Next()
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "exchange": s.Exchange})
}

// createOrder is the webhook entry point: it validates the signal and
// runs the full bracket sequence synchronously, so the response reports
// the final outcome including any rollback.
func (s *Server) createOrder(c *gin.Context) {
	var req bracket.OrderRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "INVALID_PAYLOAD",
			"error": "invalid request payload",
		})
		return
	}

	result, err := s.Engine.CreateBracket(c.Request.Context(), req)
	if err != nil {
		s.writeBracketError(c, result, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) writeBracketError(c *gin.Context, result *bracket.Result, err error) {
	var (
		validationErr *bracket.ValidationError
		positionErr   *bracket.PositionExistsError
		partialErr    *bracket.PartialBracketFailure
	)
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"code":  "INVALID_SIGNAL",
			"error": validationErr.Error(),
		})
	case errors.As(err, &positionErr):
		c.JSON(http.StatusConflict, gin.H{
			"code":   "POSITION_EXISTS",
			"error":  positionErr.Error(),
			"symbol": positionErr.Symbol,
		})
	case errors.Is(err, metadata.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":  "METADATA_UNAVAILABLE",
			"error": err.Error(),
		})
	case errors.As(err, &partialErr):
		body := gin.H{
			"code":      "BRACKET_ROLLED_BACK",
			"error":     partialErr.Error(),
			"leg":       partialErr.Leg,
			"flattened": partialErr.Flattened,
		}
		if result != nil {
			body["result"] = result
		}
		c.JSON(http.StatusBadGateway, body)
	default:
		c.JSON(http.StatusBadGateway, gin.H{
			"code":  "ORDER_FAILED",
			"error": err.Error(),
		})
	}
}

func (s *Server) getPosition(c *gin.Context) {
	symbol := c.Param("symbol")
	pos, ok, err := s.Engine.GetPosition(c.Request.Context(), symbol)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"code":  "EXCHANGE_ERROR",
			"error": err.Error(),
		})
		return
	}
	if !ok {
		c.JSON(http.StatusOK, gin.H{"symbol": symbol, "open": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "open": true, "position": pos})
}

func (s *Server) closePosition(c *gin.Context) {
	symbol := c.Param("symbol")
	if err := s.Engine.ClosePosition(c.Request.Context(), symbol); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"code":  "EXCHANGE_ERROR",
			"error": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "closed": true})
}

func (s *Server) cancelOrders(c *gin.Context) {
	symbol := c.Param("symbol")
	if err := s.Engine.CancelAllOrders(c.Request.Context(), symbol); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"code":  "EXCHANGE_ERROR",
			"error": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": symbol, "cancelled": true})
}

func (s *Server) runSweep(c *gin.Context) {
	s.Sweeper.RunOnce(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"swept": true})
}

func (s *Server) getBalance(c *gin.Context) {
	balances, err := s.Engine.Balance(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"code":  "EXCHANGE_ERROR",
			"error": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"balances": balances})
}

func (s *Server) Start(addr string) error {
	return s.Router.Run(addr)
}
