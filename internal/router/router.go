// Package router wires handlers and middleware onto the Echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/seatwatch/internal/handler"
	"github.com/iliyamo/seatwatch/internal/middleware"
	"github.com/iliyamo/seatwatch/internal/model"
)

// Handlers groups everything the routes need.
type Handlers struct {
	Auth  *handler.AuthHandler
	Seats *handler.SeatHandler
	Admin *handler.AdminHandler

	JWTSecret string
	Cache     echo.MiddlewareFunc // applied to public seat reads
	RateLimit echo.MiddlewareFunc // applied to /v1/auth
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

// Register mounts every route.
func Register(e *echo.Echo, h Handlers) {
	if h.Cache == nil {
		h.Cache = passThrough
	}
	if h.RateLimit == nil {
		h.RateLimit = passThrough
	}
	jwt := middleware.JWTAuth(h.JWTSecret)

	e.GET("/healthz", handler.Health)

	auth := e.Group("/v1/auth", h.RateLimit)
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/logout", h.Auth.Logout, jwt)

	e.GET("/v1/me", h.Auth.Me, jwt)

	floors := e.Group("/v1/floors")
	floors.GET("", h.Seats.ListFloors, h.Cache)
	floors.GET("/:floor/seats", h.Seats.ListSeats, h.Cache)
	floors.GET("/:floor/seats/:seat", h.Seats.GetSeat, h.Cache)
	floors.GET("/:floor/seats/:seat/stats", h.Seats.SeatStats, h.Cache)
	floors.POST("/:floor/refresh", h.Seats.Refresh, jwt)
	floors.POST("/:floor/seats/:seat/report", h.Seats.Report, jwt)

	admin := e.Group("/v1/admin", jwt, middleware.RequireRole(model.RoleAdmin))
	admin.GET("/anomalies", h.Admin.Anomalies)
	admin.GET("/floors/:floor/seats", h.Admin.ListSeats)
	admin.POST("/floors/:floor/seats/:seat/confirm", h.Admin.Confirm)
	admin.POST("/floors/:floor/seats/:seat/dismiss", h.Admin.Dismiss)
	admin.POST("/floors/:floor/seats/:seat/lock", h.Admin.Lock)
}
