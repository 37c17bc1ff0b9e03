package handlers

import (
	"aicavalli-order-service/internal/config"
	"aicavalli-order-service/internal/services"

	"go.uber.org/zap"
)

type Handler struct {
	Logger *zap.Logger
	Config config.Config

	Orders    *services.OrderService
	Kitchen   *services.KitchenService
	Sessions  *services.SessionService
	Billing   *services.BillingService
	Menu      *services.MenuService
	Users     *services.UserService
	Analytics *services.AnalyticsService
}
