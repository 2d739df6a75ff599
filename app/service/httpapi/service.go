package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"time"
	"weatherbot/app/config"
	"weatherbot/app/report"
	"weatherbot/app/service/weather"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/samber/do"
)

var _ do.Shutdownable = (*Service)(nil)

var validate = validator.New()

const shutdownTimeout = 10 * time.Second

type Service struct {
	listen     string
	app        *fiber.App
	weatherSvc *weather.Service
	renderer   *report.Renderer
}

type reportQuery struct {
	City string `validate:"required,max=128"`
}

type toggleRequest struct {
	Token string `json:"token" validate:"required"`
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)
	return NewService(cfg.HTTP.Listen, do.MustInvoke[*weather.Service](di)), nil
}

func NewService(listen string, weatherSvc *weather.Service) *Service {
	s := &Service{
		listen:     listen,
		weatherSvc: weatherSvc,
		renderer:   report.NewRenderer(weatherSvc.Catalog(), report.PlainText),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               "weatherbot",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fiberErr *fiber.Error
			if errors.As(err, &fiberErr) {
				code = fiberErr.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})
	s.app.Use(recover.New())

	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weatherbot",
		})
	})

	v1 := s.app.Group("/api/v1")
	v1.Get("/report", s.handleReport)
	v1.Post("/toggle", s.handleToggle)

	return s
}

// App exposes the fiber app for tests.
func (s *Service) App() *fiber.App {
	return s.app
}

// Start listens in the background. An empty listen address disables the API.
func (s *Service) Start() {
	if s.listen == "" {
		slog.Info("HTTP API disabled")
		return
	}

	go func() {
		slog.Info("HTTP API listening", "addr", s.listen)
		if err := s.app.Listen(s.listen); err != nil {
			slog.Error("HTTP API stopped", "error", err)
		}
	}()
}

func (s *Service) handleReport(c *fiber.Ctx) error {
	query := reportQuery{City: c.Query("city")}
	if err := validate.Struct(query); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	snapshot, state, err := s.weatherSvc.Fetch(c.UserContext(), query.City)
	if err != nil {
		slog.Warn("HTTP report fetch failed", "city", query.City, "error", err)
		return fiber.NewError(fiber.StatusBadGateway, weather.FailureMessage(err))
	}

	view, err := s.weatherSvc.View(s.renderer, snapshot, state)
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, weather.FailureMessage(err))
	}

	return c.JSON(view)
}

func (s *Service) handleToggle(c *fiber.Ctx) error {
	var req toggleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	view, err := s.weatherSvc.Toggle(s.renderer, req.Token)
	if errors.Is(err, report.ErrCorruptToken) {
		return fiber.NewError(fiber.StatusBadRequest, "corrupt toggle token")
	}
	if err != nil {
		return fiber.NewError(fiber.StatusBadGateway, weather.FailureMessage(err))
	}

	return c.JSON(view)
}

func (s *Service) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return s.app.ShutdownWithContext(ctx)
}
