package httpapi

import (
	"context"
	"errors"
	"log"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	"github.com/i474232898/weather-forecast/internal/scheduler"
	"github.com/i474232898/weather-forecast/internal/weather"
)

const (
	serviceName  = "weather-forecast"
	requestIDKey = "requestid"

	// statusClientClosedRequest is reported when the caller went away or the
	// server is shutting down mid-request.
	statusClientClosedRequest = 499
)

var validate = validator.New()

// ForecastService is the pipeline behind the forecast endpoint.
type ForecastService interface {
	GetForecast(ctx context.Context, country, start, end string) (weather.ForecastResponse, error)
}

// HealthReporter exposes the latest upstream probe outcome.
type HealthReporter interface {
	Status() scheduler.Status
}

// NewApp builds the fiber app with the centralized error handler and global middleware.
func NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          90 * time.Second,
		ErrorHandler:          errorHandler,
	})

	app.Use(requestID())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${locals:requestid} ${status} - ${latency} ${method} ${path}?${queryParams}\n",
	}))
	app.Use(recover.New())

	return app
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service ForecastService, health HealthReporter, requestTimeout time.Duration) {
	app.Get("/health", func(c *fiber.Ctx) error {
		status := "ok"
		probe := health.Status()
		if probe.Enabled && !probe.Healthy {
			status = "degraded"
		}
		return c.JSON(fiber.Map{
			"status":  status,
			"service": serviceName,
			"probe":   probe,
		})
	})

	handler := forecastHandler(service, requestTimeout)

	app.Get("/countries/:country/forecast", handler)

	v1 := app.Group("/api/v1")
	v1.Get("/countries/:country/forecast", handler)
}

// forecastQuery holds the path and query parameters of the forecast endpoint.
// Date format is checked by the window resolver so it can report ErrInvalidDate.
type forecastQuery struct {
	Country string `validate:"required,max=200"`
	Start   string `validate:"omitempty,max=10"`
	End     string `validate:"omitempty,max=10"`
}

func (q *forecastQuery) bind(c *fiber.Ctx) error {
	country, err := url.PathUnescape(c.Params("country"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid country")
	}
	q.Country = country
	q.Start = c.Query("start")
	q.End = c.Query("end")

	if err := validate.Struct(q); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return nil
}

func forecastHandler(service ForecastService, timeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var q forecastQuery
		if err := q.bind(c); err != nil {
			return err
		}

		ctx := c.UserContext()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		resp, err := service.GetForecast(ctx, q.Country, q.Start, q.End)
		if err != nil {
			return err
		}
		return c.JSON(resp)
	}
}

func requestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(fiber.HeaderXRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(fiber.HeaderXRequestID, id)
		c.Locals(requestIDKey, id)
		return c.Next()
	}
}

// errorHandler renders every error as {"error": message, "code": status}.
func errorHandler(c *fiber.Ctx, err error) error {
	code, message := statusFor(err)
	if code == statusClientClosedRequest {
		log.Printf("INFO: [%v] %s %s cancelled: %v", c.Locals(requestIDKey), c.Method(), c.OriginalURL(), err)
	}
	if code >= fiber.StatusInternalServerError {
		log.Printf("ERROR: [%v] %s %s: %v", c.Locals(requestIDKey), c.Method(), c.OriginalURL(), err)
	}
	return c.Status(code).JSON(fiber.Map{
		"error": message,
		"code":  code,
	})
}

func statusFor(err error) (int, string) {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, fe.Message
	}

	var pe *weather.ProviderError
	switch {
	case errors.Is(err, weather.ErrInvalidDate), errors.Is(err, weather.ErrInvalidRange):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, weather.ErrLocationNotFound):
		return fiber.StatusNotFound, err.Error()
	case errors.Is(err, weather.ErrInsufficientHistory):
		return fiber.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, context.Canceled):
		return statusClientClosedRequest, "request cancelled"
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout, "upstream request timed out"
	case errors.Is(err, weather.ErrCircuitOpen):
		return fiber.StatusServiceUnavailable, err.Error()
	case errors.As(err, &pe):
		return fiber.StatusBadGateway, err.Error()
	default:
		return fiber.StatusInternalServerError, "internal server error"
	}
}
