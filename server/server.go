// Package server exposes the publishing API over HTTP. It is thin glue: all
// feed semantics live in the index and feeds packages, this layer only
// parses requests, calls into the core and serializes the results.
package server

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"pressfeed/db"
	"pressfeed/feeds"
	"pressfeed/index"
)

type ServerConfig struct {

	// The database backing the publisher/interest/post route families
	DB *db.DB

	// The shared tag index instance
	Index *index.Index

	// The feed assembler answering feed requests
	Assembler *feeds.Assembler

	// Events receives engagement and retraction events for async persistence
	Events chan interface{}
}

// Returns a fiber.App instance to be used as the HTTP server for the
// publishing API
func Server(config *ServerConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "pressfeed",
	})

	// Attach a request id for log correlation
	app.Use(func(c *fiber.Ctx) error {
		requestId := c.Get("X-Request-Id")
		if requestId == "" {
			requestId = uuid.New().String()
		}
		c.Locals("requestId", requestId)
		c.Set("X-Request-Id", requestId)
		return c.Next()
	})

	// Middleware to track the latency of each request
	app.Use(func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		log.WithFields(log.Fields{
			"method":    c.Method(),
			"route":     c.Route().Path,
			"status":    c.Response().StatusCode(),
			"latency":   time.Since(start),
			"requestId": c.Locals("requestId"),
		}).Info("Request")
		return err
	})

	app.Use(compress.New())

	handlers := &handlers{
		db:        config.DB,
		index:     config.Index,
		assembler: config.Assembler,
		events:    config.Events,
	}

	api := app.Group("/api/v1")

	api.Get("/publishers", handlers.listPublishers)
	api.Post("/publishers", handlers.createPublisher)
	api.Get("/publishers/:id/posts", handlers.publisherPosts)

	api.Get("/interests", handlers.listInterests)
	api.Put("/interests", handlers.createInterest)
	api.Get("/interests/:name/posts", handlers.interestPosts)

	api.Post("/posts", handlers.createPost)
	api.Get("/posts/:id", handlers.getPost)
	api.Delete("/posts/:id", handlers.retractPost)
	api.Post("/posts/:id/likes", handlers.likePost)

	api.Get("/feed", handlers.feed)

	// Prometheus metrics endpoint, bridged from net/http to fasthttp
	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	app.Get("/metrics", func(c *fiber.Ctx) error {
		metricsHandler(c.Context())
		return nil
	})

	return app
}
