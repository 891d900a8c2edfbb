package main

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/goliatone/go-authz"
	"github.com/goliatone/go-authz/metrics"
	"github.com/goliatone/go-authz/middleware/fiberauth"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"
)

type service struct {
	db         *bun.DB
	authorizer *authz.Authorizer
	store      *authz.PrincipalStore
	recorder   authz.UsageRecorder
	limits     authz.PlanLimits
	registry   *prometheus.Registry
	logger     authz.Logger
}

func (s *service) app() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "authzd",
		DisableStartupMessage: true,
	})

	app.Get("/healthz", func(c *fiber.Ctx) error {
		return c.JSON(authz.Success(fiber.Map{"status": "ok"}))
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))

	api := app.Group("/api")
	api.Get("/me", fiberauth.New(s.authorizer), s.me)
	api.Get("/admin/stats", fiberauth.New(s.authorizer, authz.RequireRole(authz.RoleAdmin)), s.adminStats)
	api.Get("/pricing", fiberauth.Optional(s.authorizer), s.pricing)

	for _, p := range catalog {
		api.Post("/products/"+p.ID+"/run",
			fiberauth.New(s.authorizer, p.guards(s.recorder, s.limits)...),
			s.runProduct(p),
		)
	}

	return app
}

func (s *service) me(c *fiber.Ctx) error {
	p, _ := fiberauth.PrincipalFrom(c, s.authorizer.ContextKey())
	return c.JSON(authz.Success(p))
}

func (s *service) adminStats(c *fiber.Ctx) error {
	users, err := s.db.NewSelect().Model((*authz.User)(nil)).Count(c.UserContext())
	if err != nil {
		s.logger.Error("admin stats failed: %s", err)
		status, body := authz.Failure(err)
		return c.Status(status).JSON(body)
	}
	return c.JSON(authz.Success(fiber.Map{
		"users":    users,
		"products": len(catalog),
	}))
}

func (s *service) pricing(c *fiber.Ctx) error {
	data := fiber.Map{
		"plans":    authz.GetAllPlans(),
		"limits":   s.limits,
		"products": catalog,
	}
	if p, ok := fiberauth.PrincipalFrom(c, s.authorizer.ContextKey()); ok {
		data["current_plan"] = p.Plan()
		data["usage"] = p.Usage
	}
	return c.JSON(authz.Success(data))
}

func (s *service) runProduct(prod product) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, _ := fiberauth.PrincipalFrom(c, s.authorizer.ContextKey())
		s.logger.Info("product run product=%s principal=%s", prod.ID, p.ID)
		return c.JSON(authz.Success(fiber.Map{
			"product":   prod.ID,
			"principal": p.ID,
			"limit":     s.limits.Limit(p.Plan(), prod.UsageType),
		}))
	}
}

func newService(db *bun.DB, st settings, recorder authz.UsageRecorder, logger zlogger) (*service, error) {
	if err := st.Auth.Validate(); err != nil {
		return nil, err
	}

	tokens, err := authz.NewTokenServiceFromConfig(st.Auth,
		authz.WithKeyID(st.KeyID),
		authz.WithRotatedKeys(st.rotatedKeys()),
		authz.WithTokenLogger(logger.named("tokens")),
	)
	if err != nil {
		return nil, err
	}

	store := authz.NewPrincipalStore(db)
	if recorder == nil {
		recorder = store
	}

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	loader := authz.NewBreakerLoader(store, authz.DefaultBreakerSettings("principal-store")).
		WithLogger(logger.named("breaker"))

	authorizer := authz.NewAuthorizer(tokens, loader).
		WithConfig(st.Auth).
		WithLogger(logger.named("authz")).
		WithDecisionListener(collector.Listener())

	return &service{
		db:         db,
		authorizer: authorizer,
		store:      store,
		recorder:   recorder,
		limits:     authz.DefaultPlanLimits(),
		registry:   registry,
		logger:     logger.named("http"),
	}, nil
}
