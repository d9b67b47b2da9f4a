package appbuilder

import (
	"context"
	"fmt"

	"zk-attestation/pkg/logger"
	"zk-attestation/pkg/rabbitmq"
	"zk-attestation/pkg/rest"
	"zk-attestation/pkg/utilities"

	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

type AppConfig interface {
	GetLoggerConfig() logger.LoggerConfig
	GetRabbitmqConfig() rabbitmq.RabbitmqConfig
	GetRestApiPort() uint16
}

type appBuilder[T utilities.JsonConfigObj[U], U AppConfig] struct {
	logger         *logger.Logger
	config         U
	conn           *amqp.Connection
	registry       *rabbitmq.Registry
	workerServices []rabbitmq.WorkerService
	routes         []rest.Route
	middlewares    []rest.Middleware
	engine         *gin.Engine
}

type AppBuilderInterface[T utilities.JsonConfigObj[U], U AppConfig] interface {
	InitLogger(loggerArgs logger.GlobalLoggerConfig) AppBuilderInterface[T, U]
	LoadConfig(configPath string) AppBuilderInterface[T, U]
	WithConfig(config U) AppBuilderInterface[T, U]
	InitRabbitmqConnection(ctx context.Context) AppBuilderInterface[T, U]
	InitRabbitmqRegistries() AppBuilderInterface[T, U]
	AddWorkerServices(workerServices ...rabbitmq.WorkerService) AppBuilderInterface[T, U]
	AddSwagger() AppBuilderInterface[T, U]
	AddMiddlewares(middlewares ...rest.Middleware) AppBuilderInterface[T, U]
	AddGinRoutes(routes ...rest.Route) AppBuilderInterface[T, U]
	InitGinRouter() AppBuilderInterface[T, U]
	Config() U
	Logger() *logger.Logger
	Registry() *rabbitmq.Registry
	Build() ApplicationInterface
}

func New[T utilities.JsonConfigObj[U], U AppConfig]() AppBuilderInterface[T, U] {
	return &appBuilder[T, U]{}
}

func (a *appBuilder[T, U]) InitLogger(loggerArgs logger.GlobalLoggerConfig) AppBuilderInterface[T, U] {
	logger.InitDefaultLogger(loggerArgs)
	a.logger = logger.Default()
	a.logger.Info("Logger initialized")

	return a
}

func (a *appBuilder[T, U]) LoadConfig(filePath string) AppBuilderInterface[T, U] {
	a.logger.Infof("Preparing to load config from %s ...", filePath)
	config, err := utilities.ReadConfig[T, U](filePath)
	if err != nil {
		a.logger.Fatal(err, "Failed to load config")
	}

	a.config = config
	a.logger.WithLevel(config.GetLoggerConfig().LogLevel)
	a.logger.Info("Config successfully loaded.")
	return a
}

func (a *appBuilder[T, U]) WithConfig(config U) AppBuilderInterface[T, U] {
	a.config = config
	return a
}

func (a *appBuilder[T, U]) InitRabbitmqConnection(ctx context.Context) AppBuilderInterface[T, U] {
	rabbitmqConfig := a.config.GetRabbitmqConfig()
	if !rabbitmqConfig.Enabled {
		a.logger.Info("Rabbitmq disabled in config, skipping connection")
		return a
	}

	a.logger.Info("Preparing to connect to Rabbitmq server...")
	conn, err := rabbitmq.ConnectToRabbitmq(ctx, rabbitmqConfig, a.logger)
	if err != nil {
		a.logger.Fatal(err, "Failed to connect to Rabbitmq after retries")
	}

	a.conn = conn
	a.logger.Info("Connection with Rabbitmq server established")

	return a
}

func (a *appBuilder[T, U]) InitRabbitmqRegistries() AppBuilderInterface[T, U] {
	if a.conn == nil {
		return a
	}

	a.logger.Info("Initializing Rabbitmq registries from config")
	registry, err := rabbitmq.NewRegistry(a.conn, a.config.GetRabbitmqConfig(), a.logger)
	if err != nil {
		a.logger.Fatal(err, "Failed to initialize Rabbitmq registries")
	}

	a.registry = registry
	a.logger.Info("Successfully initialized Rabbitmq registries from config")

	return a
}

func (a *appBuilder[T, U]) AddWorkerServices(workerServices ...rabbitmq.WorkerService) AppBuilderInterface[T, U] {
	a.logger.Info("Adding Worker Services to Application...")
	a.workerServices = append(a.workerServices, workerServices...)
	return a
}

func (a *appBuilder[T, U]) AddGinRoutes(routes ...rest.Route) AppBuilderInterface[T, U] {
	a.logger.Info("Adding Gin REST API routes to Application...")
	a.routes = append(a.routes, routes...)
	return a
}

func (a *appBuilder[T, U]) AddMiddlewares(middlewares ...rest.Middleware) AppBuilderInterface[T, U] {
	a.middlewares = append(a.middlewares, middlewares...)
	return a
}

func (a *appBuilder[T, U]) AddSwagger() AppBuilderInterface[T, U] {
	a.logger.Info("Adding SwaggerUI...")
	a.routes = append(a.routes, rest.NewRoute(
		rest.GET,
		"swagger",
		"*any",
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	))

	return a
}

func (a *appBuilder[T, U]) InitGinRouter() AppBuilderInterface[T, U] {
	a.logger.Info("Initializing Gin Router...")
	router := gin.New()
	router.Use(gin.Recovery())

	groupMiddlewares := map[string][]gin.HandlerFunc{}
	for _, m := range a.middlewares {
		if m.Group == "" {
			router.Use(m.Handler)
			continue
		}
		groupMiddlewares[m.Group] = append(groupMiddlewares[m.Group], m.Handler)
	}

	groups := map[string]*gin.RouterGroup{}
	a.logger.Info("Registering REST API routes...")
	for _, r := range a.routes {
		if _, exists := groups[r.Group]; !exists {
			groups[r.Group] = router.Group("/"+r.Group, groupMiddlewares[r.Group]...)
		}

		group := groups[r.Group]

		switch r.Method {
		case rest.GET:
			group.GET(r.Path, r.HandlerFunc)
		case rest.POST:
			group.POST(r.Path, r.HandlerFunc)
		case rest.PUT:
			group.PUT(r.Path, r.HandlerFunc)
		case rest.PATCH:
			group.PATCH(r.Path, r.HandlerFunc)
		case rest.DELETE:
			group.DELETE(r.Path, r.HandlerFunc)
		default:
			a.logger.Warnf("Unrecognized HTTP method: %s", r.Method)
		}
	}

	a.engine = router
	a.logger.Info("Successfully registered REST API routes.")
	return a
}

func (a *appBuilder[T, U]) Config() U {
	return a.config
}

func (a *appBuilder[T, U]) Logger() *logger.Logger {
	return a.logger
}

func (a *appBuilder[T, U]) Registry() *rabbitmq.Registry {
	return a.registry
}

func (a *appBuilder[T, U]) Build() ApplicationInterface {
	return &Application{
		Logger:         a.logger,
		Addr:           fmt.Sprintf("0.0.0.0:%d", a.config.GetRestApiPort()),
		Conn:           a.conn,
		WorkerServices: a.workerServices,
		Engine:         a.engine,
	}
}
