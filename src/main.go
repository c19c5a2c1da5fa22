package main

import (
	"log"
	"net/http"
	"os"
	"path"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ticketwallet/src/boot"
	"ticketwallet/src/chain"
	"ticketwallet/src/config"
	"ticketwallet/src/lib"
	"ticketwallet/src/middlewares"
	"ticketwallet/src/syncer"
)

const (
	apiPrefix string = "/api/v1"
)

var futureDateValidatorFunc validator.Func = func(fl validator.FieldLevel) bool {
	date, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	datetime, err := time.Parse(config.TIME_PARSE_FORMAT, date)
	if err != nil {
		return false
	}
	return time.Now().Before(datetime)
}

var (
	syncEngine       *syncer.Engine
	ticketReconciler *syncer.Reconciler
	mintQueue        *syncer.Queue
	deadLetters      *syncer.DLQ
	chainClient      *chain.Client
)

func setupRouter() *gin.Engine {
	router := gin.Default()
	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, "ok")
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}

func apiv1Group(g *gin.Engine) *gin.RouterGroup {
	apiv1 := g.Group(apiPrefix)
	return apiv1
}

func publicRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	authHandlers(apiv1)
	webhookTestRoute(apiv1)
	return apiv1
}

// newChainService dials the configured network. A misconfigured or missing
// chain keeps the API serving; mint attempts fail with a clear error until the
// configuration is fixed.
func newChainService() syncer.ChainService {
	cfg, err := config.GetChainConfig()
	if err != nil {
		log.Printf("WARNING: blockchain disabled: %s\n", err.Error())
		return nil
	}
	client, err := chain.New(cfg)
	if err != nil {
		log.Printf("WARNING: blockchain disabled: could not connect to %s: %s\n", cfg.Network, err.Error())
		return nil
	}
	log.Printf("Connected to %s, contract %s, signer %s\n", cfg.Network, cfg.ContractAddress, client.SignerAddress())
	chainClient = client
	return client
}

func main() {
	apiEnv := os.Getenv("API_ENV")
	if apiEnv == "local" {
		cwd, _ := os.Getwd()
		if err := godotenv.Load(path.Join(cwd, ".env")); err != nil {
			log.Printf("No .env file loaded: %s\n", err.Error())
		}
	}

	boot.InitDb()

	chainSvc := newChainService()
	notifier := syncer.NewWebhookNotifier()
	syncEngine = syncer.NewEngine(chainSvc, notifier)
	ticketReconciler = syncer.NewReconciler(chainSvc)
	deadLetters = syncer.NewDLQ(lib.GetRedisClient())
	mintQueue = syncer.NewQueue(syncEngine, deadLetters)

	if err := mintQueue.StartSweep(); err != nil {
		log.Fatalf("Could not schedule sync sweep: %s", err.Error())
	}
	if err := mintQueue.RecoverPendingJobs(); err != nil {
		log.Printf("Could not recover pending jobs: %s\n", err.Error())
	}
	boot.InitScheduler()
	defer boot.StopScheduler()

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("futuredate", futureDateValidatorFunc)
	}

	router := setupRouter()
	if apiEnv == "local" {
		router.Use(cors.Default())
	} else {
		cc := cors.DefaultConfig()
		cc.AllowMethods = append(cc.AllowMethods, "GET", "POST", "PATCH", "PUT", "DELETE", "HEAD")
		cc.AllowHeaders = append(cc.AllowHeaders, "Origin", "Authorization")
		cc.AllowAllOrigins = true
		router.Use(cors.New(cc))
	}

	publicRoutes(router)

	authorized := router.Group(apiPrefix)
	authorized.Use(middlewares.AuthMiddleware)
	{
		userHandlers(authorized)
		eventHandlers(authorized)
		ticketHandlers(authorized)
	}

	admin := router.Group(apiPrefix)
	admin.Use(middlewares.AuthMiddleware, middlewares.AdminMiddleware)
	{
		syncHandlers(admin)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := router.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}
