package main

import (
	"context"
	"flag"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"audra/auth"
	"audra/crud"
	"audra/http"
)

// main is the app's entry point.
func main() {
	// Check if the flag "-prod" has been provided. It means that we're running in production.
	productionBool := flag.Bool("prod", false, "Provide this flag in production to ensure that a .config.json file is provided before the application starts.")
	flag.Parse()

	// Load configuration from a .config.json file if present, otherwise use the default dev setup.
	config := LoadConfig(*productionBool)

	// Set up structured logging.
	logger := newLogger(config.IsProd())
	defer logger.Sync()

	// Open a database connection and ensure the indexes exist.
	db := NewDB(config.Database.ConnectionInfo(), config.Database.Name)
	must(Open(db))
	defer Close(db)
	must(EnsureIndexes(db))

	// Start the crud services.
	services, err := crud.NewServices(
		db.Mongo,
		logger,
		crud.WithUser(config.Pepper),
		crud.WithFollow(),
		crud.WithReconciler(),
	)
	must(err)

	// Schedule the follow-graph reconciliation sweep. Follow writes span
	// several documents without a transaction, the sweep repairs whatever
	// drift partial failures leave behind.
	scheduler := cron.New()
	_, err = scheduler.AddFunc(config.ReconcileSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := services.Reconciler.Sweep(ctx); err != nil {
			logger.Error("reconciliation sweep failed", zap.Error(err))
		}
	})
	must(err)
	scheduler.Start()
	defer scheduler.Stop()

	// Set up a webserver.
	server := http.NewServer(services.User, services.Follow, auth.NewJWT(config.JWTKey), logger)

	// Serve the app.
	server.Run(config.Port)
}

// newLogger builds the zap logger matching the environment.
func newLogger(isProd bool) *zap.Logger {
	var logger *zap.Logger
	var err error
	if isProd {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	must(err)
	return logger
}

// must is a little helper for shortening the panic instruction.
func must(err error) {
	if err != nil {
		panic(err)
	}
}
