package main

import (
	"github.com/litigraph/backend/internal/server"
	"github.com/litigraph/backend/internal/util"
	"github.com/litigraph/backend/pkg/logger"
	"github.com/litigraph/backend/pkg/logger/console"

	_ "github.com/lib/pq"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
