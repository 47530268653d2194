// entry point to the interpreter booking service
package main

import (
	"github.com/ds124wfegd/interpreter-booking/config"
	"github.com/ds124wfegd/interpreter-booking/internal/appServer"

	"github.com/sirupsen/logrus"
)

func main() {
	logrus.SetFormatter(new(logrus.JSONFormatter))

	viperInstance, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Cannot load config. Error: {%s}", err.Error())
	}

	cfg, err := config.ParseConfig(viperInstance)
	if err != nil {
		logrus.Fatalf("Cannot parse config. Error: {%s}", err.Error())
	}

	logrus.WithFields(logrus.Fields{
		"storage": cfg.Storage.Driver,
		"port":    cfg.Server.Port,
		"env":     cfg.Server.Env,
	}).Info("Config loaded")
	appServer.NewServer(cfg)
}
