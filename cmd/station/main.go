package main

import (
	"context"
	"log"
	"time"

	"chargeset/internal"
	"chargeset/internal/config"
	"chargeset/station"
)

const reconnectDelay = 5 * time.Second

func main() {

	conf, err := config.GetConfig()
	if err != nil {
		log.Println("configuration load failed", err)
		return
	}
	location, err := time.LoadLocation(conf.TimeZone)
	if err != nil {
		log.Println("time zone initialization failed", err)
		return
	}

	logger := internal.NewLogger(location)
	logger.SetDebugMode(conf.IsDebug)

	for {
		if err := station.Run(context.Background(), conf, logger); err != nil {
			logger.Error("station session ended", err)
		}
		time.Sleep(reconnectDelay)
	}

}
