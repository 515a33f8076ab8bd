package station

import (
	"context"
	"fmt"
	"time"

	"chargeset/internal"
	"chargeset/internal/config"
	"chargeset/ocpp"
)

const defaultHeartbeatInterval = 300

// Run connects to the central system and serves attached token readers until
// the connection drops or the context is cancelled. The caller is expected
// to reconnect by calling Run again.
func Run(ctx context.Context, conf *config.Config, logger internal.LogHandler) error {
	client, err := Connect(conf, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		<-client.Done()
		cancel()
	}()

	boot, err := client.BootNotification(ctx)
	if err != nil {
		return fmt.Errorf("boot notification: %w", err)
	}
	if boot.Status != ocpp.RegistrationStatusAccepted {
		return fmt.Errorf("registration %s", boot.Status)
	}
	interval := boot.Interval
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}
	logger.FeatureEvent(ocpp.BootNotificationFeatureName, conf.Station.Id, fmt.Sprintf("registered, heartbeat every %d s", interval))

	go heartbeatLoop(ctx, client, time.Duration(interval)*time.Second, logger)

	runner := NewRunner(client, WallClock{}, logger)
	pipeline := NewPipeline(client, runner, logger)
	scanner := NewScanner(NewRegistry(), pipeline.HandleToken, logger, conf)
	scanner.Start(ctx)
	return nil
}

func heartbeatLoop(ctx context.Context, client *Client, interval time.Duration, logger internal.LogHandler) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.Heartbeat(ctx); err != nil {
				logger.Error("heartbeat", err)
				return
			}
		}
	}
}
