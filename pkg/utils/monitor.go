package utils

import (
	"context"
	"time"

	"github.com/retail-ai-inc/savegame/pkg/metrics"
	"github.com/retail-ai-inc/savegame/pkg/savegame"
	"github.com/sirupsen/logrus"
)

// StartRecordCountMonitoring logs the number of stored save records every
// interval and publishes it on the savegame_records gauge. It returns
// immediately; the loop stops with ctx.
func StartRecordCountMonitoring(ctx context.Context, counter savegame.Counter, storeType string, log *logrus.Logger, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				countAndLogRecords(ctx, counter, storeType, log)
			}
		}
	}()
}

func countAndLogRecords(ctx context.Context, counter savegame.Counter, storeType string, log *logrus.Logger) {
	count, err := counter.Count(ctx)
	if err != nil {
		log.WithError(err).WithField("store_type", storeType).
			Error("[Monitor] Failed to count save records")
		return
	}
	metrics.SetRecords(count)

	log.WithFields(logrus.Fields{
		"store_type":     storeType,
		"record_count":   count,
		"monitor_action": "record_count",
	}).Info("record_count")
}
