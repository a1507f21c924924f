// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package redisync

import (
	"github.com/robfig/cron/v3"
)

// StartStatsReporter schedules a periodic log line reporting the client's
// current replication ID, offset and session state, on the cron expression
// configured under stats.schedule (default "@every 30s"). It returns a
// stop function that cancels the schedule; callers typically defer it
// alongside Client.Close.
func (c *Client) StartStatsReporter() (stop func(), err error) {
	sched := cron.New()
	_, err = sched.AddFunc(c.cfg.Stats.Schedule, func() {
		c.logger.Info("replication status",
			"state", c.State(),
			"repl_id", c.ReplicationID(),
			"repl_offset", c.Offset(),
		)
	})
	if err != nil {
		return nil, err
	}
	sched.Start()
	return func() { <-sched.Stop().Done() }, nil
}
