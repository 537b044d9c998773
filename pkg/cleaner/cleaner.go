// Package cleaner runs periodic housekeeping: invites past their expiry are
// deactivated so redeemed codes and the organization console reflect reality
// without waiting for a redeem attempt.
package cleaner

import (
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
	"k8s.io/klog/v2"

	"github.com/envlocker/envlocker/dao/model"
)

type Cleaner struct {
	db   *gorm.DB
	cron *cron.Cron
}

func New(db *gorm.DB) *Cleaner {
	return &Cleaner{db: db, cron: cron.New()}
}

// Start registers the sweep on the given cron schedule and launches the
// scheduler. It runs one sweep immediately so a restart does not leave stale
// invites active until the first tick.
func (c *Cleaner) Start(schedule string) error {
	if _, err := c.cron.AddFunc(schedule, c.SweepExpiredInvites); err != nil {
		return err
	}
	c.SweepExpiredInvites()
	c.cron.Start()
	return nil
}

func (c *Cleaner) Stop() {
	c.cron.Stop()
}

// SweepExpiredInvites deactivates every active invite whose expiry has
// passed.
func (c *Cleaner) SweepExpiredInvites() {
	result := c.db.Model(&model.ProjectInvite{}).
		Where("is_active = ? AND expires_at IS NOT NULL AND expires_at <= ?", true, time.Now().UTC()).
		Update("is_active", false)
	if result.Error != nil {
		klog.Error("invite sweep failed: ", result.Error)
		return
	}
	if result.RowsAffected > 0 {
		klog.Infof("invite sweep deactivated %d expired invites", result.RowsAffected)
	}
}
