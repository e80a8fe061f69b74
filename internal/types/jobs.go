package types

import (
	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/samber/lo"
)

// JobName identifies a background maintenance job
type JobName string

const (
	JobExpireSubscriptions    JobName = "expire-subscriptions"
	JobUnfreezeSubscriptions  JobName = "unfreeze-subscriptions"
	JobLockMeals              JobName = "lock-meals"
	JobAutoRenewSubscriptions JobName = "auto-renew-subscriptions"
)

// DailyJobs are enqueued by the daily trigger, in this order
var DailyJobs = []JobName{
	JobExpireSubscriptions,
	JobUnfreezeSubscriptions,
	JobLockMeals,
	JobAutoRenewSubscriptions,
}

func (j JobName) String() string {
	return string(j)
}

func (j JobName) Validate() error {
	if !lo.Contains(DailyJobs, j) {
		return ierr.NewError("unknown job").
			WithHintf("Unknown job %q", string(j)).
			WithReportableDetails(map[string]any{
				"job":     j,
				"allowed": DailyJobs,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}
