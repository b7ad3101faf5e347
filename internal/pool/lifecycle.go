package pool

import (
	"fmt"

	"github.com/coachpo/spawnpool/errs"
)

func ensureReturnable(poolName string, inUse, known bool, item any) error {
	if !known {
		return errs.New(poolName, errs.CodeUntrackedRelease,
			errs.WithMessage(fmt.Sprintf("pool does not contain %T", item)))
	}
	if !inUse {
		return errs.New(poolName, errs.CodeInvalid,
			errs.WithMessage(fmt.Sprintf("double put detected for %T", item)))
	}
	return nil
}

func resetItem(item any) {
	if r, ok := item.(Resetter); ok {
		r.Reset()
	}
}
