//go:build darwin && cgo

package midiclock

/*
#include <mach/mach.h>
#include <mach/mach_time.h>
#include <mach/thread_policy.h>
#include <mach/thread_act.h>

static int set_realtime_priority(uint32_t period, uint32_t computation, uint32_t constraint) {
    thread_time_constraint_policy_data_t policy;
    thread_port_t thread_port = mach_thread_self();

    policy.period = period;
    policy.computation = computation;
    policy.constraint = constraint;
    policy.preemptible = 1;

    kern_return_t result = thread_policy_set(
        thread_port,
        THREAD_TIME_CONSTRAINT_POLICY,
        (thread_policy_t)&policy,
        THREAD_TIME_CONSTRAINT_POLICY_COUNT
    );

    return result == KERN_SUCCESS ? 0 : (int)result;
}
*/
import "C"

import (
	"fmt"
	"time"
)

// Time constraint budget for the pulse thread.
const (
	rtPeriod      = time.Millisecond
	rtComputation = 100 * time.Microsecond
	rtConstraint  = 500 * time.Microsecond
)

// machAbsolute converts d to Mach absolute time units, which are only
// nanoseconds on Intel.
func machAbsolute(d time.Duration, numer, denom uint32) uint32 {
	return uint32(uint64(d) * uint64(denom) / uint64(numer))
}

// setRealtimePriority applies a Mach time constraint policy to the calling thread.
func setRealtimePriority() error {
	var tb C.mach_timebase_info_data_t
	if result := C.mach_timebase_info(&tb); result != C.KERN_SUCCESS {
		return fmt.Errorf("failed to read mach timebase (code: %d)", int(result))
	}
	numer, denom := uint32(tb.numer), uint32(tb.denom)

	result := C.set_realtime_priority(
		C.uint32_t(machAbsolute(rtPeriod, numer, denom)),
		C.uint32_t(machAbsolute(rtComputation, numer, denom)),
		C.uint32_t(machAbsolute(rtConstraint, numer, denom)),
	)
	if result != 0 {
		return fmt.Errorf("failed to set real-time priority on macOS (code: %d)", result)
	}
	return nil
}
