// Package demo holds the reference timer program: an interval logging
// "Interval" which a timeout cancels, logging "Interval canceled".
package demo

import (
	"time"

	"github.com/talostrading/alan"
)

const (
	IntervalMessage = "Interval"
	CanceledMessage = "Interval canceled"
)

// Script registers the interval and the timeout which cancels it.
func Script(interval, cancelAfter time.Duration) alan.Script {
	return func(rt *alan.Runtime) error {
		id, err := rt.SetInterval(interval, func() {
			rt.Log(IntervalMessage)
		})
		if err != nil {
			return err
		}

		_, err = rt.SetTimeout(cancelAfter, func() {
			rt.ClearInterval(id)
			rt.Log(CanceledMessage)
		})
		return err
	}
}
