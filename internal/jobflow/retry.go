package jobflow

import "errors"

// RetryOnConflict runs fn until it returns something other than ErrConflict
// or attempts are exhausted.
func RetryOnConflict(attempts int, fn func() error) error {
	var err error
	for i := 0; i < attempts; i++ {
		err = fn()
		if !errors.Is(err, ErrConflict) {
			return err
		}
	}
	return err
}
