// Package connection retries failing connection attempts with
// exponential backoff.
//
// Bluetooth RFCOMM links to a freshly woken robot often refuse the
// first dial or two, so callers wrap their dial in a Retrier:
//
//	r := connection.NewRetrier(5, 10*time.Second)
//	err := r.Do(ctx, func(ctx context.Context) error {
//		return conn.Connect(ctx, address)
//	})
//
// Delays between attempts follow exponential backoff with jitter:
// 500ms base, doubling, capped at 10s, plus up to 25% random jitter.
package connection
