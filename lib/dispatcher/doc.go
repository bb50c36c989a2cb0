// Package dispatcher serializes access to a reactor from many goroutines.
//
// A Reactor is single-threaded. A Dispatcher owns one reactor on its own
// goroutine and feeds it from a lock-free multi-producer single-consumer
// queue (util.Queue): any goroutine may call Dispatch, Post, Evaluate or Do,
// and the requests are applied one after another.
//
// Observer handlers registered through Observe run on the dispatcher
// goroutine. They must not call the blocking methods (Dispatch, Evaluate,
// Do) of the same dispatcher; Post enqueues an action that is applied after
// the current request, which is the way to react to a change with another
// dispatch.
//
// Example usage:
//
//	d := dispatcher.New(r)
//	defer d.Close()
//
//	var wg sync.WaitGroup
//	for i := 0; i < 10; i++ {
//		wg.Add(1)
//		go func() {
//			defer wg.Done()
//			_ = d.Dispatch(ctx, "INCREMENT", nil)
//		}()
//	}
//	wg.Wait()
//	count, _ := d.Evaluate(ctx, getter.NewKeyPath("counter", "count"))
package dispatcher
