// Package sphero is the high level client for first generation Sphero
// robots. It ties the lower layers together: one transport connection,
// the request correlator and the notification router, behind typed
// wrappers for every documented core and control command.
//
// A minimal session:
//
//	client := sphero.New(sphero.Config{
//		Address: "/dev/rfcomm0",
//		Name:    "Sphero-RGB",
//	})
//	if err := client.Connect(ctx); err != nil {
//		return err
//	}
//	defer client.Close()
//
//	client.SetRGB(ctx, commands.RGB{R: 0xFF}, false)
//	client.Roll(ctx, 0x60, 90)
//
// Commands are safe for concurrent use; responses are matched to their
// callers by sequence number, so interleaved commands from several
// goroutines do not confuse one another. Notification callbacks run on
// the router's dispatch goroutine and must not block.
package sphero
