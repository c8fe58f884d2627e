// Package agilis provides a typed client for Agilis piezo motion
// controllers (AG-UC2, AG-UC8).
//
// A Controller validates every argument before it is written, builds the
// ASCII command line and parses the echoed reply through a protocol.Engine:
//
//	cfg, _ := protocol.NewConfig()
//	ctrl, _ := agilis.New(ctx, cfg)
//	if err := ctrl.ConnectUSB(ctx, "/dev/ttyUSB0"); err != nil {
//		return err
//	}
//	defer ctrl.Close()
//
//	_ = ctrl.SetRemoteMode(ctx)
//	_ = ctrl.RelativeMove(ctx, 1, 100)
//	_ = ctrl.WaitReady(ctx, 1, 0)
//
// Motion commands do not reply; call CheckError afterwards to read the TE
// register. MeasurePosition is the only deferred command: it returns a
// Measurement that resolves when the controller reports the position.
package agilis
