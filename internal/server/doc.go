// Package server accepts client connections and controls the server
// lifecycle.
//
// # Acceptor
//
// An Acceptor owns one listening TCP socket. ServeOne accepts a single
// connection, enables TCP_NODELAY, runs a session.Dispatcher on it until the
// session ends and closes it. Only one session runs at a time and the next
// accept happens only after ServeOne returns. Reads and writes have no
// timeouts; Close, which drops the listener and the active connection, is
// the only way to interrupt a session.
//
// # Controller
//
// A Controller drives an Acceptor through the states
//
//	idle -> listening -> serving -> listening -> ... -> idle
//	                                                  -> exiting
//
// Enable(port) starts listening, Disable returns to idle and Exit ends the
// loop. After each session the controller waits one second before
// accepting again. A session that ends with an error disables the server
// unless KeepEnabled is set. Subscribe delivers every state change, which
// the admin API streams and the control panel renders.
//
// # Usage Example
//
//	ctrl := server.NewController(server.ControllerConfig{
//	    Dispatcher: session.New(dev),
//	})
//	go ctrl.Run(ctx)
//	if err := ctrl.Enable(55500); err != nil {
//	    return err
//	}
package server
