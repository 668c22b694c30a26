// Package panel is the interactive terminal control panel of the
// acquisition server.
//
// The panel shows the controller state, the session counters and the most
// recent log lines. The operator picks the listening port, enables or
// disables the server and changes the log level at run time:
//
//	enter   enable the server on the entered port, or disable it
//	tab     cycle the log level (error, warning, debug)
//	q       exit
//
// The log pane is fed by a logging.Tail and refreshed on a short timer.
package panel
