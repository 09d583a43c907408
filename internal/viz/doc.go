// Package viz draws SIR trajectories in the terminal.
//
// [PlotCompartments] renders S, I and R on one asciigraph chart. [Model] is a
// Bubble Tea program that solves a problem on demand and replays the
// trajectory as an animation.
//
// # Key Bindings
//
//	Space - Start a solve, or pause/resume the replay
//	S     - Stop: abandon the running solve or halt the replay
//	R     - Restart the replay from t=0
//	Q     - Quit
package viz
