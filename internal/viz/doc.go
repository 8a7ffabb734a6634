// Package viz renders QHA output tables in the terminal.
//
// [Plot] draws one table with asciigraph. [Browser] is a Bubble Tea program
// that pages through every table of a saved run:
//
//	←/→, h/l - Previous/next table
//	T        - Cycle color themes
//	Q        - Quit
package viz
